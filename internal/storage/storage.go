package storage

import "io"

// Storage defines the interface for photo file storage. Keys are
// slash-separated paths relative to the store root, as produced by the
// layout helpers.
type Storage interface {
	// Store writes data under key and returns the number of bytes written.
	Store(key string, data io.Reader) (int64, error)

	// Retrieve returns a ReadCloser for the data stored under key.
	Retrieve(key string) (io.ReadCloser, error)

	// Delete removes the data stored under key. Deleting a missing key is not an error.
	Delete(key string) error

	// Exists checks whether data is stored under key.
	Exists(key string) (bool, error)
}
