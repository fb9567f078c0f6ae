package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/leca/photophriend/internal/model"
)

// NewGeneration returns a token that makes the keys of one upload unique, so
// files written for an id never share a key with an earlier or concurrent
// upload of the same id.
func NewGeneration() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// OriginalKey is where the uploaded file of a photo is stored.
func OriginalKey(photoID, gen, ext string) string {
	return path.Join("photos", photoID, photoID+"_"+gen+"."+ext)
}

// VersionName is the file name of a derivative, e.g. "abc123_thumb.jpg".
func VersionName(photoID string, vt model.VersionType, ext string) string {
	return photoID + "_" + string(vt) + "." + ext
}

// VersionKey is where a derivative of a photo is stored.
func VersionKey(photoID, gen string, vt model.VersionType, ext string) string {
	return path.Join("photos", string(vt), photoID+"_"+gen+"_"+string(vt)+"."+ext)
}
