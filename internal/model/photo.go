package model

import (
	"encoding/json"
	"time"
)

// VersionType names a stored form of a photo.
type VersionType string

const (
	VersionOriginal  VersionType = "original"
	VersionOptimized VersionType = "optimized"
	VersionMinified  VersionType = "minified"
	VersionThumb     VersionType = "thumb"
)

// DerivativeTypes lists the versions that are stored as photo_details rows.
var DerivativeTypes = []VersionType{VersionOptimized, VersionMinified, VersionThumb}

// ParseVersionType validates a version name taken from a URL or request body.
func ParseVersionType(s string) (VersionType, bool) {
	switch v := VersionType(s); v {
	case VersionOriginal, VersionOptimized, VersionMinified, VersionThumb:
		return v, true
	}
	return "", false
}

// Photo is one uploaded image.
type Photo struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalPath string    `json:"originalPath"`
	SizeBytes    int64     `json:"sizeBytes"`
	MimeType     string    `json:"mimeType"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Description  *string   `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RawExif is the complete extractor output for a photo, kept as an opaque JSON document.
type RawExif struct {
	PhotoID string          `json:"photoId"`
	Data    json.RawMessage `json:"data"`
}

// CommonExif is the normalized, queryable subset of a photo's EXIF data.
// Empty strings and nil pointers are stored as NULL.
type CommonExif struct {
	PhotoID         string `json:"photoId"`
	DateTime        string `json:"dateTime,omitempty"`
	CameraMake      string `json:"cameraMake,omitempty"`
	CameraModel     string `json:"cameraModel,omitempty"`
	LensInfo        string `json:"lensInfo,omitempty"`
	FocalLength     string `json:"focalLength,omitempty"`
	FocalLength35mm *int   `json:"focalLength35mm,omitempty"`
	Aperture        string `json:"aperture,omitempty"`
	ShutterSpeed    string `json:"shutterSpeed,omitempty"`
	ISO             *int   `json:"iso,omitempty"`
	ExposureProgram string `json:"exposureProgram,omitempty"`
	ExposureMode    string `json:"exposureMode,omitempty"`
	MeteringMode    string `json:"meteringMode,omitempty"`
	WhiteBalance    string `json:"whiteBalance,omitempty"`
	Flash           string `json:"flash,omitempty"`
	Software        string `json:"software,omitempty"`
	Rating          *int   `json:"rating,omitempty"`
	Copyright       string `json:"copyright,omitempty"`
	Artist          string `json:"artist,omitempty"`
}

// PhotoVersion describes one derivative file of a photo.
type PhotoVersion struct {
	PhotoID     string      `json:"photoId"`
	VersionType VersionType `json:"versionType"`
	Name        string      `json:"name"`
	SizeBytes   int64       `json:"sizeBytes"`
	MimeType    string      `json:"mimeType"`
	Path        string      `json:"path"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
}

// Keyword is an entry of the global keyword vocabulary.
type Keyword struct {
	ID      int64  `json:"id"`
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// PhotoRecord is a photo together with every satellite row that belongs to it.
type PhotoRecord struct {
	Photo      Photo          `json:"photo"`
	RawExif    *RawExif       `json:"rawExif,omitempty"`
	CommonExif *CommonExif    `json:"commonExif,omitempty"`
	Versions   []PhotoVersion `json:"versions"`
	Keywords   []string       `json:"keywords"`
}

// Version returns the derivative of the given type, or nil.
func (r *PhotoRecord) Version(t VersionType) *PhotoVersion {
	for i := range r.Versions {
		if r.Versions[i].VersionType == t {
			return &r.Versions[i]
		}
	}
	return nil
}

// Paths returns every storage path referenced by the record: the original
// followed by the derivatives.
func (r *PhotoRecord) Paths() []string {
	paths := make([]string, 0, len(r.Versions)+1)
	if r.Photo.OriginalPath != "" {
		paths = append(paths, r.Photo.OriginalPath)
	}
	for _, v := range r.Versions {
		if v.Path != "" {
			paths = append(paths, v.Path)
		}
	}
	return paths
}

// MetadataUpdate is an edit of a photo's description, common EXIF fields and keywords.
// Nil fields are left untouched.
type MetadataUpdate struct {
	Description  *string   `json:"description"`
	CameraMake   *string   `json:"make"`
	CameraModel  *string   `json:"model"`
	LensInfo     *string   `json:"lens"`
	Aperture     *string   `json:"aperture"`
	ShutterSpeed *string   `json:"shutterSpeed"`
	Copyright    *string   `json:"copyright"`
	Artist       *string   `json:"artist"`
	Rating       *int      `json:"rating"`
	Keywords     *[]string `json:"keywords"`
}
