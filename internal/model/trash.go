package model

import (
	"encoding/json"
	"time"
)

// SnapshotVersion is the schema version written into new trash snapshots.
const SnapshotVersion = 1

// TrashEntry is a trashed photo. PhotoData holds the encoded Snapshot.
type TrashEntry struct {
	PhotoID      string
	DeletedAt    time.Time
	AutoDeleteAt time.Time
	PhotoData    []byte
}

// Snapshot is the self-contained restoration record of a trashed photo.
// Keywords are kept as text because keyword ids do not survive vocabulary pruning.
type Snapshot struct {
	Version    int            `json:"version"`
	Photo      Photo          `json:"photo"`
	RawExif    *RawExif       `json:"rawExif,omitempty"`
	CommonExif *CommonExif    `json:"commonExif,omitempty"`
	Versions   []PhotoVersion `json:"versions"`
	Keywords   []string       `json:"keywords"`
	Groups     []Membership   `json:"groups,omitempty"`
}

// NewSnapshot captures rec and its group memberships.
func NewSnapshot(rec *PhotoRecord, groups []Membership) *Snapshot {
	return &Snapshot{
		Version:    SnapshotVersion,
		Photo:      rec.Photo,
		RawExif:    rec.RawExif,
		CommonExif: rec.CommonExif,
		Versions:   rec.Versions,
		Keywords:   rec.Keywords,
		Groups:     groups,
	}
}

// Record returns the photo rows held by the snapshot.
func (s *Snapshot) Record() *PhotoRecord {
	return &PhotoRecord{
		Photo:      s.Photo,
		RawExif:    s.RawExif,
		CommonExif: s.CommonExif,
		Versions:   s.Versions,
		Keywords:   s.Keywords,
	}
}

// EncodeSnapshot serializes s for the trash table.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, ErrIntegrity.Wrap(err)
	}
	return data, nil
}

// DecodeSnapshot parses a trash snapshot written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ErrIntegrity.Wrap(err)
	}
	if s.Version != SnapshotVersion {
		return nil, ErrIntegrity.New("unsupported snapshot version %d", s.Version)
	}
	if s.Photo.ID == "" {
		return nil, ErrIntegrity.New("snapshot has no photo id")
	}
	return &s, nil
}

// TrashItem is a trash listing entry.
type TrashItem struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	DeletedAt    time.Time      `json:"deletedAt"`
	AutoDeleteAt time.Time      `json:"autoDeleteAt"`
	Original     string         `json:"original"`
	Versions     []PhotoVersion `json:"versions"`
	Keywords     []string       `json:"keywords"`
}
