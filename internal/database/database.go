package database

import (
	"context"
	"time"

	"github.com/leca/photophriend/internal/model"
)

// Database defines the persistence interface for all domain objects.
type Database interface {
	// Photos
	CreatePhoto(ctx context.Context, rec *model.PhotoRecord) error
	GetPhoto(ctx context.Context, photoID string) (*model.PhotoRecord, error)
	ListPhotos(ctx context.Context) ([]*model.PhotoRecord, error)
	UpdatePhotoMetadata(ctx context.Context, photoID string, upd model.MetadataUpdate) (*model.PhotoRecord, error)

	// Keywords
	SetPhotoKeywords(ctx context.Context, photoID string, keywords []string) error
	ListKeywords(ctx context.Context) ([]*model.Keyword, error)

	// Groups
	CreateGroup(ctx context.Context, g *model.Group) error
	GetGroup(ctx context.Context, groupID string) (*model.Group, error)
	ListGroups(ctx context.Context) ([]*model.Group, error)
	UpdateGroup(ctx context.Context, g *model.Group) error
	AddToGroup(ctx context.Context, groupID string, photoIDs []string, now time.Time) error
	RemoveFromGroup(ctx context.Context, groupID string, photoIDs []string, now time.Time) (int, error)
	DeleteGroups(ctx context.Context, groupIDs []string) (int, error)
	ListGroupPhotos(ctx context.Context, groupID string) ([]*model.GroupPhoto, error)

	// Trash
	ListTrash(ctx context.Context) ([]*model.TrashEntry, error)

	// InTx runs fn inside a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the set of row-level operations the photo lifecycle is built from.
// All calls share one transaction.
type Tx interface {
	PhotoExists(photoID string) (bool, error)
	GetPhotoRecord(photoID string) (*model.PhotoRecord, error)
	// PutPhotoRecord writes every row of rec with INSERT OR REPLACE semantics.
	// Keywords are resolved by text, creating vocabulary rows as needed, and the
	// photo's keyword associations are replaced wholesale.
	PutPhotoRecord(rec *model.PhotoRecord) error
	// DeletePhotoRows removes the photo row and all of its satellite rows,
	// including keyword and group associations. Missing rows are not an error.
	DeletePhotoRows(photoID string) error
	PruneKeywords() (int64, error)

	ListMemberships(photoID string) ([]model.Membership, error)
	// RestoreMemberships re-adds memberships whose group still exists.
	RestoreMemberships(photoID string, memberships []model.Membership) error

	InsertTrashEntry(entry *model.TrashEntry) error
	GetTrashEntry(photoID string) (*model.TrashEntry, error)
	DeleteTrashEntry(photoID string) error
	ListExpiredTrash(before time.Time, limit int) ([]*model.TrashEntry, error)
}
