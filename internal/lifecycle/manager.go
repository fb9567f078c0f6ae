// Package lifecycle moves photos between the active and trashed states and
// destroys them permanently.
//
// A photo is active while it has a row in the photos table and trashed while it
// has a trash entry. Trashing captures a snapshot of every row belonging to the
// photo and deletes the live rows in the same transaction, so a photo is never
// in both states. Restoring writes the snapshot back. Purging deletes the trash
// entry and then, best-effort, the photo's files.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"github.com/leca/photophriend/internal/database"
	"github.com/leca/photophriend/internal/model"
	"github.com/leca/photophriend/internal/storage"
)

var mon = monkit.Package()

// Config contains configurable values for the photo lifecycle.
type Config struct {
	Retention      time.Duration
	PurgeBatchSize int
}

// Manager is the sole authority for trashing, restoring and purging photos.
type Manager struct {
	log    *zap.Logger
	db     database.Database
	store  storage.Storage
	config Config

	mu    sync.RWMutex
	nowFn func() time.Time
}

// NewManager creates a Manager.
func NewManager(log *zap.Logger, db database.Database, store storage.Storage, config Config) *Manager {
	if config.PurgeBatchSize < 1 {
		config.PurgeBatchSize = 100
	}
	return &Manager{
		log:    log,
		db:     db,
		store:  store,
		config: config,
		nowFn:  time.Now,
	}
}

// TestingSetNow replaces the clock used for trash timestamps and purge cutoffs.
func (m *Manager) TestingSetNow(fn func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nowFn = fn
}

func (m *Manager) now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nowFn().UTC()
}

// NormalizeIDs rejects empty lists and empty ids and drops repeated ids,
// preserving order.
func NormalizeIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, model.ErrValidation.New("photoIds must be a non-empty list")
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, model.ErrValidation.New("photoIds must not contain empty ids")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// MoveToTrash trashes every photo in one transaction. If any id is not an
// active photo nothing is trashed: unknown ids fail with ErrNotFound and ids
// already in trash with ErrConflict.
func (m *Manager) MoveToTrash(ctx context.Context, photoIDs []string) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	ids, err := NormalizeIDs(photoIDs)
	if err != nil {
		return nil, err
	}

	now := m.now()
	err = m.db.InTx(ctx, func(tx database.Tx) error {
		for _, id := range ids {
			rec, err := tx.GetPhotoRecord(id)
			if model.ErrNotFound.Has(err) {
				if _, terr := tx.GetTrashEntry(id); terr == nil {
					return model.ErrConflict.New("photo %s is already in trash", id)
				}
			}
			if err != nil {
				return err
			}
			groups, err := tx.ListMemberships(id)
			if err != nil {
				return err
			}
			data, err := model.EncodeSnapshot(model.NewSnapshot(rec, groups))
			if err != nil {
				return err
			}
			if err := tx.InsertTrashEntry(&model.TrashEntry{
				PhotoID:      id,
				DeletedAt:    now,
				AutoDeleteAt: now.Add(m.config.Retention),
				PhotoData:    data,
			}); err != nil {
				return err
			}
			if err := tx.DeletePhotoRows(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("moved photos to trash", zap.Strings("photo_ids", ids))
	return ids, nil
}

// Restore writes every snapshot back to the live tables in one transaction.
// If any id has no trash entry nothing is restored.
func (m *Manager) Restore(ctx context.Context, photoIDs []string) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	ids, err := NormalizeIDs(photoIDs)
	if err != nil {
		return nil, err
	}

	now := m.now()
	err = m.db.InTx(ctx, func(tx database.Tx) error {
		for _, id := range ids {
			entry, err := tx.GetTrashEntry(id)
			if err != nil {
				return err
			}
			snap, err := model.DecodeSnapshot(entry.PhotoData)
			if err != nil {
				return err
			}
			if snap.Photo.ID != id {
				return model.ErrIntegrity.New("trash entry %s holds a snapshot of %s", id, snap.Photo.ID)
			}

			rec := snap.Record()
			rec.Photo.UpdatedAt = now
			if err := tx.PutPhotoRecord(rec); err != nil {
				return err
			}
			if err := tx.RestoreMemberships(id, snap.Groups); err != nil {
				return err
			}
			if err := tx.DeleteTrashEntry(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("restored photos from trash", zap.Strings("photo_ids", ids))
	return ids, nil
}

// PermanentlyDelete purges trashed photos. Ids with no trace anywhere are
// skipped; an id that is still active fails the whole call, since photos must
// be trashed before they are purged. It returns the ids that were purged.
func (m *Manager) PermanentlyDelete(ctx context.Context, photoIDs []string) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	ids, err := NormalizeIDs(photoIDs)
	if err != nil {
		return nil, err
	}

	var purged, paths []string
	err = m.db.InTx(ctx, func(tx database.Tx) error {
		for _, id := range ids {
			active, err := tx.PhotoExists(id)
			if err != nil {
				return err
			}
			if active {
				return model.ErrConflict.New("photo %s is not in trash", id)
			}

			entry, err := tx.GetTrashEntry(id)
			if model.ErrNotFound.Has(err) {
				continue
			}
			if err != nil {
				return err
			}

			p, err := m.purgeEntry(tx, entry)
			if err != nil {
				return err
			}
			purged = append(purged, id)
			paths = append(paths, p...)
		}
		return m.pruneKeywords(tx, len(purged))
	})
	if err != nil {
		return nil, err
	}

	m.deleteFiles(paths)
	m.log.Info("permanently deleted photos", zap.Strings("photo_ids", purged))
	return purged, nil
}

// AutoPurge purges every trash entry whose auto-delete time has passed. Entries
// are purged in chunks, one transaction per chunk. It returns the number of
// entries purged.
func (m *Manager) AutoPurge(ctx context.Context) (total int, err error) {
	defer mon.Task()(&ctx)(&err)

	cutoff := m.now()
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var n int
		var paths []string
		err := m.db.InTx(ctx, func(tx database.Tx) error {
			entries, err := tx.ListExpiredTrash(cutoff, m.config.PurgeBatchSize)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				p, err := m.purgeEntry(tx, entry)
				if err != nil {
					return err
				}
				paths = append(paths, p...)
			}
			n = len(entries)
			return m.pruneKeywords(tx, n)
		})
		if err != nil {
			return total, err
		}

		m.deleteFiles(paths)
		total += n
		if n < m.config.PurgeBatchSize {
			break
		}
	}

	mon.IntVal("auto_purged_photos").Observe(int64(total))
	if total > 0 {
		m.log.Info("auto-purged expired trash", zap.Int("count", total), zap.Time("cutoff", cutoff))
	}
	return total, nil
}

// ListTrash returns the trash, most recently trashed first.
func (m *Manager) ListTrash(ctx context.Context) (_ []model.TrashItem, err error) {
	defer mon.Task()(&ctx)(&err)

	entries, err := m.db.ListTrash(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.TrashItem, 0, len(entries))
	for _, e := range entries {
		item := model.TrashItem{
			ID:           e.PhotoID,
			DeletedAt:    e.DeletedAt,
			AutoDeleteAt: e.AutoDeleteAt,
			Versions:     []model.PhotoVersion{},
			Keywords:     []string{},
		}
		snap, err := model.DecodeSnapshot(e.PhotoData)
		if err != nil {
			m.log.Warn("unreadable trash snapshot", zap.String("photo_id", e.PhotoID), zap.Error(err))
		} else {
			item.Filename = snap.Photo.Filename
			item.Original = snap.Photo.OriginalPath
			if snap.Versions != nil {
				item.Versions = snap.Versions
			}
			if snap.Keywords != nil {
				item.Keywords = snap.Keywords
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// purgeEntry deletes the trash entry and any rows left for the photo, returning
// the file paths recorded in its snapshot. An unreadable snapshot does not stop
// the purge; its files are left behind.
func (m *Manager) purgeEntry(tx database.Tx, entry *model.TrashEntry) ([]string, error) {
	var paths []string
	snap, err := model.DecodeSnapshot(entry.PhotoData)
	if err != nil {
		m.log.Warn("purging trash entry with unreadable snapshot; files are not removed",
			zap.String("photo_id", entry.PhotoID), zap.Error(err))
	} else {
		paths = snap.Record().Paths()
	}

	if err := tx.DeleteTrashEntry(entry.PhotoID); err != nil {
		return nil, err
	}
	if err := tx.DeletePhotoRows(entry.PhotoID); err != nil {
		return nil, err
	}
	return paths, nil
}

func (m *Manager) pruneKeywords(tx database.Tx, purged int) error {
	if purged == 0 {
		return nil
	}
	n, err := tx.PruneKeywords()
	if err != nil {
		return err
	}
	if n > 0 {
		m.log.Debug("pruned unused keywords", zap.Int64("count", n))
	}
	return nil
}

// deleteFiles removes each file independently; failures are logged.
func (m *Manager) deleteFiles(paths []string) {
	for _, p := range paths {
		if err := m.store.Delete(p); err != nil {
			m.log.Warn("failed to delete photo file", zap.String("path", p), zap.Error(err))
		}
	}
}
