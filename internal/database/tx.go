package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leca/photophriend/internal/model"
)

var _ Tx = (*sqliteTx)(nil)

// sqliteTx binds a *sql.Tx to the context InTx was called with.
type sqliteTx struct {
	ctx context.Context
	q   querier
}

func (t *sqliteTx) PhotoExists(photoID string) (bool, error) {
	return photoExists(t.ctx, t.q, photoID)
}

func (t *sqliteTx) GetPhotoRecord(photoID string) (*model.PhotoRecord, error) {
	return getPhotoRecord(t.ctx, t.q, photoID)
}

func (t *sqliteTx) PutPhotoRecord(rec *model.PhotoRecord) error {
	return writePhotoRecord(t.ctx, t.q, rec, true)
}

func (t *sqliteTx) DeletePhotoRows(photoID string) error {
	return deletePhotoRows(t.ctx, t.q, photoID)
}

func (t *sqliteTx) PruneKeywords() (int64, error) {
	res, err := t.q.ExecContext(t.ctx,
		`DELETE FROM keywords WHERE id NOT IN (SELECT keyword_id FROM photo_keywords)`)
	if err != nil {
		return 0, fmt.Errorf("prune keywords: %w", err)
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------------------------
// Group memberships
// ---------------------------------------------------------------------------

func (t *sqliteTx) ListMemberships(photoID string) ([]model.Membership, error) {
	rows, err := t.q.QueryContext(t.ctx,
		`SELECT group_id, added_at FROM photo_groups WHERE photo_id = ? ORDER BY added_at, group_id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []model.Membership
	for rows.Next() {
		var m model.Membership
		var addedAt string
		if err := rows.Scan(&m.GroupID, &addedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		if m.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *sqliteTx) RestoreMemberships(photoID string, memberships []model.Membership) error {
	for _, m := range memberships {
		if _, err := t.q.ExecContext(t.ctx, `
			INSERT OR IGNORE INTO photo_groups (photo_id, group_id, added_at)
			SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM groups WHERE id = ?)`,
			photoID, m.GroupID, formatTime(m.AddedAt), m.GroupID); err != nil {
			return fmt.Errorf("restore membership %s: %w", m.GroupID, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Trash
// ---------------------------------------------------------------------------

const trashColumns = `photo_id, deleted_at, auto_delete_at, photo_data`

func (t *sqliteTx) InsertTrashEntry(entry *model.TrashEntry) error {
	_, err := t.q.ExecContext(t.ctx, `INSERT INTO trash (`+trashColumns+`) VALUES (?, ?, ?, ?)`,
		entry.PhotoID, formatTime(entry.DeletedAt), formatTime(entry.AutoDeleteAt), string(entry.PhotoData))
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrConflict.New("photo %s is already in trash", entry.PhotoID)
		}
		return fmt.Errorf("insert trash entry: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetTrashEntry(photoID string) (*model.TrashEntry, error) {
	row := t.q.QueryRowContext(t.ctx, `SELECT `+trashColumns+` FROM trash WHERE photo_id = ?`, photoID)
	e, err := scanTrashEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound.New("trash entry %s", photoID)
	}
	if err != nil {
		return nil, fmt.Errorf("get trash entry: %w", err)
	}
	return e, nil
}

func (t *sqliteTx) DeleteTrashEntry(photoID string) error {
	if _, err := t.q.ExecContext(t.ctx, `DELETE FROM trash WHERE photo_id = ?`, photoID); err != nil {
		return fmt.Errorf("delete trash entry: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListExpiredTrash(before time.Time, limit int) ([]*model.TrashEntry, error) {
	rows, err := t.q.QueryContext(t.ctx, `SELECT `+trashColumns+` FROM trash
		WHERE auto_delete_at <= ? ORDER BY auto_delete_at, photo_id LIMIT ?`,
		formatTime(before), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired trash: %w", err)
	}
	defer rows.Close()
	return scanTrashEntries(rows)
}

func (s *SQLiteDB) ListTrash(ctx context.Context) ([]*model.TrashEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trashColumns+` FROM trash ORDER BY deleted_at DESC, photo_id`)
	if err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}
	defer rows.Close()
	return scanTrashEntries(rows)
}

func scanTrashEntries(rows *sql.Rows) ([]*model.TrashEntry, error) {
	var out []*model.TrashEntry
	for rows.Next() {
		e, err := scanTrashEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trash entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanTrashEntry(row scannable) (*model.TrashEntry, error) {
	var e model.TrashEntry
	var deletedAt, autoDeleteAt, data string
	if err := row.Scan(&e.PhotoID, &deletedAt, &autoDeleteAt, &data); err != nil {
		return nil, err
	}
	var err error
	if e.DeletedAt, err = parseTime(deletedAt); err != nil {
		return nil, err
	}
	if e.AutoDeleteAt, err = parseTime(autoDeleteAt); err != nil {
		return nil, err
	}
	e.PhotoData = []byte(data)
	return &e, nil
}
