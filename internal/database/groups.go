package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leca/photophriend/internal/model"
)

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

const groupColumns = `id, title, description, created_at, updated_at`

func (s *SQLiteDB) CreateGroup(ctx context.Context, g *model.Group) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Title, nullStringPtr(g.Description), formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrConflict.New("group %s already exists", g.ID)
		}
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetGroup(ctx context.Context, groupID string) (*model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = ?`, groupID)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound.New("group %s", groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *SQLiteDB) ListGroups(ctx context.Context) ([]*model.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []*model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) UpdateGroup(ctx context.Context, g *model.Group) error {
	res, err := s.db.ExecContext(ctx, `UPDATE groups SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
		g.Title, nullStringPtr(g.Description), formatTime(g.UpdatedAt), g.ID)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return checkRowsAffected(res, model.ErrNotFound.New("group %s", g.ID))
}

// AddToGroup adds every photo to the group. Photos already in the group keep
// their original added_at. An unknown group or photo fails the whole call.
func (s *SQLiteDB) AddToGroup(ctx context.Context, groupID string, photoIDs []string, now time.Time) error {
	return s.InTx(ctx, func(tx Tx) error {
		t := tx.(*sqliteTx)
		if err := requireGroup(t.ctx, t.q, groupID); err != nil {
			return err
		}
		for _, id := range photoIDs {
			if err := requirePhoto(t.ctx, t.q, id); err != nil {
				return err
			}
			if _, err := t.q.ExecContext(t.ctx,
				`INSERT OR IGNORE INTO photo_groups (photo_id, group_id, added_at) VALUES (?, ?, ?)`,
				id, groupID, formatTime(now)); err != nil {
				return fmt.Errorf("add to group: %w", err)
			}
		}
		return touchGroup(t.ctx, t.q, groupID, now)
	})
}

// RemoveFromGroup removes the given photos from the group, or every member when
// photoIDs is empty. It returns the number of memberships removed.
func (s *SQLiteDB) RemoveFromGroup(ctx context.Context, groupID string, photoIDs []string, now time.Time) (int, error) {
	var removed int
	err := s.InTx(ctx, func(tx Tx) error {
		t := tx.(*sqliteTx)
		if err := requireGroup(t.ctx, t.q, groupID); err != nil {
			return err
		}

		query := `DELETE FROM photo_groups WHERE group_id = ?`
		args := []interface{}{groupID}
		if len(photoIDs) > 0 {
			query += ` AND photo_id IN (` + placeholders(len(photoIDs)) + `)`
			for _, id := range photoIDs {
				args = append(args, id)
			}
		}
		res, err := t.q.ExecContext(t.ctx, query, args...)
		if err != nil {
			return fmt.Errorf("remove from group: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = int(n)
		if removed == 0 {
			return nil
		}
		return touchGroup(t.ctx, t.q, groupID, now)
	})
	return removed, err
}

// DeleteGroups deletes the groups and their memberships. Photos are untouched.
func (s *SQLiteDB) DeleteGroups(ctx context.Context, groupIDs []string) (int, error) {
	var deleted int
	err := s.InTx(ctx, func(tx Tx) error {
		t := tx.(*sqliteTx)
		args := make([]interface{}, len(groupIDs))
		for i, id := range groupIDs {
			args[i] = id
		}
		if _, err := t.q.ExecContext(t.ctx,
			`DELETE FROM photo_groups WHERE group_id IN (`+placeholders(len(groupIDs))+`)`, args...); err != nil {
			return fmt.Errorf("delete group memberships: %w", err)
		}
		res, err := t.q.ExecContext(t.ctx,
			`DELETE FROM groups WHERE id IN (`+placeholders(len(groupIDs))+`)`, args...)
		if err != nil {
			return fmt.Errorf("delete groups: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return model.ErrNotFound.New("no matching groups")
		}
		deleted = int(n)
		return nil
	})
	return deleted, err
}

// ListGroupPhotos returns the group's photos, most recently added first.
func (s *SQLiteDB) ListGroupPhotos(ctx context.Context, groupID string) ([]*model.GroupPhoto, error) {
	if err := requireGroup(ctx, s.db, groupID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.filename, pg.added_at
		FROM photo_groups pg JOIN photos p ON p.id = pg.photo_id
		WHERE pg.group_id = ?
		ORDER BY pg.added_at DESC, p.id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group photos: %w", err)
	}
	var out []*model.GroupPhoto
	for rows.Next() {
		var gp model.GroupPhoto
		var addedAt string
		if err := rows.Scan(&gp.ID, &gp.Filename, &addedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group photo: %w", err)
		}
		if gp.AddedAt, err = parseTime(addedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, &gp)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, gp := range out {
		versions, err := listVersions(ctx, s.db, gp.ID)
		if err != nil {
			return nil, err
		}
		rec := &model.PhotoRecord{Versions: versions}
		gp.Thumb = rec.Version(model.VersionThumb)
		gp.Optimized = rec.Version(model.VersionOptimized)
	}
	return out, nil
}

func requireGroup(ctx context.Context, q querier, groupID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM groups WHERE id = ?`, groupID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound.New("group %s", groupID)
	}
	if err != nil {
		return fmt.Errorf("check group: %w", err)
	}
	return nil
}

func touchGroup(ctx context.Context, q querier, groupID string, now time.Time) error {
	if _, err := q.ExecContext(ctx, `UPDATE groups SET updated_at = ? WHERE id = ?`, formatTime(now), groupID); err != nil {
		return fmt.Errorf("touch group: %w", err)
	}
	return nil
}

func scanGroup(row scannable) (*model.Group, error) {
	var g model.Group
	var desc sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&g.ID, &g.Title, &desc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g.Description = stringPtr(desc)
	var err error
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}
