package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leca/photophriend/internal/model"
)

// ---------------------------------------------------------------------------
// Photos
// ---------------------------------------------------------------------------

func (s *SQLiteDB) CreatePhoto(ctx context.Context, rec *model.PhotoRecord) error {
	return s.InTx(ctx, func(tx Tx) error {
		t := tx.(*sqliteTx)
		return writePhotoRecord(t.ctx, t.q, rec, false)
	})
}

func (s *SQLiteDB) GetPhoto(ctx context.Context, photoID string) (*model.PhotoRecord, error) {
	return getPhotoRecord(ctx, s.db, photoID)
}

func (s *SQLiteDB) ListPhotos(ctx context.Context) ([]*model.PhotoRecord, error) {
	// Collect ids first; the single pooled connection is held while rows are open.
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM photos ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	recs := make([]*model.PhotoRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := getPhotoRecord(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *SQLiteDB) UpdatePhotoMetadata(ctx context.Context, photoID string, upd model.MetadataUpdate) (*model.PhotoRecord, error) {
	err := s.InTx(ctx, func(tx Tx) error {
		t := tx.(*sqliteTx)
		if err := requirePhoto(t.ctx, t.q, photoID); err != nil {
			return err
		}

		if upd.Description != nil {
			if _, err := t.q.ExecContext(t.ctx, `UPDATE photos SET description = ? WHERE id = ?`,
				nullStringPtr(upd.Description), photoID); err != nil {
				return fmt.Errorf("update description: %w", err)
			}
		}

		var sets []string
		var args []interface{}
		addSet := func(col string, v interface{}) {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
		if upd.CameraMake != nil {
			addSet("camera_make", nullString(*upd.CameraMake))
		}
		if upd.CameraModel != nil {
			addSet("camera_model", nullString(*upd.CameraModel))
		}
		if upd.LensInfo != nil {
			addSet("lens_info", nullString(*upd.LensInfo))
		}
		if upd.Aperture != nil {
			addSet("aperture", nullString(*upd.Aperture))
		}
		if upd.ShutterSpeed != nil {
			addSet("shutter_speed", nullString(*upd.ShutterSpeed))
		}
		if upd.Copyright != nil {
			addSet("copyright", nullString(*upd.Copyright))
		}
		if upd.Artist != nil {
			addSet("artist", nullString(*upd.Artist))
		}
		if upd.Rating != nil {
			addSet("rating", nullInt(upd.Rating))
		}
		if len(sets) > 0 {
			if _, err := t.q.ExecContext(t.ctx, `INSERT OR IGNORE INTO common_exif (photo_id) VALUES (?)`, photoID); err != nil {
				return fmt.Errorf("ensure common exif: %w", err)
			}
			args = append(args, photoID)
			query := `UPDATE common_exif SET ` + strings.Join(sets, ", ") + ` WHERE photo_id = ?`
			if _, err := t.q.ExecContext(t.ctx, query, args...); err != nil {
				return fmt.Errorf("update common exif: %w", err)
			}
		}

		if upd.Keywords != nil {
			if err := replaceKeywords(t.ctx, t.q, photoID, *upd.Keywords); err != nil {
				return err
			}
		}

		return touchPhoto(t.ctx, t.q, photoID, time.Now())
	})
	if err != nil {
		return nil, err
	}
	return getPhotoRecord(ctx, s.db, photoID)
}

// ---------------------------------------------------------------------------
// Keywords
// ---------------------------------------------------------------------------

func (s *SQLiteDB) SetPhotoKeywords(ctx context.Context, photoID string, keywords []string) error {
	return s.InTx(ctx, func(tx Tx) error {
		t := tx.(*sqliteTx)
		if err := requirePhoto(t.ctx, t.q, photoID); err != nil {
			return err
		}
		if err := replaceKeywords(t.ctx, t.q, photoID, keywords); err != nil {
			return err
		}
		return touchPhoto(t.ctx, t.q, photoID, time.Now())
	})
}

func (s *SQLiteDB) ListKeywords(ctx context.Context) ([]*model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.id, k.keyword, COUNT(pk.photo_id)
		FROM keywords k LEFT JOIN photo_keywords pk ON pk.keyword_id = k.id
		GROUP BY k.id, k.keyword
		ORDER BY k.keyword`)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer rows.Close()

	var out []*model.Keyword
	for rows.Next() {
		var k model.Keyword
		if err := rows.Scan(&k.ID, &k.Keyword, &k.Count); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, &k)
	}
	return out, rows.Err()
}

// NormalizeKeywords trims keywords and drops empty and repeated entries,
// preserving first-seen order.
func NormalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func ensureKeyword(ctx context.Context, q querier, keyword string) (int64, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO keywords (keyword) VALUES (?) ON CONFLICT(keyword) DO NOTHING`, keyword); err != nil {
		return 0, fmt.Errorf("insert keyword: %w", err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM keywords WHERE keyword = ?`, keyword).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve keyword %q: %w", keyword, err)
	}
	return id, nil
}

func replaceKeywords(ctx context.Context, q querier, photoID string, keywords []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM photo_keywords WHERE photo_id = ?`, photoID); err != nil {
		return fmt.Errorf("clear photo keywords: %w", err)
	}
	for _, kw := range NormalizeKeywords(keywords) {
		id, err := ensureKeyword(ctx, q, kw)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO photo_keywords (photo_id, keyword_id) VALUES (?, ?)`, photoID, id); err != nil {
			return fmt.Errorf("link keyword: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Record read/write
// ---------------------------------------------------------------------------

const photoColumns = `id, filename, path, size, type, width, height, description, created_at, updated_at`

const commonExifColumns = `photo_id, date_time, camera_make, camera_model, lens_info, focal_length,
	focal_length_35mm, aperture, shutter_speed, iso, exposure_program, exposure_mode,
	metering_mode, white_balance, flash, software, rating, copyright, artist`

func requirePhoto(ctx context.Context, q querier, photoID string) error {
	ok, err := photoExists(ctx, q, photoID)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrNotFound.New("photo %s", photoID)
	}
	return nil
}

func photoExists(ctx context.Context, q querier, photoID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM photos WHERE id = ?`, photoID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check photo: %w", err)
	}
	return true, nil
}

func touchPhoto(ctx context.Context, q querier, photoID string, now time.Time) error {
	if _, err := q.ExecContext(ctx, `UPDATE photos SET updated_at = ? WHERE id = ?`, formatTime(now), photoID); err != nil {
		return fmt.Errorf("touch photo: %w", err)
	}
	return nil
}

func getPhotoRecord(ctx context.Context, q querier, photoID string) (*model.PhotoRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, photoID)
	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound.New("photo %s", photoID)
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	rec := &model.PhotoRecord{Photo: *p, Versions: []model.PhotoVersion{}, Keywords: []string{}}

	var raw string
	err = q.QueryRowContext(ctx, `SELECT exif_data FROM raw_exif WHERE photo_id = ?`, photoID).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("get raw exif: %w", err)
	default:
		rec.RawExif = &model.RawExif{PhotoID: photoID, Data: json.RawMessage(raw)}
	}

	ce, err := scanCommonExif(q.QueryRowContext(ctx, `SELECT `+commonExifColumns+` FROM common_exif WHERE photo_id = ?`, photoID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("get common exif: %w", err)
	default:
		rec.CommonExif = ce
	}

	if rec.Versions, err = listVersions(ctx, q, photoID); err != nil {
		return nil, err
	}
	if rec.Keywords, err = listPhotoKeywords(ctx, q, photoID); err != nil {
		return nil, err
	}
	return rec, nil
}

func listVersions(ctx context.Context, q querier, photoID string) ([]model.PhotoVersion, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT photo_id, version_type, name, size, type, path, width, height
		FROM photo_details WHERE photo_id = ?
		ORDER BY CASE version_type
			WHEN 'optimized' THEN 1 WHEN 'minified' THEN 2 WHEN 'thumb' THEN 3 ELSE 4 END, version_type`,
		photoID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	out := []model.PhotoVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func listPhotoKeywords(ctx context.Context, q querier, photoID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT k.keyword FROM photo_keywords pk
		JOIN keywords k ON k.id = pk.keyword_id
		WHERE pk.photo_id = ?
		ORDER BY pk.rowid`, photoID)
	if err != nil {
		return nil, fmt.Errorf("list photo keywords: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

// writePhotoRecord writes the photo row and all satellites. With replace set,
// existing rows are overwritten; the photo row is upserted rather than replaced
// so that cascading deletes do not fire on its children.
func writePhotoRecord(ctx context.Context, q querier, rec *model.PhotoRecord, replace bool) error {
	p := rec.Photo
	query := `INSERT INTO photos (` + photoColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if replace {
		query += ` ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename, path = excluded.path, size = excluded.size,
			type = excluded.type, width = excluded.width, height = excluded.height,
			description = excluded.description, created_at = excluded.created_at,
			updated_at = excluded.updated_at`
	}
	_, err := q.ExecContext(ctx, query,
		p.ID, p.Filename, p.OriginalPath, p.SizeBytes, p.MimeType, p.Width, p.Height,
		nullStringPtr(p.Description), formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrConflict.New("photo %s already exists", p.ID)
		}
		return fmt.Errorf("insert photo: %w", err)
	}

	verb := "INSERT"
	if replace {
		verb = "INSERT OR REPLACE"
	}

	if rec.RawExif != nil {
		if _, err := q.ExecContext(ctx, verb+` INTO raw_exif (photo_id, exif_data) VALUES (?, ?)`,
			p.ID, string(rec.RawExif.Data)); err != nil {
			return fmt.Errorf("insert raw exif: %w", err)
		}
	}

	if ce := rec.CommonExif; ce != nil {
		if _, err := q.ExecContext(ctx, verb+` INTO common_exif (`+commonExifColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, nullString(ce.DateTime), nullString(ce.CameraMake), nullString(ce.CameraModel),
			nullString(ce.LensInfo), nullString(ce.FocalLength), nullInt(ce.FocalLength35mm),
			nullString(ce.Aperture), nullString(ce.ShutterSpeed), nullInt(ce.ISO),
			nullString(ce.ExposureProgram), nullString(ce.ExposureMode), nullString(ce.MeteringMode),
			nullString(ce.WhiteBalance), nullString(ce.Flash), nullString(ce.Software),
			nullInt(ce.Rating), nullString(ce.Copyright), nullString(ce.Artist),
		); err != nil {
			return fmt.Errorf("insert common exif: %w", err)
		}
	}

	for _, v := range rec.Versions {
		if _, err := q.ExecContext(ctx, verb+` INTO photo_details
			(photo_id, version_type, name, size, type, path, width, height)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, string(v.VersionType), v.Name, v.SizeBytes, v.MimeType, v.Path, v.Width, v.Height,
		); err != nil {
			return fmt.Errorf("insert version %s: %w", v.VersionType, err)
		}
	}

	return replaceKeywords(ctx, q, p.ID, rec.Keywords)
}

func deletePhotoRows(ctx context.Context, q querier, photoID string) error {
	for _, table := range []string{"photo_keywords", "photo_groups", "photo_details", "common_exif", "raw_exif"} {
		if _, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE photo_id = ?`, photoID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, photoID); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scan helpers
// ---------------------------------------------------------------------------

func scanPhoto(row scannable) (*model.Photo, error) {
	var p model.Photo
	var desc sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Filename, &p.OriginalPath, &p.SizeBytes, &p.MimeType,
		&p.Width, &p.Height, &desc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Description = stringPtr(desc)
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanCommonExif(row scannable) (*model.CommonExif, error) {
	var ce model.CommonExif
	var dateTime, cameraMake, cameraModel, lens, focal, aperture, shutter sql.NullString
	var program, mode, metering, wb, flash, software, copyright, artist sql.NullString
	var focal35, iso, rating sql.NullInt64
	if err := row.Scan(&ce.PhotoID, &dateTime, &cameraMake, &cameraModel, &lens, &focal,
		&focal35, &aperture, &shutter, &iso, &program, &mode,
		&metering, &wb, &flash, &software, &rating, &copyright, &artist); err != nil {
		return nil, err
	}
	ce.DateTime = dateTime.String
	ce.CameraMake = cameraMake.String
	ce.CameraModel = cameraModel.String
	ce.LensInfo = lens.String
	ce.FocalLength = focal.String
	ce.FocalLength35mm = intPtr(focal35)
	ce.Aperture = aperture.String
	ce.ShutterSpeed = shutter.String
	ce.ISO = intPtr(iso)
	ce.ExposureProgram = program.String
	ce.ExposureMode = mode.String
	ce.MeteringMode = metering.String
	ce.WhiteBalance = wb.String
	ce.Flash = flash.String
	ce.Software = software.String
	ce.Rating = intPtr(rating)
	ce.Copyright = copyright.String
	ce.Artist = artist.String
	return &ce, nil
}

func scanVersion(row scannable) (*model.PhotoVersion, error) {
	var v model.PhotoVersion
	var vt string
	if err := row.Scan(&v.PhotoID, &vt, &v.Name, &v.SizeBytes, &v.MimeType, &v.Path, &v.Width, &v.Height); err != nil {
		return nil, err
	}
	v.VersionType = model.VersionType(vt)
	return &v, nil
}
