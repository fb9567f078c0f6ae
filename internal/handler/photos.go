package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leca/photophriend/internal/api"
	"github.com/leca/photophriend/internal/database"
	"github.com/leca/photophriend/internal/exif"
	"github.com/leca/photophriend/internal/imageproc"
	"github.com/leca/photophriend/internal/model"
	"github.com/leca/photophriend/internal/storage"
)

// multipart framing allowed on top of the file itself.
const multipartOverhead = 1 << 20

// validPhotoID restricts client-chosen ids, which become storage path segments.
var validPhotoID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// UploadPhoto handles POST /photos -- multipart file upload. The photo id is
// taken from the optional fileId field or generated.
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.TooLarge(w, "upload exceeds the size limit")
			return
		}
		api.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.BadRequest(w, "missing required field: file")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > h.MaxUploadBytes {
		api.TooLarge(w, "upload exceeds the size limit")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.MaxUploadBytes+1))
	if err != nil {
		api.BadRequest(w, "failed to read upload: "+err.Error())
		return
	}
	if int64(len(data)) > h.MaxUploadBytes {
		api.TooLarge(w, "upload exceeds the size limit")
		return
	}

	photoID := r.FormValue("fileId")
	if photoID == "" {
		photoID = uuid.NewString()
	} else if !validPhotoID.MatchString(photoID) {
		api.BadRequest(w, "fileId may only contain letters, digits, '-' and '_'")
		return
	}

	rec, err := h.ingest(r.Context(), photoID, header.Filename, data)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, api.SuccessResponse(rec))
}

// ingest generates derivatives, extracts metadata, writes the files and then
// the records. Keys carry a fresh generation, so the files removed after a
// failure are only ever this upload's own.
func (h *Handler) ingest(ctx context.Context, photoID, filename string, data []byte) (_ *model.PhotoRecord, err error) {
	if imageproc.DetectFormat(data) == "" {
		return nil, model.ErrValidation.New("unsupported image type; expected jpeg, png, gif or webp")
	}

	err = h.DB.InTx(ctx, func(tx database.Tx) error {
		active, err := tx.PhotoExists(photoID)
		if err != nil {
			return err
		}
		if active {
			return model.ErrConflict.New("photo %s already exists", photoID)
		}
		if _, err := tx.GetTrashEntry(photoID); err == nil {
			return model.ErrConflict.New("photo %s is in trash", photoID)
		} else if !model.ErrNotFound.Has(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	derivs, err := imageproc.GenerateDerivatives(data)
	if err != nil {
		return nil, err
	}

	meta, err := exif.Extract(data)
	if err != nil {
		h.Log.Warn("ignoring unreadable EXIF", zap.String("photo_id", photoID), zap.Error(err))
		meta = nil
	}

	if filename == "" {
		filename = photoID + "." + imageproc.Extension(derivs.Format)
	}
	now := h.now()
	gen := storage.NewGeneration()
	rec := &model.PhotoRecord{
		Photo: model.Photo{
			ID:           photoID,
			Filename:     filename,
			OriginalPath: storage.OriginalKey(photoID, gen, imageproc.Extension(derivs.Format)),
			SizeBytes:    int64(len(data)),
			MimeType:     imageproc.MimeType(derivs.Format),
			Width:        derivs.Width,
			Height:       derivs.Height,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Versions: make([]model.PhotoVersion, 0, len(derivs.Versions)),
		Keywords: []string{},
	}
	if meta != nil {
		rec.RawExif = &model.RawExif{PhotoID: photoID, Data: meta.Raw}
		common := meta.Common
		common.PhotoID = photoID
		rec.CommonExif = &common
	}

	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, key := range written {
			if derr := h.Store.Delete(key); derr != nil {
				h.Log.Warn("failed to remove file after failed upload", zap.String("path", key), zap.Error(derr))
			}
		}
	}()

	if _, err := h.Store.Store(rec.Photo.OriginalPath, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	written = append(written, rec.Photo.OriginalPath)

	for _, d := range derivs.Versions {
		ext := imageproc.Extension(d.Format)
		v := model.PhotoVersion{
			PhotoID:     photoID,
			VersionType: d.Type,
			Name:        storage.VersionName(photoID, d.Type, ext),
			SizeBytes:   d.SizeBytes(),
			MimeType:    imageproc.MimeType(d.Format),
			Path:        storage.VersionKey(photoID, gen, d.Type, ext),
			Width:       d.Width,
			Height:      d.Height,
		}
		if _, err := h.Store.Store(v.Path, bytes.NewReader(d.Data)); err != nil {
			return nil, err
		}
		written = append(written, v.Path)
		rec.Versions = append(rec.Versions, v)
	}

	if err := h.DB.CreatePhoto(ctx, rec); err != nil {
		return nil, err
	}
	h.Log.Info("photo uploaded",
		zap.String("photo_id", photoID),
		zap.String("format", derivs.Format),
		zap.Int64("size_bytes", rec.Photo.SizeBytes),
		zap.Bool("exif", meta != nil))
	return rec, nil
}

// ListPhotos handles GET /photos.
func (h *Handler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	recs, err := h.DB.ListPhotos(r.Context())
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, nonNil(recs))
}

// GetPhoto handles GET /photos/{id}.
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	rec, err := h.DB.GetPhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, rec)
}

// UpdateMetadata handles PUT /photos/{id}/metadata.
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var upd model.MetadataUpdate
	if err := api.DecodeJSON(r, &upd); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	if upd.Rating != nil && (*upd.Rating < 0 || *upd.Rating > 5) {
		api.BadRequest(w, "rating must be between 0 and 5")
		return
	}
	if upd.Keywords != nil {
		kws := database.NormalizeKeywords(*upd.Keywords)
		upd.Keywords = &kws
	}

	rec, err := h.DB.UpdatePhotoMetadata(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, rec)
}

type keywordsRequest struct {
	Keywords []string `json:"keywords"`
}

// SetKeywords handles PUT /photos/{id}/keywords -- replaces the photo's keywords.
func (h *Handler) SetKeywords(w http.ResponseWriter, r *http.Request) {
	var req keywordsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	if req.Keywords == nil {
		api.BadRequest(w, "keywords must be a list")
		return
	}

	photoID := chi.URLParam(r, "id")
	if err := h.DB.SetPhotoKeywords(r.Context(), photoID, database.NormalizeKeywords(req.Keywords)); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	rec, err := h.DB.GetPhoto(r.Context(), photoID)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, rec)
}

// ListKeywords handles GET /keywords -- the vocabulary with usage counts.
func (h *Handler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	kws, err := h.DB.ListKeywords(r.Context())
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, nonNil(kws))
}
