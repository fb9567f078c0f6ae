package handler

import (
	"archive/zip"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leca/photophriend/internal/api"
	"github.com/leca/photophriend/internal/lifecycle"
	"github.com/leca/photophriend/internal/model"
)

// ServeVersion handles GET /photos/{id}/{version} -- streams the original or
// a derivative. Stored files never change, so responses are cacheable forever.
// ?download=1 serves the file as an attachment.
func (h *Handler) ServeVersion(w http.ResponseWriter, r *http.Request) {
	vt, ok := model.ParseVersionType(chi.URLParam(r, "version"))
	if !ok {
		api.BadRequest(w, "version must be one of original, optimized, minified, thumb")
		return
	}

	rec, err := h.DB.GetPhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}

	key, name, mime, size := rec.Photo.OriginalPath, rec.Photo.Filename, rec.Photo.MimeType, rec.Photo.SizeBytes
	if vt != model.VersionOriginal {
		v := rec.Version(vt)
		if v == nil {
			api.NotFound(w, "photo "+rec.Photo.ID+" has no "+string(vt)+" version")
			return
		}
		key, name, mime, size = v.Path, v.Name, v.MimeType, v.SizeBytes
	}

	rc, err := h.Store.Retrieve(key)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	defer func() { _ = rc.Close() }()

	disposition := "inline"
	if r.URL.Query().Get("download") != "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", disposition+"; filename=\""+name+"\"")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Warn("failed to stream photo", zap.String("path", key), zap.Error(err))
	}
}

// DownloadZip handles POST /photos/download -- a zip archive with each
// photo's original under original/ and its optimized version under optimized/.
func (h *Handler) DownloadZip(w http.ResponseWriter, r *http.Request) {
	var req photoIDsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	ids, err := lifecycle.NormalizeIDs(req.PhotoIDs)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}

	// Resolve every photo before the response starts.
	recs := make([]*model.PhotoRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := h.DB.GetPhoto(r.Context(), id)
		if err != nil {
			api.WriteError(w, h.Log, err)
			return
		}
		recs = append(recs, rec)
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="photos.zip"`)
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	for _, rec := range recs {
		entries := [][2]string{{"original/" + rec.Photo.ID + path.Ext(rec.Photo.OriginalPath), rec.Photo.OriginalPath}}
		if v := rec.Version(model.VersionOptimized); v != nil {
			entries = append(entries, [2]string{"optimized/" + v.Name, v.Path})
		}
		for _, e := range entries {
			if err := h.addToZip(zw, e[0], e[1]); err != nil {
				// Headers are sent; the truncated archive signals the failure.
				h.Log.Error("zip download aborted", zap.String("path", e[1]), zap.Error(err))
				return
			}
		}
	}
	if err := zw.Close(); err != nil {
		h.Log.Warn("failed to finish zip", zap.Error(err))
	}
}

func (h *Handler) addToZip(zw *zip.Writer, name, key string) error {
	rc, err := h.Store.Retrieve(key)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	// Photos are already compressed.
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, rc)
	return err
}
