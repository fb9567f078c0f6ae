package handler

import (
	"net/http"

	"github.com/leca/photophriend/internal/api"
)

// MoveToTrash handles POST /trash.
func (h *Handler) MoveToTrash(w http.ResponseWriter, r *http.Request) {
	var req photoIDsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	ids, err := h.Lifecycle.MoveToTrash(r.Context(), req.PhotoIDs)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, map[string][]string{"trashedPhotos": ids})
}

// RestoreFromTrash handles POST /trash/restore.
func (h *Handler) RestoreFromTrash(w http.ResponseWriter, r *http.Request) {
	var req photoIDsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	ids, err := h.Lifecycle.Restore(r.Context(), req.PhotoIDs)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, map[string][]string{"restoredPhotos": ids})
}

// DeletePermanently handles DELETE /trash/permanent.
func (h *Handler) DeletePermanently(w http.ResponseWriter, r *http.Request) {
	var req photoIDsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	ids, err := h.Lifecycle.PermanentlyDelete(r.Context(), req.PhotoIDs)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, map[string][]string{"deletedPhotos": nonNil(ids)})
}

// ListTrash handles GET /trash.
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	items, err := h.Lifecycle.ListTrash(r.Context())
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, items)
}

// PurgeTrash handles DELETE /trash -- runs one auto-purge pass.
func (h *Handler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	n, err := h.Lifecycle.AutoPurge(r.Context())
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, map[string]int{"deletedCount": n})
}
