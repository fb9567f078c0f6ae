package handler

import (
	"net/http"

	"github.com/leca/photophriend/internal/api"
	"github.com/leca/photophriend/internal/lifecycle"
)

// GenerateKeywords handles POST /photos/keywords -- tags the photos with the
// keyword model and replaces their keywords.
func (h *Handler) GenerateKeywords(w http.ResponseWriter, r *http.Request) {
	if h.Keywords == nil {
		api.Unavailable(w, "keyword generation is not configured")
		return
	}

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

	results, err := h.Keywords.Generate(r.Context(), ids)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, map[string]interface{}{"photos": results})
}
