package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leca/photophriend/internal/api"
	"github.com/leca/photophriend/internal/lifecycle"
	"github.com/leca/photophriend/internal/model"
)

type createGroupRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type updateGroupRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type groupResponse struct {
	*model.Group
	Photos []*model.GroupPhoto `json:"photos"`
}

// CreateGroup handles POST /groups.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		api.BadRequest(w, "title is required")
		return
	}

	now := h.now()
	g := &model.Group{
		ID:          uuid.NewString(),
		Title:       title,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.DB.CreateGroup(r.Context(), g); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, api.SuccessResponse(g))
}

// ListGroups handles GET /groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.DB.ListGroups(r.Context())
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, nonNil(groups))
}

// GetGroup handles GET /groups/{groupId} -- the group and its photos.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	g, err := h.DB.GetGroup(r.Context(), groupID)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	photos, err := h.DB.ListGroupPhotos(r.Context(), groupID)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, groupResponse{Group: g, Photos: nonNil(photos)})
}

// UpdateGroup handles PATCH /groups/{groupId}.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req updateGroupRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}

	g, err := h.DB.GetGroup(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			api.BadRequest(w, "title must not be empty")
			return
		}
		g.Title = title
	}
	if req.Description != nil {
		g.Description = req.Description
	}
	g.UpdatedAt = h.now()

	if err := h.DB.UpdateGroup(r.Context(), g); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, g)
}

type deleteGroupsRequest struct {
	GroupIDs []string `json:"groupIds"`
}

// DeleteGroups handles DELETE /groups. Member photos are not affected.
func (h *Handler) DeleteGroups(w http.ResponseWriter, r *http.Request) {
	var req deleteGroupsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	if len(req.GroupIDs) == 0 {
		api.BadRequest(w, "groupIds must be a non-empty list")
		return
	}
	n, err := h.DB.DeleteGroups(r.Context(), req.GroupIDs)
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, map[string]int{"deletedCount": n})
}

// AddToGroup handles POST /groups/{groupId}/photos. Adding a member twice is
// not an error.
func (h *Handler) AddToGroup(w http.ResponseWriter, r *http.Request) {
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
	if err := h.DB.AddToGroup(r.Context(), chi.URLParam(r, "groupId"), ids, h.now()); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, map[string][]string{"addedPhotos": ids})
}

// RemoveFromGroup handles DELETE /groups/{groupId}/photos. Without a body, or
// without photoIds, every member is removed.
func (h *Handler) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	var req photoIDsRequest
	if _, err := decodeOptionalJSON(r, &req); err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	ids := req.PhotoIDs
	if ids != nil {
		var err error
		if ids, err = lifecycle.NormalizeIDs(ids); err != nil {
			api.WriteError(w, h.Log, err)
			return
		}
	}

	n, err := h.DB.RemoveFromGroup(r.Context(), chi.URLParam(r, "groupId"), ids, h.now())
	if err != nil {
		api.WriteError(w, h.Log, err)
		return
	}
	api.OK(w, map[string]int{"removedCount": n})
}
