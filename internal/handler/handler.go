// Package handler implements the HTTP endpoints of the photo API.
package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/leca/photophriend/internal/api"
	"github.com/leca/photophriend/internal/database"
	"github.com/leca/photophriend/internal/keywords"
	"github.com/leca/photophriend/internal/lifecycle"
	"github.com/leca/photophriend/internal/model"
	"github.com/leca/photophriend/internal/storage"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Log       *zap.Logger
	DB        database.Database
	Store     storage.Storage
	Lifecycle *lifecycle.Manager
	// Keywords is nil when no keyword model is configured.
	Keywords       *keywords.Generator
	MaxUploadBytes int64
}

func (h *Handler) now() time.Time {
	return time.Now().UTC()
}

// photoIDsRequest is the body of every batch endpoint.
type photoIDsRequest struct {
	PhotoIDs []string `json:"photoIds"`
}

// decodeOptionalJSON decodes the body into v unless the body is empty.
func decodeOptionalJSON(r *http.Request, v interface{}) (bool, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return false, model.ErrValidation.New("reading request body: %v", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err := api.DecodeJSON(r, v); err != nil {
		return false, err
	}
	return true, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
