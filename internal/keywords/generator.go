package keywords

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/leca/photophriend/internal/database"
	"github.com/leca/photophriend/internal/model"
	"github.com/leca/photophriend/internal/storage"
)

// Result is the keyword list stored for one photo.
type Result struct {
	ID       string   `json:"id"`
	Keywords []string `json:"keywords"`
}

// Generator tags stored photos and saves the keywords.
type Generator struct {
	log    *zap.Logger
	db     database.Database
	store  storage.Storage
	tagger Tagger
}

// NewGenerator creates a Generator.
func NewGenerator(log *zap.Logger, db database.Database, store storage.Storage, tagger Tagger) *Generator {
	return &Generator{log: log, db: db, store: store, tagger: tagger}
}

// Generate tags the photos and replaces their keywords with the result.
// The minified version is sent when it exists, otherwise the original.
func (g *Generator) Generate(ctx context.Context, photoIDs []string) ([]Result, error) {
	images := make([]Image, 0, len(photoIDs))
	for _, id := range photoIDs {
		img, err := g.load(ctx, id)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	sets, err := g.tagger.Tag(ctx, images)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(sets))
	for _, id := range photoIDs {
		set, ok := sets[id]
		if !ok {
			continue
		}
		kws := database.NormalizeKeywords(set.All())
		if err := g.db.SetPhotoKeywords(ctx, id, kws); err != nil {
			return nil, err
		}
		results = append(results, Result{ID: id, Keywords: kws})
	}
	g.log.Info("generated keywords", zap.Int("requested", len(photoIDs)), zap.Int("tagged", len(results)))
	return results, nil
}

func (g *Generator) load(ctx context.Context, photoID string) (Image, error) {
	rec, err := g.db.GetPhoto(ctx, photoID)
	if err != nil {
		return Image{}, err
	}

	key, w, h := rec.Photo.OriginalPath, rec.Photo.Width, rec.Photo.Height
	if v := rec.Version(model.VersionMinified); v != nil {
		key, w, h = v.Path, v.Width, v.Height
	}

	rc, err := g.store.Retrieve(key)
	if err != nil {
		return Image{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Image{}, model.ErrStorage.Wrap(fmt.Errorf("reading %s: %w", key, err))
	}
	return Image{PhotoID: photoID, Data: data, Width: w, Height: h}, nil
}
