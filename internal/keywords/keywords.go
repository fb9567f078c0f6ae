// Package keywords generates descriptive keywords for photos with a vision model.
package keywords

import (
	"context"
	"math"
	"sort"

	"github.com/zeebo/errs"
)

// Error is the class of failures talking to the keyword model.
var Error = errs.Class("keywords")

// Set is the keywords generated for one photo.
type Set struct {
	Wide     []string `json:"wide"`
	Narrow   []string `json:"narrow"`
	Specific []string `json:"specific"`
}

// All returns every keyword of the set, broadest first, without repeats.
func (s Set) All() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{s.Wide, s.Narrow, s.Specific} {
		for _, kw := range group {
			if _, ok := seen[kw]; ok || kw == "" {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

// Image is a photo to tag. Width and Height are used for batching.
type Image struct {
	PhotoID string
	Data    []byte
	Width   int
	Height  int
}

// Aspect returns width / height, or 1 when the size is unknown.
func (i Image) Aspect() float64 {
	if i.Width <= 0 || i.Height <= 0 {
		return 1
	}
	return float64(i.Width) / float64(i.Height)
}

// Tagger generates keywords for a set of photos, keyed by photo id.
type Tagger interface {
	Tag(ctx context.Context, images []Image) (map[string]Set, error)
}

const (
	maxBatch        = 4
	aspectTolerance = 0.2
)

// Batch groups images of similar aspect ratio so that they tile well in one
// composite. Images are sorted by aspect; a batch takes images within 20% of
// its first image's aspect, up to four.
func Batch(images []Image) [][]Image {
	sorted := append([]Image(nil), images...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Aspect() < sorted[j].Aspect() })

	var batches [][]Image
	var cur []Image
	for _, img := range sorted {
		if len(cur) > 0 {
			base := cur[0].Aspect()
			if math.Abs(img.Aspect()-base)/base > aspectTolerance || len(cur) == maxBatch {
				batches = append(batches, cur)
				cur = nil
			}
		}
		cur = append(cur, img)
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}
