package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// MaxCompositeImages is the number of quadrants in a composite.
	MaxCompositeImages = 4

	cellSize         = 500
	labelScale       = 4
	labelMargin      = 10
	compositeQuality = 85
)

// CellSize returns the cell dimensions used for images of the given aspect
// ratio (width / height). The long side is cellSize.
func CellSize(aspect float64) (int, int) {
	if aspect <= 0 {
		return cellSize, cellSize
	}
	if aspect < 1 {
		return int(math.Round(cellSize * aspect)), cellSize
	}
	return cellSize, int(math.Round(cellSize / aspect))
}

// CellOrigins returns the top-left corner of each cell for n images of the
// given aspect ratio, together with the canvas size. Up to two images are
// placed side by side when portrait and stacked when landscape; three or four
// fill a 2x2 grid clockwise from the top left.
func CellOrigins(n int, aspect float64) ([]image.Point, image.Point) {
	w, h := CellSize(aspect)
	switch {
	case n <= 1:
		return []image.Point{{0, 0}}, image.Pt(w, h)
	case n == 2 && aspect < 1:
		return []image.Point{{0, 0}, {w, 0}}, image.Pt(2*w, h)
	case n == 2:
		return []image.Point{{0, 0}, {0, h}}, image.Pt(w, 2*h)
	}
	clockwise := []image.Point{{0, 0}, {w, 0}, {w, h}, {0, h}}
	return clockwise[:n], image.Pt(2*w, 2*h)
}

// Composite tiles up to four images into one labelled JPEG. Cell i carries the
// label i+1. Cell sizes follow the mean aspect ratio of the images; each image
// is fitted into its cell on a white background.
func Composite(imgs []image.Image) ([]byte, error) {
	if len(imgs) == 0 || len(imgs) > MaxCompositeImages {
		return nil, fmt.Errorf("composite needs 1 to %d images, got %d", MaxCompositeImages, len(imgs))
	}

	var aspect float64
	for _, img := range imgs {
		aspect += Aspect(img)
	}
	aspect /= float64(len(imgs))
	cw, ch := CellSize(aspect)
	origins, size := CellOrigins(len(imgs), aspect)

	canvas := imaging.New(size.X, size.Y, color.White)
	for i, img := range imgs {
		cell := imaging.PasteCenter(imaging.New(cw, ch, color.White), fitContain(img, cw, ch))
		canvas = imaging.Paste(canvas, cell, origins[i])
		canvas = imaging.Paste(canvas, label(i+1), origins[i].Add(image.Pt(labelMargin, labelMargin)))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(compositeQuality)); err != nil {
		return nil, fmt.Errorf("encoding composite: %w", err)
	}
	return buf.Bytes(), nil
}

// Aspect returns width / height of img.
func Aspect(img image.Image) float64 {
	b := img.Bounds()
	if b.Dy() == 0 {
		return 0
	}
	return float64(b.Dx()) / float64(b.Dy())
}

// fitContain resizes to fit within width x height, preserving aspect ratio.
// Can enlarge.
func fitContain(img image.Image, targetW, targetH int) image.Image {
	origW := img.Bounds().Dx()
	origH := img.Bounds().Dy()

	scale := math.Min(float64(targetW)/float64(origW), float64(targetH)/float64(origH))

	newW := int(float64(origW)*scale + 0.5)
	newH := int(float64(origH)*scale + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	return imaging.Resize(img, newW, newH, imaging.Lanczos)
}

// label renders n as white text on a black box, scaled up for legibility.
func label(n int) image.Image {
	face := basicfont.Face7x13
	text := strconv.Itoa(n)
	w := face.Advance*len(text) + 8
	h := face.Height + 8

	box := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(box, box.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  box,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(4, 4+face.Ascent),
	}
	d.DrawString(text)

	return imaging.Resize(box, w*labelScale, h*labelScale, imaging.NearestNeighbor)
}
