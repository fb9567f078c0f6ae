package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/leca/photophriend/internal/model"
)

const (
	optimizedQuality = 80
	minifiedQuality  = 70
	thumbQuality     = 60

	minifiedDivisor = 4
	thumbDivisor    = 8
)

// DetectFormat inspects the raw bytes and returns the image format:
// "jpeg", "png", "gif", "webp", or "" if unknown.
func DetectFormat(data []byte) string {
	// JPEG: starts with FF D8 FF
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg"
	}
	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "png"
	}
	// GIF: starts with GIF87a or GIF89a
	if len(data) >= 6 && string(data[:3]) == "GIF" {
		return "gif"
	}
	// WebP: starts with RIFF....WEBP
	if len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "webp"
	}
	return ""
}

// MimeType returns the media type for a format reported by DetectFormat.
func MimeType(format string) string {
	switch format {
	case "jpeg", "png", "gif", "webp":
		return "image/" + format
	}
	return "application/octet-stream"
}

// Extension returns the file extension (without dot) used for a format.
func Extension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

// Derivative is one generated version of a photo.
type Derivative struct {
	Type   model.VersionType
	Format string
	Data   []byte
	Width  int
	Height int
}

// SizeBytes is the encoded size of the derivative.
func (d *Derivative) SizeBytes() int64 { return int64(len(d.Data)) }

// Derivatives is the result of processing an uploaded image.
type Derivatives struct {
	// Format of the source image.
	Format string
	// Width and Height of the source after EXIF orientation is applied.
	Width  int
	Height int

	Versions []Derivative
}

// Decode decodes a supported image, applying its EXIF orientation.
func Decode(data []byte) (image.Image, string, error) {
	format := DetectFormat(data)
	if format == "" {
		return nil, "", model.ErrValidation.New("unsupported or unrecognized image format")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", model.ErrValidation.New("decoding %s image: %v", format, err)
	}
	return img, format, nil
}

// GenerateDerivatives produces the optimized, minified and thumb versions of
// an image. WebP sources are re-encoded as JPEG; other formats keep their own.
func GenerateDerivatives(data []byte) (*Derivatives, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}

	outFormat := format
	if format == "webp" {
		outFormat = "jpeg"
	}

	b := img.Bounds()
	res := &Derivatives{Format: format, Width: b.Dx(), Height: b.Dy()}

	specs := []struct {
		vt      model.VersionType
		divisor int
		quality int
	}{
		{model.VersionOptimized, 1, optimizedQuality},
		{model.VersionMinified, minifiedDivisor, minifiedQuality},
		{model.VersionThumb, thumbDivisor, thumbQuality},
	}
	for _, s := range specs {
		scaled := img
		if s.divisor > 1 {
			scaled = imaging.Resize(img, scaleDim(b.Dx(), s.divisor), scaleDim(b.Dy(), s.divisor), imaging.Lanczos)
		}
		out, err := encode(scaled, outFormat, s.quality)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", s.vt, err)
		}
		sb := scaled.Bounds()
		res.Versions = append(res.Versions, Derivative{
			Type:   s.vt,
			Format: outFormat,
			Data:   out,
			Width:  sb.Dx(),
			Height: sb.Dy(),
		})
	}
	return res, nil
}

func scaleDim(v, divisor int) int {
	n := (v + divisor/2) / divisor
	if n < 1 {
		n = 1
	}
	return n
}

// encode encodes an image to the specified format and returns the bytes.
func encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case "gif":
		err = imaging.Encode(&buf, img, imaging.GIF)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
