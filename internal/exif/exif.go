// Package exif extracts EXIF metadata from uploaded images.
package exif

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/leca/photophriend/internal/model"
)

// Result is the metadata found in one image.
type Result struct {
	// Raw is every decoded tag as a JSON object.
	Raw    json.RawMessage
	Common model.CommonExif
}

// Extract decodes the EXIF block of data. It returns nil, nil when the image
// carries no readable EXIF.
func Extract(data []byte) (*Result, error) {
	x, err := goexif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && goexif.IsCriticalError(err)) {
		return nil, nil
	}

	raw, err := x.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal exif: %w", err)
	}

	c := model.CommonExif{
		DateTime:        dateTime(x),
		CameraMake:      str(x, goexif.Make),
		CameraModel:     str(x, goexif.Model),
		LensInfo:        str(x, goexif.LensModel),
		FocalLength:     focalLength(x),
		FocalLength35mm: intPtr(x, goexif.FocalLengthIn35mmFilm),
		Aperture:        aperture(x),
		ShutterSpeed:    shutterSpeed(x),
		ISO:             intPtr(x, goexif.ISOSpeedRatings),
		ExposureProgram: lookup(x, goexif.ExposureProgram, exposurePrograms),
		ExposureMode:    lookup(x, goexif.ExposureMode, exposureModes),
		MeteringMode:    lookup(x, goexif.MeteringMode, meteringModes),
		WhiteBalance:    lookup(x, goexif.WhiteBalance, whiteBalances),
		Flash:           flash(x),
		Software:        str(x, goexif.Software),
		Copyright:       str(x, goexif.Copyright),
		Artist:          str(x, goexif.Artist),
	}
	return &Result{Raw: raw, Common: c}, nil
}

var (
	exposurePrograms = map[int]string{
		0: "Not defined",
		1: "Manual",
		2: "Normal program",
		3: "Aperture priority",
		4: "Shutter priority",
		5: "Creative program",
		6: "Action program",
		7: "Portrait mode",
		8: "Landscape mode",
	}
	exposureModes = map[int]string{
		0: "Auto exposure",
		1: "Manual exposure",
		2: "Auto bracket",
	}
	meteringModes = map[int]string{
		0:   "Unknown",
		1:   "Average",
		2:   "CenterWeightedAverage",
		3:   "Spot",
		4:   "MultiSpot",
		5:   "Pattern",
		6:   "Partial",
		255: "Other",
	}
	whiteBalances = map[int]string{
		0: "Auto white balance",
		1: "Manual white balance",
	}
)

func tag(x *goexif.Exif, name goexif.FieldName) *tiff.Tag {
	t, err := x.Get(name)
	if err != nil {
		return nil
	}
	return t
}

func str(x *goexif.Exif, name goexif.FieldName) string {
	t := tag(x, name)
	if t == nil || t.Format() != tiff.StringVal {
		return ""
	}
	s, err := t.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func intVal(x *goexif.Exif, name goexif.FieldName) (int, bool) {
	t := tag(x, name)
	if t == nil || t.Format() != tiff.IntVal {
		return 0, false
	}
	v, err := t.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

func intPtr(x *goexif.Exif, name goexif.FieldName) *int {
	v, ok := intVal(x, name)
	if !ok {
		return nil
	}
	return &v
}

func rat(x *goexif.Exif, name goexif.FieldName) (num, den int64, ok bool) {
	t := tag(x, name)
	if t == nil || t.Format() != tiff.RatVal {
		return 0, 0, false
	}
	num, den, err := t.Rat2(0)
	if err != nil || den == 0 {
		return 0, 0, false
	}
	return num, den, true
}

func lookup(x *goexif.Exif, name goexif.FieldName, names map[int]string) string {
	v, ok := intVal(x, name)
	if !ok {
		return ""
	}
	if s, ok := names[v]; ok {
		return s
	}
	return strconv.Itoa(v)
}

// dateTime prefers the capture time over the modification time and renders
// it as 2006-01-02T15:04:05.
func dateTime(x *goexif.Exif) string {
	s := str(x, goexif.DateTimeOriginal)
	if s == "" {
		s = str(x, goexif.DateTime)
	}
	if s == "" {
		return ""
	}
	t, err := time.Parse("2006:01:02 15:04:05", s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02T15:04:05")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func focalLength(x *goexif.Exif) string {
	num, den, ok := rat(x, goexif.FocalLength)
	if !ok {
		return ""
	}
	return formatFloat(float64(num)/float64(den)) + " mm"
}

func aperture(x *goexif.Exif) string {
	num, den, ok := rat(x, goexif.FNumber)
	if !ok {
		return ""
	}
	return "f/" + formatFloat(float64(num)/float64(den))
}

func shutterSpeed(x *goexif.Exif) string {
	num, den, ok := rat(x, goexif.ExposureTime)
	if !ok || num <= 0 {
		return ""
	}
	if num < den {
		return "1/" + strconv.FormatInt(int64(math.Round(float64(den)/float64(num))), 10)
	}
	return formatFloat(float64(num)/float64(den)) + "s"
}

func flash(x *goexif.Exif) string {
	v, ok := intVal(x, goexif.Flash)
	if !ok {
		return ""
	}
	if v&1 == 1 {
		return "Flash fired"
	}
	return "Flash did not fire"
}
