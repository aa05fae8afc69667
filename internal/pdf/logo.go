package pdf

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	logoX    = marginX
	logoY    = 10.0
	logoSize = 15.0
	logoName = "profile-logo"
)

var errUnsupportedLogo = errors.New("unsupported logo format")

// decodeLogo accepts a data URL or raw base64 and returns the image bytes with
// the gofpdf image type.
func decodeLogo(raw string) ([]byte, string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		idx := strings.Index(raw, ",")
		if idx < 0 {
			return nil, "", errUnsupportedLogo
		}
		raw = raw[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	switch format {
	case "png":
		return data, "PNG", nil
	case "jpeg":
		return data, "JPG", nil
	default:
		return nil, "", errUnsupportedLogo
	}
}

// drawLogo places the logo, an empty frame when it cannot be used, or a
// shaded "LOGO" placeholder when none is configured.
func drawLogo(d *document, raw string) {
	if strings.TrimSpace(raw) == "" {
		d.SetFillColor(240, 240, 240)
		d.Rect(logoX, logoY, logoSize, logoSize, "F")
		d.SetTextColor(180, 180, 180)
		d.SetFont(fontName, "", 6)
		d.Text(logoX+4, logoY+8, "LOGO")
		return
	}

	data, imageType, err := decodeLogo(raw)
	if err == nil {
		opts := gofpdf.ImageOptions{ImageType: imageType}
		d.RegisterImageOptionsReader(logoName, opts, bytes.NewReader(data))
		if d.Ok() {
			d.ImageOptions(logoName, logoX, logoY, logoSize, logoSize, false, opts, 0, "")
			return
		}
		d.ClearError()
	}
	d.SetDrawColor(0, 0, 0)
	d.Rect(logoX, logoY, logoSize, logoSize, "D")
}
