// Package imagecrop center-crops raster images to a square before upload.
package imagecrop

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	_ "golang.org/x/image/webp"
)

const (
	// Quality is the JPEG quality used when a cropped image is re-encoded.
	Quality = 92

	DefaultContentType = "image/jpeg"

	// MaxPixels caps the declared dimensions of an image this package will decode.
	MaxPixels = 40_000_000
)

// Result is either the original input (Cropped == false) or a freshly encoded square image.
type Result struct {
	Data        []byte
	ContentType string
	Cropped     bool
}

// Square decodes data and, when it is not already square, crops the centered
// min(w,h) x min(w,h) region out of it. Any decode or encode failure yields the
// original bytes unchanged, as does an image declaring more than MaxPixels pixels.
func Square(data []byte, contentType string) Result {
	original := Result{Data: data, ContentType: contentType}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("content_type", contentType).Msg("imagecrop: unreadable header, keeping original")
		return original
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		log.Warn().Int("width", cfg.Width).Int("height", cfg.Height).Msg("imagecrop: image too large, keeping original")
		return original
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("content_type", contentType).Msg("imagecrop: decode failed, keeping original")
		return original
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == h || w <= 0 || h <= 0 {
		return original
	}

	size := min(w, h)
	sx := bounds.Min.X + (w-size)/2
	sy := bounds.Min.Y + (h-size)/2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.Copy(dst, image.Point{}, img, image.Rect(sx, sy, sx+size, sy+size), xdraw.Src, nil)

	mime := contentType
	if !strings.HasPrefix(mime, "image/") {
		mime = DefaultContentType
	}

	var buf bytes.Buffer
	mime, err = encode(&buf, dst, mime)
	if err != nil || buf.Len() == 0 {
		log.Debug().Err(err).Str("format", format).Msg("imagecrop: encode failed, keeping original")
		return original
	}

	return Result{Data: buf.Bytes(), ContentType: mime, Cropped: true}
}

// encode writes img in the format named by mime and returns the content type actually used.
// Types without an encoder fall back to PNG.
func encode(buf *bytes.Buffer, img image.Image, mime string) (string, error) {
	switch mime {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return "image/jpeg", jpeg.Encode(buf, img, &jpeg.Options{Quality: Quality})
	case "image/png":
		return mime, png.Encode(buf, img)
	case "image/gif":
		return mime, gif.Encode(buf, img, nil)
	case "image/bmp", "image/x-ms-bmp":
		return "image/bmp", bmp.Encode(buf, img)
	case "image/tiff":
		return mime, tiff.Encode(buf, img, nil)
	default:
		return "image/png", png.Encode(buf, img)
	}
}
