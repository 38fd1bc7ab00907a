package media

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"quickblog/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	JPEGQuality    = 82
	WebPQuality    = 70
	maxRenderWidth = 4096
)

// Validate checks that content is a decodable JPEG, PNG, GIF or WebP image no
// larger than maxBytes and returns its MIME type.
func Validate(content []byte, maxBytes int64) (string, error) {
	if len(content) == 0 {
		return "", models.NewValidationError("Image file is required")
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxBytes/(1024*1024)))
	}

	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return "", models.NewValidationError("Invalid image type")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	mimeType := decodedFormatToMime(format)
	if mimeType == "" {
		return "", models.NewValidationError("Unsupported image format")
	}
	return mimeType, nil
}

// Render produces the rendition of content described by t. A zero transform
// returns the original bytes.
func Render(content []byte, t Transform) ([]byte, string, error) {
	if t.IsZero() {
		return content, http.DetectContentType(content), nil
	}

	src, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	img := src
	if t.Width > 0 {
		img = resizeToWidth(src, t.Width)
	}

	target := t.Format
	if target == "" {
		target = format
	}

	switch target {
	case "webp":
		out, err := encodeWebP(img, quality(t.Quality, WebPQuality))
		return out, "image/webp", err
	case "jpg", "jpeg":
		out, err := encodeJPEG(img, quality(t.Quality, JPEGQuality))
		return out, "image/jpeg", err
	case "png":
		var buf bytes.Buffer
		err := png.Encode(&buf, img)
		return buf.Bytes(), "image/png", err
	case "gif":
		var buf bytes.Buffer
		err := gif.Encode(&buf, img, nil)
		return buf.Bytes(), "image/gif", err
	default:
		return nil, "", fmt.Errorf("unsupported output format %q", target)
	}
}

// quality maps "auto" (or anything unparsable) to def and clamps numbers to 1..100.
func quality(q string, def int) int {
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 100)
}

// resizeToWidth scales src down to width, keeping the aspect ratio. Images
// already narrower are returned as is.
func resizeToWidth(src image.Image, width int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || w <= width {
		return src
	}

	newH := max(int(float64(h)*float64(width)/float64(w)), 1)
	dst := image.NewRGBA(image.Rect(0, 0, width, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
