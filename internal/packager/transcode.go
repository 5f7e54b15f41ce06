package packager

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Transcoder converts arbitrary decodable image bytes to JPEG at the
// given quality (0-100). ProcessImage falls back to the original bytes
// when ToJPEG errors (spec §4.G: "if transcoding fails, fall back to
// original bytes and MIME").
type Transcoder interface {
	ToJPEG(data []byte, quality int) ([]byte, error)
}

// JPEGTranscoder decodes png/gif/webp/jpeg via the standard image
// registry (golang.org/x/image/webp registers the webp format as a side
// effect of being imported) and re-encodes as JPEG.
type JPEGTranscoder struct{}

// ToJPEG implements Transcoder.
func (JPEGTranscoder) ToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("packager: decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("packager: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
