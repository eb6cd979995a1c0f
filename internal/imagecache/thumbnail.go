package imagecache

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// Thumbnail downscales the image so neither dimension exceeds maxPx and
// re-encodes it as JPEG. Callers shrink photos with it before Put so one
// full-size photo cannot blow most of the cache budget.
func Thumbnail(data []byte, maxPx uint) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := resize.Thumbnail(maxPx, maxPx, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
