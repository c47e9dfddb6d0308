package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
)

const (
	ThumbnailWidth  = 1280
	ThumbnailHeight = 720
)

// ResizeThumbnail decodes an image, fits it inside 1280x720 without upscaling
// and re-encodes it as JPEG.
func ResizeThumbnail(r io.Reader) (*bytes.Buffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	var out image.Image = img
	if b.Dx() > ThumbnailWidth || b.Dy() > ThumbnailHeight {
		out = imaging.Fit(img, ThumbnailWidth, ThumbnailHeight, imaging.Lanczos)
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, out, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf, nil
}
