package images

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// Register decoders beyond the stdlib jpeg/png/gif set.
	_ "github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
)

// DecodeRGB decodes an encoded image buffer into an RGB pixel grid.
//
// Arguments:
//   - data: Raw encoded bytes (jpeg, png, gif, bmp or webp).
//
// Returns:
//   - *image.NRGBA: The decoded image.
//   - error: Decode failure for corrupt or unsupported bytes.
func DecodeRGB(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	return imaging.Clone(img), nil
}

// SquareCrop center-crops an image to the largest inscribed square
// (side = min(width, height)). Detection preprocessing and bunch cropping
// both use this crop so that normalized detection coordinates and classifier
// crop bounds refer to the same pixels.
func SquareCrop(img image.Image) *image.NRGBA {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	return imaging.CropCenter(img, side, side)
}

// Crop extracts a sub-image by integer pixel bounds.
func Crop(img image.Image, rect image.Rectangle) *image.NRGBA {
	return imaging.Crop(img, rect)
}
