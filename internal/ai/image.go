package ai

import (
	"bytes"
	"image/color"

	"github.com/disintegration/imaging"
)

// NormalizeImage decodes arbitrary image bytes and re-encodes them as an
// RGB PNG. The embedding model expects three channels, so any alpha channel
// is flattened onto a white background first.
func NormalizeImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	canvas := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	flattened := imaging.OverlayCenter(canvas, img, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flattened, imaging.PNG); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return buf.Bytes(), nil
}
