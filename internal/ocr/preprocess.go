package ocr

import (
	"bytes"

	"github.com/disintegration/imaging"
)

// Preprocess converts a scan to a high-contrast grayscale PNG, which is what
// tesseract reads best on photographed delivery notes.
func Preprocess(content []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
