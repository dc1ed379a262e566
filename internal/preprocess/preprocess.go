// Package preprocess turns a detected face into the fixed-size grayscale patch
// the emotion classifier expects.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"golang.org/x/image/draw"
)

// Patch is a CanonicalSize x CanonicalSize grayscale-in-RGB raster.
type Patch struct {
	img *image.NRGBA
}

// Image returns the underlying raster.
func (p *Patch) Image() *image.NRGBA {
	return p.img
}

// PNG encodes the patch as a self-contained PNG.
func (p *Patch) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.img); err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalize crops box out of frame, resamples it to the canonical size and
// converts it to grayscale.
func Normalize(frame image.Image, box BoundingBox) (*Patch, error) {
	r, err := box.Round()
	if err != nil {
		return nil, err
	}

	bounds := frame.Bounds()
	r, err = Clamp(r, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	face := crop(frame, r)
	resized := resizeImage(face, constants.CanonicalSize, constants.CanonicalSize)
	toGrayscale(resized)

	return &Patch{img: resized}, nil
}

// crop copies r (relative to the frame's origin) into a new raster of exactly r's size.
func crop(frame image.Image, r Rect) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, r.W, r.H))
	origin := frame.Bounds().Min
	draw.Draw(dst, dst.Bounds(), frame, image.Pt(origin.X+r.X, origin.Y+r.Y), draw.Src)
	return dst
}

// resizeImage resizes an image to exact dimensions using bilinear interpolation.
func resizeImage(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// toGrayscale replaces R, G and B of every pixel with its luma and leaves alpha alone.
func toGrayscale(img *image.NRGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		r := float64(img.Pix[i])
		g := float64(img.Pix[i+1])
		b := float64(img.Pix[i+2])
		// ITU-R BT.601 luma formula; the classifier was trained on these weights.
		luma := uint8(min(255, math.Round(0.299*r+0.587*g+0.114*b)))
		img.Pix[i] = luma
		img.Pix[i+1] = luma
		img.Pix[i+2] = luma
	}
}
