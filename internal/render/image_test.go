package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotate180(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	marker := color.RGBA{R: 255, A: 255}
	src.Set(0, 0, marker)

	dst := Rotate180(src)

	assert.Equal(t, image.Rect(0, 0, 4, 2), dst.Bounds())
	assert.Equal(t, marker, dst.RGBAAt(3, 1), "top-left pixel moves to bottom-right")

	// Rotating twice restores the original pixel position.
	back := Rotate180(dst)
	assert.Equal(t, marker, back.RGBAAt(0, 0))
}

func TestUpscaleDimensions(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 10, 20))

	dst := Upscale(src, 3.0)
	assert.Equal(t, 30, dst.Bounds().Dx())
	assert.Equal(t, 60, dst.Bounds().Dy())

	// Factors at or below one are a no-op on size.
	same := Upscale(src, 0.5)
	assert.Equal(t, 10, same.Bounds().Dx())
	assert.Equal(t, 20, same.Bounds().Dy())
}
