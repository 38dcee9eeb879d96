package decode

import (
	"context"
	"image"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/stretchr/testify/assert"
)

func TestBoxFromPoints(t *testing.T) {
	points := []gozxing.ResultPoint{
		gozxing.NewResultPoint(10, 20),
		gozxing.NewResultPoint(110, 20),
		gozxing.NewResultPoint(10, 120),
		gozxing.NewResultPoint(110, 120),
	}

	box := boxFromPoints(points, 0)

	assert.Equal(t, 10, box.X)
	assert.Equal(t, 20, box.Y)
	assert.Equal(t, 101, box.Width)
	assert.Equal(t, 101, box.Height)
}

func TestBoxFromPointsInflatesScanLine(t *testing.T) {
	// Linear readers report two endpoints of a single scan line
	points := []gozxing.ResultPoint{
		gozxing.NewResultPoint(50, 200),
		gozxing.NewResultPoint(250, 200),
	}

	box := boxFromPoints(points, minBarcodeBoxHeight)

	assert.Equal(t, minBarcodeBoxHeight, box.Height)
	assert.Equal(t, 185, box.Y) // roughly centered on the scan line
	assert.Equal(t, 201, box.Width)
}

func TestBoxFromPointsEmpty(t *testing.T) {
	box := boxFromPoints(nil, minBarcodeBoxHeight)
	assert.Zero(t, box)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	d := NewZXingDecoder()

	_, err := d.Decode(context.Background(), nil)
	assert.Error(t, err)

	_, err = d.Decode(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestDecodeBlankImageFindsNothing(t *testing.T) {
	d := NewZXingDecoder()

	hits, err := d.Decode(context.Background(), image.NewGray(image.Rect(0, 0, 64, 64)))
	assert.NoError(t, err)
	assert.Empty(t, hits)
}
