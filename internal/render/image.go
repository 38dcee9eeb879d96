package render

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Rotate180 returns a copy of the image rotated by 180 degrees
func Rotate180(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(w-1-x, h-1-y, src.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return dst
}

// Upscale resizes an image by an integer-free factor using Catmull-Rom
// resampling. Used to blow up small region crops before a last-chance
// read; quality matters more than speed on these few, tiny images.
func Upscale(src image.Image, factor float64) *image.RGBA {
	if factor <= 1 {
		factor = 1
	}
	bounds := src.Bounds()
	w := int(float64(bounds.Dx()) * factor)
	h := int(float64(bounds.Dy()) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}
