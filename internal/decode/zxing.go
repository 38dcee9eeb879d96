/**
 * Code Decoder - gozxing adapter for the decode capability
 *
 * Wraps the zxing port's QR and one-dimensional readers behind the
 * pipeline's Decoder interface. "Nothing found" is an empty hit list;
 * only an unreadable image buffer surfaces as an error.
 */

package decode

import (
	"context"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	qrmulti "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"

	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
)

// minBarcodeBoxHeight pads out the degenerate boxes produced by linear
// readers, whose result points describe a single scan line
const minBarcodeBoxHeight = 32

// ZXingDecoder implements scan.Decoder over gozxing readers.
// Safe for concurrent use: a fresh reader set is cheap and every Decode
// call builds its own binary bitmap.
type ZXingDecoder struct {
	hints map[gozxing.DecodeHintType]interface{}
}

// NewZXingDecoder creates a decoder with TRY_HARDER enabled. The scan
// pipeline already controls cost through its scale ladders, so each
// individual decode attempt is allowed to be thorough.
func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode finds all QR codes and linear barcodes in the image. Hit boxes
// are relative to the image's top-left corner.
func (d *ZXingDecoder) Decode(ctx context.Context, img image.Image) ([]scan.DetectionHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("image is required")
	}
	bounds := img.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return nil, fmt.Errorf("image is empty")
	}

	source := gozxing.NewLuminanceSourceFromImage(img)
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return nil, fmt.Errorf("failed to binarize image: %w", err)
	}

	hits := make([]scan.DetectionHit, 0)
	hits = append(hits, d.decodeQR(bitmap)...)
	hits = append(hits, d.decodeLinear(bitmap)...)
	return hits, nil
}

// decodeQR runs the multi-QR reader; a page can carry several QR codes
func (d *ZXingDecoder) decodeQR(bitmap *gozxing.BinaryBitmap) []scan.DetectionHit {
	reader := qrmulti.NewQRCodeMultiReader()
	results, err := reader.DecodeMultiple(bitmap, d.hints)
	if err != nil {
		// NotFound/Format/Checksum all mean "no decodable QR here".
		return nil
	}

	hits := make([]scan.DetectionHit, 0, len(results))
	for _, result := range results {
		hits = append(hits, scan.DetectionHit{
			Type:  scan.CodeTypeQR,
			Value: result.GetText(),
			Box:   boxFromPoints(result.GetResultPoints(), 0),
		})
	}
	return hits
}

// decodeLinear tries each supported one-dimensional symbology in turn
func (d *ZXingDecoder) decodeLinear(bitmap *gozxing.BinaryBitmap) []scan.DetectionHit {
	readers := []gozxing.Reader{
		oned.NewCode128Reader(),
		oned.NewMultiFormatUPCEANReader(d.hints),
		oned.NewCode39Reader(),
	}

	hits := make([]scan.DetectionHit, 0)
	for _, reader := range readers {
		result, err := reader.Decode(bitmap, d.hints)
		if err != nil {
			continue
		}
		hits = append(hits, scan.DetectionHit{
			Type:  scan.CodeTypeBarcode,
			Value: result.GetText(),
			Box:   boxFromPoints(result.GetResultPoints(), minBarcodeBoxHeight),
		})
	}
	return hits
}

// boxFromPoints builds a bounding box around zxing result points. Linear
// readers report the endpoints of a single scan line, so a minimum
// height inflates the box to something the region builder can pad.
func boxFromPoints(points []gozxing.ResultPoint, minHeight int) scan.BoundingBox {
	if len(points) == 0 {
		return scan.BoundingBox{}
	}

	minX, minY := points[0].GetX(), points[0].GetY()
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.GetX() < minX {
			minX = p.GetX()
		}
		if p.GetX() > maxX {
			maxX = p.GetX()
		}
		if p.GetY() < minY {
			minY = p.GetY()
		}
		if p.GetY() > maxY {
			maxY = p.GetY()
		}
	}

	box := scan.BoundingBox{
		X:      int(minX),
		Y:      int(minY),
		Width:  int(maxX-minX) + 1,
		Height: int(maxY-minY) + 1,
	}
	if box.Height < minHeight {
		grow := minHeight - box.Height
		box.Y -= grow / 2
		if box.Y < 0 {
			box.Y = 0
		}
		box.Height = minHeight
	}
	return box
}
