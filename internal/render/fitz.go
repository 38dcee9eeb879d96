/**
 * PDF Rasterization - go-fitz (MuPDF) adapter for the render capability
 *
 * Renders single pages at a requested magnification, optionally rotated
 * 180 degrees. MuPDF documents are not safe for concurrent use, so all
 * render calls on one document are serialized behind a mutex; concurrent
 * page tasks contend here rather than crash.
 */

package render

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
)

// baseDPI is the rendering resolution at scale 1.0
const baseDPI = 72.0

// Document wraps an open PDF and implements scan.PageRenderer
type Document struct {
	mu    sync.Mutex
	doc   *fitz.Document
	pages int
}

// OpenFile opens a PDF from disk
func OpenFile(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return &Document{doc: doc, pages: doc.NumPage()}, nil
}

// OpenBytes opens a PDF from an in-memory buffer
func OpenBytes(data []byte) (*Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document from buffer: %w", err)
	}
	return &Document{doc: doc, pages: doc.NumPage()}, nil
}

// PageCount returns the number of pages in the document
func (d *Document) PageCount() int { return d.pages }

// Close releases the underlying MuPDF document
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}

// RenderPage rasterizes one page (1-based) at the given magnification.
// Rotation is applied to the rasterized image, not the PDF transform, so
// a failed rotation can never poison the document state.
func (d *Document) RenderPage(ctx context.Context, pageNumber int, scaleFactor float64, rotated bool) (*scan.PageImage, error) {
	if pageNumber < 1 || pageNumber > d.pages {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", pageNumber, d.pages)
	}
	if scaleFactor <= 0 {
		return nil, fmt.Errorf("scale must be positive, got %f", scaleFactor)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	img, err := d.doc.ImageDPI(pageNumber-1, baseDPI*scaleFactor)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize page %d at scale %.2f: %w", pageNumber, scaleFactor, err)
	}

	var out image.Image = img
	if rotated {
		out = Rotate180(img)
	}

	bounds := out.Bounds()
	return &scan.PageImage{
		Image:   out,
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Scale:   scaleFactor,
		Rotated: rotated,
	}, nil
}
