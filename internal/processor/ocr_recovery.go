/**
 * OCR Recovery - Digit extraction for pages the decode ladder could not finish
 *
 * Linear barcodes are printed with a human-readable digit line underneath.
 * When a page ends incomplete, Tesseract reads that digit line so the
 * manual review queue receives candidate values instead of a blank page.
 *
 * Recovered digits are candidates only. They are never merged into the
 * decoded result and never count toward page completeness.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/divyamanand/campx-qr-client-sub001/internal/render"
	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
)

const (
	// Printed barcode digit lines run 8 to 14 characters in practice.
	minCandidateDigits = 8
	maxCandidateDigits = 14

	// Render scale below which pages are upscaled before OCR
	ocrMinScale = 4.0
)

// OCRRecovery reads printed digit lines from incomplete pages
type OCRRecovery struct {
	enabled bool
}

// NewOCRRecovery creates a recovery reader. Pass enabled=false to make
// RecoverDigits a no-op without branching at every call site.
func NewOCRRecovery(enabled bool) *OCRRecovery {
	return &OCRRecovery{enabled: enabled}
}

// RecoverDigits runs digit-whitelisted OCR over a rendered page and
// returns candidate values not already present in the decoded result.
func (o *OCRRecovery) RecoverDigits(ctx context.Context, page *scan.PageImage, result *scan.PageResult) ([]string, error) {
	if !o.enabled || page == nil || result == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()

	// Tesseract needs roughly 300 dpi to read small print reliably
	img := page.Image
	if page.Scale < ocrMinScale {
		img = render.Upscale(img, ocrMinScale/page.Scale)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetWhitelist("0123456789"); err != nil {
		return nil, fmt.Errorf("failed to set OCR whitelist: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	known := make(map[string]bool, len(result.Codes))
	for _, c := range result.Codes {
		known[c.Value] = true
	}

	candidates := extractDigitRuns(text, known)

	log.Printf("[Page %d] OCR recovery: %d candidate value(s) in %v",
		result.PageNumber, len(candidates), time.Since(startTime))

	return candidates, nil
}

// extractDigitRuns pulls plausible barcode digit runs out of raw OCR text,
// skipping values already decoded and deduplicating the rest
func extractDigitRuns(text string, known map[string]bool) []string {
	var candidates []string
	seen := make(map[string]bool)

	flush := func(run []byte) {
		if len(run) < minCandidateDigits || len(run) > maxCandidateDigits {
			return
		}
		value := string(run)
		if known[value] || seen[value] {
			return
		}
		seen[value] = true
		candidates = append(candidates, value)
	}

	var run []byte
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch >= '0' && ch <= '9' {
			run = append(run, ch)
			continue
		}
		flush(run)
		run = run[:0]
	}
	flush(run)

	return candidates
}
