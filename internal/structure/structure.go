/**
 * Expected Structure - Per-deployment specification of expected codes
 *
 * Defines, per page number, which code types (and how many distinct
 * values of each) must be present for a page to count as complete.
 * Loaded and validated once per file before scanning begins; read-only
 * and safely shared across concurrent page tasks.
 */

package structure

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
)

// PageSpec is the JSON shape of one page entry
type PageSpec struct {
	Page  int            `json:"page,omitempty"` // 1-based; 0 only valid for the default entry
	Codes map[string]int `json:"codes"`          // code type -> expected distinct count (0 = at least one)
}

// Structure is the validated per-deployment expectation set
type Structure struct {
	pages      map[int]scan.PageExpectation
	defaultExp *scan.PageExpectation
}

// document is the on-disk JSON shape
type document struct {
	Pages   []PageSpec     `json:"pages"`
	Default map[string]int `json:"default,omitempty"`
}

var validTypes = map[string]scan.CodeType{
	"QR":      scan.CodeTypeQR,
	"BARCODE": scan.CodeTypeBarcode,
}

// Load reads and validates a structure document from disk
func Load(path string) (*Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read structure file: %w", err)
	}
	return Parse(data)
}

// Parse validates a structure document from raw JSON
func Parse(data []byte) (*Structure, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse structure document: %w", err)
	}

	s := &Structure{pages: make(map[int]scan.PageExpectation)}

	for i, spec := range doc.Pages {
		if spec.Page < 1 {
			return nil, fmt.Errorf("structure entry %d: page number must be >= 1, got %d", i, spec.Page)
		}
		if _, dup := s.pages[spec.Page]; dup {
			return nil, fmt.Errorf("structure entry %d: duplicate page number %d", i, spec.Page)
		}
		exp, err := toExpectation(spec.Codes)
		if err != nil {
			return nil, fmt.Errorf("structure entry %d (page %d): %w", i, spec.Page, err)
		}
		s.pages[spec.Page] = exp
	}

	if doc.Default != nil {
		exp, err := toExpectation(doc.Default)
		if err != nil {
			return nil, fmt.Errorf("structure default entry: %w", err)
		}
		s.defaultExp = &exp
	}

	return s, nil
}

// Single builds a structure that applies one expectation to every page.
// Used by the local one-shot scanner where all pages carry the same codes.
func Single(codes map[string]int) (*Structure, error) {
	exp, err := toExpectation(codes)
	if err != nil {
		return nil, err
	}
	return &Structure{pages: map[int]scan.PageExpectation{}, defaultExp: &exp}, nil
}

// Resolve returns the expectation for a page number. A page with no
// matching entry resolves to the default entry when one is configured,
// otherwise to an empty expectation (no expectations: the scan still
// runs, the page is trivially complete).
func (s *Structure) Resolve(pageNumber int) scan.PageExpectation {
	if exp, ok := s.pages[pageNumber]; ok {
		return exp
	}
	if s.defaultExp != nil {
		return *s.defaultExp
	}
	return scan.PageExpectation{}
}

// HasEntry reports whether a page number has an explicit or default entry
func (s *Structure) HasEntry(pageNumber int) bool {
	if _, ok := s.pages[pageNumber]; ok {
		return true
	}
	return s.defaultExp != nil
}

// PageNumbers returns the explicitly configured page numbers
func (s *Structure) PageNumbers() []int {
	pages := make([]int, 0, len(s.pages))
	for p := range s.pages {
		pages = append(pages, p)
	}
	return pages
}

func toExpectation(codes map[string]int) (scan.PageExpectation, error) {
	if len(codes) == 0 {
		return scan.PageExpectation{}, fmt.Errorf("codes map must not be empty")
	}

	counts := make(map[scan.CodeType]int, len(codes))
	for name, count := range codes {
		codeType, ok := validTypes[name]
		if !ok {
			return scan.PageExpectation{}, fmt.Errorf("unknown code type %q (valid: QR, BARCODE)", name)
		}
		if count < 0 {
			return scan.PageExpectation{}, fmt.Errorf("code type %q: count must be >= 0, got %d", name, count)
		}
		counts[codeType] = count
	}
	return scan.PageExpectation{Counts: counts}, nil
}
