package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
)

func TestParseAndResolve(t *testing.T) {
	doc := []byte(`{
		"pages": [
			{"page": 1, "codes": {"QR": 1, "BARCODE": 2}},
			{"page": 3, "codes": {"QR": 0}}
		],
		"default": {"BARCODE": 1}
	}`)

	s, err := Parse(doc)
	require.NoError(t, err)

	exp := s.Resolve(1)
	assert.Equal(t, 1, exp.Required(scan.CodeTypeQR))
	assert.Equal(t, 2, exp.Required(scan.CodeTypeBarcode))

	// Count 0 means presence only.
	assert.Equal(t, 1, s.Resolve(3).Required(scan.CodeTypeQR))

	// Unlisted page falls back to the default entry.
	assert.Equal(t, 1, s.Resolve(2).Required(scan.CodeTypeBarcode))
	assert.True(t, s.HasEntry(2))
	assert.ElementsMatch(t, []int{1, 3}, s.PageNumbers())
}

func TestParseWithoutDefault(t *testing.T) {
	s, err := Parse([]byte(`{"pages": [{"page": 1, "codes": {"QR": 1}}]}`))
	require.NoError(t, err)

	// Unlisted page with no default resolves to no expectations.
	assert.True(t, s.Resolve(7).Empty())
	assert.False(t, s.HasEntry(7))
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{"malformed json", `{`},
		{"page number below one", `{"pages": [{"page": 0, "codes": {"QR": 1}}]}`},
		{"duplicate page", `{"pages": [{"page": 2, "codes": {"QR": 1}}, {"page": 2, "codes": {"QR": 1}}]}`},
		{"unknown code type", `{"pages": [{"page": 1, "codes": {"DATAMATRIX": 1}}]}`},
		{"negative count", `{"pages": [{"page": 1, "codes": {"QR": -1}}]}`},
		{"empty codes", `{"pages": [{"page": 1, "codes": {}}]}`},
		{"invalid default", `{"default": {"AZTEC": 1}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestSingle(t *testing.T) {
	s, err := Single(map[string]int{"QR": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Resolve(1).Required(scan.CodeTypeQR))
	assert.Equal(t, 1, s.Resolve(99).Required(scan.CodeTypeQR))

	_, err = Single(map[string]int{"NOPE": 1})
	assert.Error(t, err)
}
