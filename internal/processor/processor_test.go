package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMimeTypeFromMagicBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"pdf", []byte("%PDF-1.7\n..."), "application/pdf"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "image/jpeg"},
		{"tiff little-endian", []byte{0x49, 0x49, 0x2A, 0x00, 0x08}, "image/tiff"},
		{"tiff big-endian", []byte{0x4D, 0x4D, 0x00, 0x2A, 0x08}, "image/tiff"},
		{"bmp", []byte("BM\x36\x00"), "image/bmp"},
		{"unknown", []byte("hello world"), ""},
		{"too short", []byte{0x89}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectMimeTypeFromMagicBytes(tt.data))
		})
	}
}

func TestSupportedMimeType(t *testing.T) {
	assert.True(t, supportedMimeType("application/pdf"))
	assert.True(t, supportedMimeType("image/png"))
	assert.True(t, supportedMimeType("image/webp"))
	assert.False(t, supportedMimeType("application/zip"))
	assert.False(t, supportedMimeType("text/plain"))
}

func TestExtractDigitRuns(t *testing.T) {
	text := "roll no\n23104567890\nsubject 101\n23104567890 badline 42"

	candidates := extractDigitRuns(text, nil)

	// One plausible run, deduplicated; "101" and "42" are too short
	assert.Equal(t, []string{"23104567890"}, candidates)
}

func TestExtractDigitRunsSkipsKnownValues(t *testing.T) {
	known := map[string]bool{"23104567890": true}

	candidates := extractDigitRuns("23104567890 98765432101", known)

	assert.Equal(t, []string{"98765432101"}, candidates)
}

func TestExtractDigitRunsLengthBounds(t *testing.T) {
	// 7 digits: below minimum. 15 digits: above maximum.
	candidates := extractDigitRuns("1234567 123456789012345 12345678", nil)

	assert.Equal(t, []string{"12345678"}, candidates)
}
