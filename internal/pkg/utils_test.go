package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean name", "report.pdf", "report.pdf"},
		{"strips directories", "../../etc/passwd", "passwd"},
		{"trims whitespace", "  notes.txt  ", "notes.txt"},
		{"dot is rejected", ".", ""},
		{"dot dot is rejected", "..", ""},
		{"removes control characters", "we\nird\r.txt", "weird.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Files.SanitizeFilename(tt.input))
		})
	}
}

func TestGetMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", Files.GetMimeType("paper.pdf"))
	assert.Equal(t, "application/octet-stream", Files.GetMimeType("mystery.zzz"))
	assert.Equal(t, "application/octet-stream", Files.GetMimeType("noextension"))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", Files.FormatFileSize(512))
	assert.Equal(t, "1.00 KB", Files.FormatFileSize(1024))
	assert.Equal(t, "1.50 MB", Files.FormatFileSize(1536*1024))
	assert.Equal(t, "2.00 GB", Files.FormatFileSize(2*1024*1024*1024))
}
