package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileTypeFromMime(t *testing.T) {
	tests := []struct {
		mime     string
		expected FileType
	}{
		{"image/png", FileTypeImage},
		{"application/pdf", FileTypePDF},
		{"text/plain", FileTypeNote},
		{"text/plain; charset=utf-8", FileTypeNote},
		{"text/markdown", FileTypeNote},
		{"text/csv", FileTypeDocument},
		{"application/vnd.oasis.opendocument.text", FileTypeDocument},
		{"video/mp4", FileTypeVideo},
		{"audio/mpeg", FileTypeAudio},
		{"application/zip", FileTypeOther},
		{"", FileTypeOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FileTypeFromMime(tt.mime), "mime %q", tt.mime)
	}
}

func TestShareActive(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	active := &File{IsShared: true, ShareToken: "tok", ShareExpire: &future}
	assert.True(t, active.ShareActive(now))

	expired := &File{IsShared: true, ShareToken: "tok", ShareExpire: &past}
	assert.False(t, expired.ShareActive(now))

	// Revoked shares keep their stale token but lose the flag.
	revoked := &File{IsShared: false, ShareToken: "tok", ShareExpire: &future}
	assert.False(t, revoked.ShareActive(now))

	noExpiry := &File{IsShared: true, ShareToken: "tok"}
	assert.False(t, noExpiry.ShareActive(now))
}

func TestPathDerivation(t *testing.T) {
	assert.Equal(t, "/Docs", RootPath("Docs"))

	parent := &Folder{Path: "/Docs/2026"}
	assert.Equal(t, "/Docs/2026/Taxes", parent.ChildPath("Taxes"))
}

func TestStoragePercentage(t *testing.T) {
	u := &User{StorageUsed: 1, StorageLimit: 3}
	assert.InDelta(t, 33.33, u.StoragePercentage(), 0.001)

	assert.Equal(t, float64(0), (&User{StorageUsed: 10}).StoragePercentage())
	assert.Equal(t, float64(100), (&User{StorageUsed: 5, StorageLimit: 5}).StoragePercentage())
}
