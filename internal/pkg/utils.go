package pkg

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// FileUtils groups filename and size helpers.
type FileUtils struct{}

// Files is the shared FileUtils instance.
var Files = FileUtils{}

// GetMimeType returns the MIME type for a filename based on its extension.
func (FileUtils) GetMimeType(filename string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(filename))
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

// SanitizeFilename strips path components and characters that would break
// derived paths or storage keys.
func (FileUtils) SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "." || filename == ".." || filename == string(filepath.Separator) {
		return ""
	}

	replacer := strings.NewReplacer("/", "_", "\\", "_", "\x00", "", "\n", "", "\r", "")
	return replacer.Replace(filename)
}

// FormatFileSize renders a byte count for humans.
func (FileUtils) FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
