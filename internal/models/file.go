package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileType is the coarse content classification used by listings and the
// storage reporter.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypePDF      FileType = "pdf"
	FileTypeNote     FileType = "note"
	FileTypeDocument FileType = "document"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeOther    FileType = "other"
)

// FileTypeFromMime classifies a MIME type into a FileType.
func FileTypeFromMime(mimeType string) FileType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return FileTypeImage
	case mimeType == "application/pdf":
		return FileTypePDF
	case strings.HasPrefix(mimeType, "text/plain"), strings.HasPrefix(mimeType, "text/markdown"):
		return FileTypeNote
	case strings.HasPrefix(mimeType, "text/"),
		strings.Contains(mimeType, "word"),
		strings.Contains(mimeType, "spreadsheet"),
		strings.Contains(mimeType, "presentation"),
		strings.Contains(mimeType, "opendocument"):
		return FileTypeDocument
	case strings.HasPrefix(mimeType, "video/"):
		return FileTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return FileTypeAudio
	default:
		return FileTypeOther
	}
}

type File struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name         string              `bson:"name" json:"name" validate:"required,min=1,max=255"`
	OriginalName string              `bson:"original_name" json:"originalName"`
	Type         FileType            `bson:"type" json:"type"`
	Size         int64               `bson:"size" json:"size"`
	StorageKey   string              `bson:"storage_key" json:"-"`
	URL          string              `bson:"url" json:"url"`
	Thumbnail    string              `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	MimeType     string              `bson:"mime_type" json:"mimeType"`
	UserID       primitive.ObjectID  `bson:"user_id" json:"userId"`
	FolderID     *primitive.ObjectID `bson:"folder_id,omitempty" json:"folderId,omitempty"`
	IsFavorite   bool                `bson:"is_favorite" json:"isFavorite"`
	IsTrashed    bool                `bson:"is_trashed" json:"isTrashed"`
	TrashedAt    *time.Time          `bson:"trashed_at,omitempty" json:"trashedAt,omitempty"`
	Tags         []string            `bson:"tags,omitempty" json:"tags,omitempty"`
	Description  string              `bson:"description,omitempty" json:"description,omitempty"`
	ShareToken   string              `bson:"share_token,omitempty" json:"-"`
	ShareExpire  *time.Time          `bson:"share_expire,omitempty" json:"shareExpire,omitempty"`
	IsShared     bool                `bson:"is_shared" json:"isShared"`
	Views        int64               `bson:"views" json:"views"`
	Downloads    int64               `bson:"downloads" json:"downloads"`
	Version      int64               `bson:"version" json:"-"`
	CreatedAt    time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updatedAt"`
}

// ShareActive reports whether the file's share link currently grants access.
// An expired or cleared token is equivalent to not shared; the stale token and
// expiry values may remain on the record until reissued.
func (f *File) ShareActive(now time.Time) bool {
	return f.IsShared && f.ShareToken != "" && f.ShareExpire != nil && f.ShareExpire.After(now)
}
