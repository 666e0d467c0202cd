package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultFolderColor matches the client's default folder tint.
const DefaultFolderColor = "#3b82f6"

type Folder struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name       string              `bson:"name" json:"name" validate:"required,min=1,max=255"`
	UserID     primitive.ObjectID  `bson:"user_id" json:"userId"`
	ParentID   *primitive.ObjectID `bson:"parent_id,omitempty" json:"parentId,omitempty"`
	Path       string              `bson:"path" json:"path"`
	Color      string              `bson:"color" json:"color"`
	Icon       string              `bson:"icon,omitempty" json:"icon,omitempty"`
	IsFavorite bool                `bson:"is_favorite" json:"isFavorite"`
	IsTrashed  bool                `bson:"is_trashed" json:"isTrashed"`
	TrashedAt  *time.Time          `bson:"trashed_at,omitempty" json:"trashedAt,omitempty"`
	Version    int64               `bson:"version" json:"-"`
	CreatedAt  time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updated_at" json:"updatedAt"`
}

// ChildPath derives the path of a child named name under this folder.
func (f *Folder) ChildPath(name string) string {
	return f.Path + "/" + name
}

// RootPath derives the path of a top-level folder named name.
func RootPath(name string) string {
	return "/" + name
}
