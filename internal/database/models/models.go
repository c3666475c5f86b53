package models

import (
	"path"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID           uint                         `gorm:"primaryKey" json:"id"`
	Username     string                       `gorm:"uniqueIndex;not null;size:50" json:"username"`
	Email        string                       `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string                       `gorm:"not null;size:255" json:"-"`
	IsAdmin      bool                         `gorm:"not null;default:false" json:"is_admin"`
	Permissions  datatypes.JSONType[[]string] `json:"permissions"` // Capability codes, see permissions.go
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
	DeletedAt    gorm.DeletedAt               `gorm:"index" json:"-"`
}

// AssetKind discriminates folders from files in the assets table.
type AssetKind string

const (
	KindFolder AssetKind = "folder"
	KindFile   AssetKind = "file"
)

// Asset is a node of the file tree. Folders and files share one table so that
// IDs are unique across both and a listing can mix them in one ordered sequence.
//
// Filename is the full slash separated path ("Photos/2024/cat.jpg") and is unique.
// Rows are hard deleted: a soft-deleted row would keep holding its filename.
type Asset struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Kind        AssetKind `gorm:"not null;size:10;index" json:"kind"`
	ParentID    uint      `gorm:"not null;default:0;index" json:"parent_id"` // 0 = root
	Name        string    `gorm:"not null;size:255" json:"name"`
	Title       string    `gorm:"not null;size:255" json:"title"`
	Filename    string    `gorm:"not null;size:1024;uniqueIndex" json:"filename"`
	OwnerID     uint      `gorm:"not null;default:0;index" json:"owner_id"`
	Private     bool      `gorm:"not null;default:false" json:"private"` // Only owner and admins may view
	FileSize    int64     `gorm:"not null;default:0" json:"file_size"`
	MimeType    string    `gorm:"size:100" json:"mime_type,omitempty"`
	StoragePath string    `gorm:"size:1024;index" json:"-"` // Blob key in the storage backend
	Hash        string    `gorm:"size:64" json:"hash,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a *Asset) IsFolder() bool {
	return a.Kind == KindFolder
}

// Extension returns the lowercased extension of Name without the dot.
// Folders have no extension.
func (a *Asset) Extension() string {
	if a.IsFolder() {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(a.Name), "."))
}

// DisplayTitle falls back to Name for records stored without a title.
func (a *Asset) DisplayTitle() string {
	if a.Title != "" {
		return a.Title
	}
	return a.Name
}
