// Package models contains data structures for the application's domain models.
package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Post is a publishable article carrying the denormalized engagement counters.
// Counter columns are only ever changed through the ledger package.
type Post struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"size:200" json:"description"`
	Content     string     `gorm:"type:text" json:"content"`
	BannerURL   string     `json:"banner_url"`
	Tags        Tags       `gorm:"type:text" json:"tags"`
	AuthorID    uint       `gorm:"not null;index" json:"author_id"`
	Author      *Account   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Draft       bool       `gorm:"not null;default:false;index" json:"draft"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	TotalReads          int64 `gorm:"not null;default:0" json:"total_reads"`
	TotalLikes          int64 `gorm:"not null;default:0" json:"total_likes"`
	TotalComments       int64 `gorm:"not null;default:0" json:"total_comments"`
	TotalParentComments int64 `gorm:"not null;default:0" json:"total_parent_comments"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPublished reports whether the post has been published at least once.
func (p *Post) IsPublished() bool {
	return p.PublishedAt != nil
}

// Tags is stored as a comma separated column so the same schema runs on postgres and sqlite.
type Tags []string

// String joins tags for storage and LIKE matching.
func (t Tags) String() string {
	return "," + strings.Join(t, ",") + ","
}

// ParseTags is the inverse of Tags.String.
func ParseTags(raw string) Tags {
	raw = strings.Trim(raw, ",")
	if raw == "" {
		return Tags{}
	}
	return Tags(strings.Split(raw, ","))
}

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Tags{}
	case string:
		*t = ParseTags(v)
	case []byte:
		*t = ParseTags(string(v))
	default:
		return fmt.Errorf("tags: unsupported column type %T", src)
	}
	return nil
}
