package models

import "time"

// Account is a platform user together with its authored-content counters.
type Account struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"uniqueIndex;not null" json:"username"`
	Fullname   string    `gorm:"not null" json:"fullname"`
	Email      string    `gorm:"uniqueIndex;not null" json:"-"`
	ProfileImg string    `json:"profile_img"`
	Bio        string    `gorm:"size:200" json:"bio,omitempty"`
	TotalPosts int64     `gorm:"not null;default:0" json:"total_posts"`
	TotalReads int64     `gorm:"not null;default:0" json:"total_reads"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuthorColumns are the minimal display fields resolved for comment and notification authors.
var AuthorColumns = []string{"id", "username", "fullname", "profile_img"}
