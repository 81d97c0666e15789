package models

import "time"

// Comment is one node of a post's reply tree. Parent/child relations are kept
// as ids (ParentID plus the comment_edges table), never as in-memory pointers.
type Comment struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	PostID   uint     `gorm:"not null;index" json:"post_id"`
	AuthorID uint     `gorm:"not null;index" json:"author_id"`
	Author   *Account `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	ParentID *uint    `gorm:"index" json:"parent_id,omitempty"`
	IsReply  bool     `gorm:"not null;default:false" json:"is_reply"`
	Content  string   `gorm:"type:text;not null" json:"content"`
	// Children is the ordered list of direct reply ids, loaded from comment_edges.
	Children  []uint    `gorm:"-" json:"children"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// CommentEdge links a parent comment to one of its direct replies.
type CommentEdge struct {
	ParentID  uint      `gorm:"primaryKey;autoIncrement:false"`
	ChildID   uint      `gorm:"primaryKey;autoIncrement:false;uniqueIndex"`
	CreatedAt time.Time `gorm:"index"`
}
