package models

import "time"

// NotificationType enumerates the events a user can be notified about.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationReply   NotificationType = "reply"
)

// Notification informs RecipientID that ActorID interacted with their content.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Type        NotificationType `gorm:"type:varchar(16);not null;index" json:"type"`
	PostID      uint             `gorm:"not null;index" json:"post_id"`
	Post        *Post            `gorm:"foreignKey:PostID" json:"post,omitempty"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_seen" json:"recipient_id"`
	ActorID     uint             `gorm:"not null" json:"actor_id"`
	Actor       *Account         `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	// CommentID is the comment (or reply) this notification was raised for.
	CommentID *uint    `gorm:"index" json:"comment_id,omitempty"`
	Comment   *Comment `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
	// RepliedOnCommentID is the comment that received the reply.
	RepliedOnCommentID *uint    `json:"replied_on_comment_id,omitempty"`
	RepliedOnComment   *Comment `gorm:"foreignKey:RepliedOnCommentID" json:"replied_on_comment,omitempty"`
	// ReplyID is set when the recipient answered straight from this notification.
	ReplyID   *uint     `gorm:"index" json:"reply_id,omitempty"`
	Reply     *Comment  `gorm:"foreignKey:ReplyID" json:"reply,omitempty"`
	Seen      bool      `gorm:"not null;default:false;index:idx_notifications_recipient_seen" json:"seen"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// ValidNotificationFilter reports whether f is "all" or a known notification type.
func ValidNotificationFilter(f string) bool {
	switch NotificationType(f) {
	case NotificationLike, NotificationComment, NotificationReply:
		return true
	}
	return f == "all"
}
