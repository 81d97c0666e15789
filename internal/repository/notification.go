package repository

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// NotificationQuery selects a recipient's notifications. Filter is "all" or a
// notification type. Notifications a user triggered on their own content are excluded.
type NotificationQuery struct {
	RecipientID uint
	Filter      string
}

// NotificationRepository defines persistence for notifications.
type NotificationRepository interface {
	WithTx(tx *gorm.DB) NotificationRepository
	Create(ctx context.Context, n *models.Notification) error
	// SetReply records replyID as the answer to notificationID without touching other fields.
	SetReply(ctx context.Context, notificationID, replyID uint) error
	// DeleteForComment removes notifications raised for commentID and clears any
	// reply or replied-on reference to it. It returns the recipients of the removed rows.
	DeleteForComment(ctx context.Context, commentID uint) ([]uint, error)
	DeleteByPost(ctx context.Context, postID uint) ([]uint, error)
	List(ctx context.Context, q NotificationQuery, skip, limit int) ([]*models.Notification, error)
	Count(ctx context.Context, q NotificationQuery) (int64, error)
	HasUnseen(ctx context.Context, recipientID uint) (bool, error)
	MarkSeen(ctx context.Context, ids []uint) error
}

type notificationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db, log: observability.NewRepoLogger("notifications")}
}

func (r *notificationRepository) WithTx(tx *gorm.DB) NotificationRepository {
	return &notificationRepository{db: tx, log: r.log}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"notification_id": n.ID, "type": n.Type})
	return nil
}

func (r *notificationRepository) SetReply(ctx context.Context, notificationID, replyID uint) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", notificationID).
		UpdateColumn("reply_id", replyID)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", notificationID)
	}
	return nil
}

func (r *notificationRepository) DeleteForComment(ctx context.Context, commentID uint) ([]uint, error) {
	db := r.db.WithContext(ctx)
	recipients, err := r.recipients(ctx, "comment_id = ?", commentID)
	if err != nil {
		return nil, err
	}
	res := db.Where("comment_id = ?", commentID).Delete(&models.Notification{})
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if err := db.Model(&models.Notification{}).Where("reply_id = ?", commentID).
		UpdateColumn("reply_id", nil).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := db.Model(&models.Notification{}).Where("replied_on_comment_id = ?", commentID).
		UpdateColumn("replied_on_comment_id", nil).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"comment_id": commentID, "removed": res.RowsAffected})
	return recipients, nil
}

func (r *notificationRepository) DeleteByPost(ctx context.Context, postID uint) ([]uint, error) {
	recipients, err := r.recipients(ctx, "post_id = ?", postID)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Notification{}).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return recipients, nil
}

// recipients lists the distinct recipients of the notifications matching cond.
func (r *notificationRepository) recipients(ctx context.Context, cond string, args ...interface{}) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where(cond, args...).
		Distinct().
		Order("recipient_id").
		Pluck("recipient_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *notificationRepository) scope(ctx context.Context, q NotificationQuery) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND actor_id <> ?", q.RecipientID, q.RecipientID)
	if q.Filter != "" && q.Filter != "all" {
		db = db.Where("type = ?", q.Filter)
	}
	return db
}

func (r *notificationRepository) List(ctx context.Context, q NotificationQuery, skip, limit int) ([]*models.Notification, error) {
	defer observability.TrackQuery("list", "notifications")()
	var out []*models.Notification
	err := r.scope(ctx, q).
		Preload("Post", func(db *gorm.DB) *gorm.DB { return db.Select("id", "slug", "title") }).
		Preload("Actor", func(db *gorm.DB) *gorm.DB { return db.Select(models.AuthorColumns) }).
		Preload("Comment", func(db *gorm.DB) *gorm.DB { return db.Select("id", "content") }).
		Preload("RepliedOnComment", func(db *gorm.DB) *gorm.DB { return db.Select("id", "content") }).
		Preload("Reply", func(db *gorm.DB) *gorm.DB { return db.Select("id", "content") }).
		Order("created_at DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *notificationRepository) Count(ctx context.Context, q NotificationQuery) (int64, error) {
	var count int64
	if err := r.scope(ctx, q).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *notificationRepository) HasUnseen(ctx context.Context, recipientID uint) (bool, error) {
	var ids []uint
	err := r.scope(ctx, NotificationQuery{RecipientID: recipientID}).
		Where("seen = ?", false).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return len(ids) > 0, nil
}

func (r *notificationRepository) MarkSeen(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id IN ? AND seen = ?", ids, false).
		UpdateColumn("seen", true).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
