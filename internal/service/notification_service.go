package service

import (
	"context"

	"inkwell/internal/cache"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Publisher pushes realtime events to a user.
type Publisher interface {
	PublishEvent(ctx context.Context, userID uint, ev notifications.Event) error
}

// NotificationService turns engagement events into stored notifications and serves
// a user's notification listing.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	publisher Publisher
	flags     *featureflags.Manager
	pageSize  int
}

type ListNotificationsInput struct {
	UserID          uint
	Filter          string
	Page            int
	DeletedDocCount int
}

// NewNotificationService wires the service. publisher and flags may be nil.
func NewNotificationService(
	notifRepo repository.NotificationRepository,
	publisher Publisher,
	flags *featureflags.Manager,
) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		publisher: publisher,
		flags:     flags,
		pageSize:  pagination.NotificationPageSize,
	}
}

// WithPageSize overrides the listing page size.
func (s *NotificationService) WithPageSize(n int) *NotificationService {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// OnComment notifies the post author about a new top-level comment.
func (s *NotificationService) OnComment(ctx context.Context, post *models.Post, actorID, commentID uint) error {
	n := &models.Notification{
		Type:        models.NotificationComment,
		PostID:      post.ID,
		RecipientID: post.AuthorID,
		ActorID:     actorID,
		CommentID:   &commentID,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return err
	}
	s.created(ctx, n)
	return nil
}

// OnReply notifies the author of repliedTo. When the reply was written from a
// notification, that notification gets the reply attached. Attaching is best
// effort: a stale originating id never costs the recipient their notification.
func (s *NotificationService) OnReply(
	ctx context.Context,
	post *models.Post,
	actorID uint,
	repliedTo *models.Comment,
	replyID uint,
	originatingNotificationID *uint,
) error {
	n := &models.Notification{
		Type:               models.NotificationReply,
		PostID:             post.ID,
		RecipientID:        repliedTo.AuthorID,
		ActorID:            actorID,
		CommentID:          &replyID,
		RepliedOnCommentID: &repliedTo.ID,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return err
	}
	s.created(ctx, n)

	if originatingNotificationID != nil {
		if err := s.notifRepo.SetReply(ctx, *originatingNotificationID, replyID); err != nil {
			observability.LogDrift(ctx, "notifications.set_reply", err, map[string]interface{}{
				"notification_id": *originatingNotificationID,
				"reply_id":        replyID,
			})
		}
	}
	return nil
}

// OnLike notifies the post author of a new like. Unliking leaves earlier
// notifications in place.
func (s *NotificationService) OnLike(ctx context.Context, post *models.Post, actorID uint, liked bool) error {
	if !liked {
		return nil
	}
	n := &models.Notification{
		Type:        models.NotificationLike,
		PostID:      post.ID,
		RecipientID: post.AuthorID,
		ActorID:     actorID,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return err
	}
	s.created(ctx, n)
	return nil
}

// OnCommentDeleted removes notifications raised for commentID and clears references
// to it, on the caller's transaction. The affected recipients are returned so the
// caller can call Removed once the transaction commits.
func (s *NotificationService) OnCommentDeleted(ctx context.Context, tx *gorm.DB, commentID uint) ([]uint, error) {
	return s.notifRepo.WithTx(tx).DeleteForComment(ctx, commentID)
}

// Removed drops the cached unseen flag of recipients whose notifications were deleted.
func (s *NotificationService) Removed(ctx context.Context, recipients []uint) {
	for _, id := range recipients {
		cache.InvalidateUnseen(ctx, id)
	}
}

func (s *NotificationService) created(ctx context.Context, n *models.Notification) {
	observability.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	cache.InvalidateUnseen(ctx, n.RecipientID)

	if s.publisher == nil || !s.flags.EnabledOr(featureflags.RealtimeNotifications, n.RecipientID, true) {
		return
	}
	if n.ActorID == n.RecipientID {
		return
	}
	ev := notifications.Event{
		Type: "notification",
		Payload: map[string]interface{}{
			"id":       n.ID,
			"type":     n.Type,
			"post_id":  n.PostID,
			"actor_id": n.ActorID,
		},
	}
	if err := s.publisher.PublishEvent(ctx, n.RecipientID, ev); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "realtime notification publish failed",
			"recipient_id", n.RecipientID, "error", err)
	}
}

func validateFilter(filter string) (string, error) {
	if filter == "" {
		return "all", nil
	}
	if !models.ValidNotificationFilter(filter) {
		return "", models.NewValidationError("filter must be one of all, like, comment, reply")
	}
	return filter, nil
}

// HasUnseen reports whether userID has any unseen notification.
func (s *NotificationService) HasUnseen(ctx context.Context, userID uint) (bool, error) {
	var unseen bool
	err := cache.Aside(ctx, cache.UnseenKey(userID), &unseen, cache.UnseenTTL, func() error {
		var err error
		unseen, err = s.notifRepo.HasUnseen(ctx, userID)
		return err
	})
	return unseen, err
}

// List returns one page of notifications, newest first, and marks exactly that page
// seen. The returned rows carry the seen state they had before the call.
func (s *NotificationService) List(ctx context.Context, in ListNotificationsInput) ([]*models.Notification, error) {
	span, ctx := observability.StartServiceSpan(ctx, "NotificationService", "List",
		attribute.Int64("user.id", int64(in.UserID)))
	defer span.End()

	filter, err := validateFilter(in.Filter)
	if err != nil {
		return nil, err
	}

	skip := pagination.ResolveSkip(in.Page, s.pageSize, in.DeletedDocCount)
	list, err := s.notifRepo.List(ctx, repository.NotificationQuery{RecipientID: in.UserID, Filter: filter}, skip, s.pageSize)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.markWindowSeen(ctx, in.UserID, list)
	return list, nil
}

// markWindowSeen flags the delivered notifications as seen. Notifications outside the
// window stay unseen until they are listed.
func (s *NotificationService) markWindowSeen(ctx context.Context, userID uint, window []*models.Notification) {
	ids := make([]uint, 0, len(window))
	for _, n := range window {
		if !n.Seen {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := s.notifRepo.MarkSeen(ctx, ids); err != nil {
		observability.LogDrift(ctx, "notifications.mark_seen", err, map[string]interface{}{"user_id": userID})
		return
	}
	cache.InvalidateUnseen(ctx, userID)
}

// Count returns the number of notifications matching filter.
func (s *NotificationService) Count(ctx context.Context, userID uint, filter string) (int64, error) {
	filter, err := validateFilter(filter)
	if err != nil {
		return 0, err
	}
	return s.notifRepo.Count(ctx, repository.NotificationQuery{RecipientID: userID, Filter: filter})
}
