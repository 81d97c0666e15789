package service

import (
	"context"
	"sync"
	"testing"

	"inkwell/internal/featureflags"
	"inkwell/internal/ledger"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingPublisher captures realtime events instead of sending them.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[uint][]notifications.Event
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, userID uint, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[uint][]notifications.Event)
	}
	p.events[userID] = append(p.events[userID], ev)
	return p.err
}

func (p *recordingPublisher) count(userID uint) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[userID])
}

// testEnv wires every service against one in-memory database.
type testEnv struct {
	db        *gorm.DB
	comments  repository.CommentRepository
	posts     repository.PostRepository
	likes     repository.LikeRepository
	notifs    repository.NotificationRepository
	accounts  repository.AccountRepository
	publisher *recordingPublisher

	notificationSvc *NotificationService
	commentSvc      *CommentService
	postSvc         *PostService
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	env := &testEnv{
		db:        db,
		comments:  repository.NewCommentRepository(db),
		posts:     repository.NewPostRepository(db),
		likes:     repository.NewLikeRepository(db),
		notifs:    repository.NewNotificationRepository(db),
		accounts:  repository.NewAccountRepository(db),
		publisher: &recordingPublisher{},
	}
	ff := featureflags.NewManager(flags)
	l := ledger.New()
	env.notificationSvc = NewNotificationService(env.notifs, env.publisher, ff)
	env.commentSvc = NewCommentService(db, env.comments, env.posts, l, env.notificationSvc)
	env.postSvc = NewPostService(db, env.posts, env.likes, env.comments, env.notifs, l, env.notificationSvc, ff)
	return env
}

func (e *testEnv) reloadPost(t *testing.T, id uint) *models.Post {
	t.Helper()
	var p models.Post
	require.NoError(t, e.db.First(&p, id).Error)
	return &p
}

func (e *testEnv) reloadAccount(t *testing.T, id uint) *models.Account {
	t.Helper()
	var a models.Account
	require.NoError(t, e.db.First(&a, id).Error)
	return &a
}

func (e *testEnv) notificationsFor(t *testing.T, recipientID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, e.db.Where("recipient_id = ?", recipientID).Order("id").Find(&out).Error)
	return out
}

func (e *testEnv) comment(t *testing.T, postID, authorID uint, parentID *uint, content string) *models.Comment {
	t.Helper()
	c, err := e.commentSvc.CreateComment(context.Background(), CreateCommentInput{
		PostID:   postID,
		AuthorID: authorID,
		ParentID: parentID,
		Content:  content,
	})
	require.NoError(t, err)
	return c
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code, appErr.Error())
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func ptr(v uint) *uint { return &v }
