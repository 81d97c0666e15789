package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPostAPI struct{ mock.Mock }

func (m *MockPostAPI) Publish(ctx context.Context, in service.PublishPostInput) (*models.Post, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostAPI) GetPost(ctx context.Context, in service.GetPostInput) (*models.Post, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostAPI) DeletePost(ctx context.Context, in service.DeletePostInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockPostAPI) ToggleLike(ctx context.Context, in service.ToggleLikeInput) (*service.LikeResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LikeResult), args.Error(1)
}

func (m *MockPostAPI) IsLikedByUser(ctx context.Context, userID, postID uint) (bool, error) {
	args := m.Called(ctx, userID, postID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostAPI) Feed(ctx context.Context, page, deletedDocCount int) ([]*models.Post, error) {
	args := m.Called(ctx, page, deletedDocCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostAPI) CountFeed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostAPI) Search(ctx context.Context, in service.SearchPostsInput) ([]*models.Post, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostAPI) CountSearch(ctx context.Context, in service.SearchPostsInput) (int64, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostAPI) ListAuthored(ctx context.Context, in service.AuthoredPostsInput) ([]*models.Post, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostAPI) CountAuthored(ctx context.Context, in service.AuthoredPostsInput) (int64, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(int64), args.Error(1)
}

type MockCommentAPI struct{ mock.Mock }

func (m *MockCommentAPI) CreateComment(ctx context.Context, in service.CreateCommentInput) (*models.Comment, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentAPI) DeleteComment(ctx context.Context, in service.DeleteCommentInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockCommentAPI) ListComments(ctx context.Context, postID uint, skip, limit int) ([]*models.Comment, error) {
	args := m.Called(ctx, postID, skip, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Comment), args.Error(1)
}

func (m *MockCommentAPI) CountComments(ctx context.Context, postID uint) (int64, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCommentAPI) ListReplies(ctx context.Context, commentID uint, skip, limit int) ([]*models.Comment, error) {
	args := m.Called(ctx, commentID, skip, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Comment), args.Error(1)
}

type MockNotificationAPI struct{ mock.Mock }

func (m *MockNotificationAPI) List(ctx context.Context, in service.ListNotificationsInput) ([]*models.Notification, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}

func (m *MockNotificationAPI) Count(ctx context.Context, userID uint, filter string) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationAPI) HasUnseen(ctx context.Context, userID uint) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type MockAccountAPI struct{ mock.Mock }

func (m *MockAccountAPI) SignInFederated(ctx context.Context, token string) (*models.Account, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

type testServer struct {
	srv           *Server
	app           *fiber.App
	verifier      *middleware.JWTVerifier
	posts         *MockPostAPI
	comments      *MockCommentAPI
	notifications *MockNotificationAPI
	accounts      *MockAccountAPI
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	v := middleware.NewJWTVerifier("test-secret", time.Hour)
	ts := &testServer{
		verifier:      v,
		posts:         new(MockPostAPI),
		comments:      new(MockCommentAPI),
		notifications: new(MockNotificationAPI),
		accounts:      new(MockAccountAPI),
	}
	ts.srv = &Server{
		config:          &config.Config{AllowedOrigins: "http://localhost:5173"},
		verifier:        v,
		issuer:          v,
		featureFlags:    featureflags.NewManager("read_counters=false"),
		postSvc:         ts.posts,
		commentSvc:      ts.comments,
		notificationSvc: ts.notifications,
		accountSvc:      ts.accounts,
	}
	ts.app = fiber.New()
	ts.srv.SetupRoutes(ts.app)
	return ts
}

func (ts *testServer) token(t *testing.T, userID uint) string {
	t.Helper()
	tok, err := ts.verifier.Issue(userID)
	require.NoError(t, err)
	return tok
}

// do sends a request, authenticated as userID when it is non-zero, and decodes a JSON body into out.
func (ts *testServer) do(t *testing.T, method, target string, userID uint, body string, out interface{}) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+ts.token(t, userID))
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
