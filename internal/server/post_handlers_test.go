package server

import (
	"errors"
	"net/http"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPublishPost(t *testing.T) {
	tests := []struct {
		name       string
		userID     uint
		body       string
		setup      func(m *MockPostAPI)
		wantStatus int
	}{
		{
			name:       "unauthenticated",
			body:       `{"title":"x"}`,
			setup:      func(m *MockPostAPI) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed body",
			userID:     7,
			body:       `{"title":`,
			setup:      func(m *MockPostAPI) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "new post",
			userID: 7,
			body:   `{"title":"Hello","description":"d","content":"c","tags":["go"]}`,
			setup: func(m *MockPostAPI) {
				m.On("Publish", mock.Anything, service.PublishPostInput{
					AuthorID: 7, Title: "Hello", Description: "d", Content: "c", Tags: []string{"go"},
				}).Return(&models.Post{ID: 1, Slug: "hello-abc", AuthorID: 7}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:   "edit by another user",
			userID: 8,
			body:   `{"id":1,"title":"Hello","draft":true}`,
			setup: func(m *MockPostAPI) {
				m.On("Publish", mock.Anything, mock.MatchedBy(func(in service.PublishPostInput) bool {
					return in.PostID != nil && *in.PostID == 1 && in.AuthorID == 8 && in.Draft
				})).Return(nil, models.NewPermissionError("not yours"))
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:   "validation",
			userID: 7,
			body:   `{"title":""}`,
			setup: func(m *MockPostAPI) {
				m.On("Publish", mock.Anything, mock.Anything).Return(nil, models.NewValidationError("Title is required"))
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			tt.setup(ts.posts)

			status := ts.do(t, http.MethodPost, "/api/posts", tt.userID, tt.body, nil)
			assert.Equal(t, tt.wantStatus, status)
			ts.posts.AssertExpectations(t)
		})
	}
}

func TestGetPost(t *testing.T) {
	t.Run("anonymous read", func(t *testing.T) {
		ts := newTestServer(t)
		ts.posts.On("GetPost", mock.Anything, service.GetPostInput{Slug: "hello-abc"}).
			Return(&models.Post{ID: 1, Slug: "hello-abc", TotalReads: 3}, nil)

		var got models.Post
		status := ts.do(t, http.MethodGet, "/api/posts/hello-abc", 0, "", &got)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, int64(3), got.TotalReads)
	})

	t.Run("edit mode carries the viewer", func(t *testing.T) {
		ts := newTestServer(t)
		ts.posts.On("GetPost", mock.Anything, service.GetPostInput{Slug: "hello-abc", ViewerID: 7, Mode: service.ReadModeEdit}).
			Return(&models.Post{ID: 1, Slug: "hello-abc", Draft: true}, nil)

		status := ts.do(t, http.MethodGet, "/api/posts/hello-abc?mode=edit", 7, "", nil)
		assert.Equal(t, http.StatusOK, status)
		ts.posts.AssertExpectations(t)
	})

	t.Run("missing", func(t *testing.T) {
		ts := newTestServer(t)
		ts.posts.On("GetPost", mock.Anything, mock.Anything).Return(nil, models.NewNotFoundError("Post", "nope"))

		var got models.ErrorResponse
		status := ts.do(t, http.MethodGet, "/api/posts/nope", 0, "", &got)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, models.CodeNotFound, got.Code)
	})
}

func TestGetFeed_ReturnsPageWithTotals(t *testing.T) {
	ts := newTestServer(t)
	ts.posts.On("Feed", mock.Anything, 2, 1).Return([]*models.Post{{ID: 4}, {ID: 3}}, nil)
	ts.posts.On("CountFeed", mock.Anything).Return(int64(9), nil)

	var got struct {
		Results         []models.Post `json:"results"`
		Page            int           `json:"page"`
		TotalDocs       int           `json:"total_docs"`
		DeletedDocCount int           `json:"deleted_doc_count"`
	}
	status := ts.do(t, http.MethodGet, "/api/posts?page=2&deleted_doc_count=1", 0, "", &got)

	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, got.Results, 2)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 9, got.TotalDocs)
	assert.Equal(t, 1, got.DeletedDocCount)
}

func TestSearchPosts_RoutesBeforeSlug(t *testing.T) {
	ts := newTestServer(t)
	in := service.SearchPostsInput{Tag: "go", Page: 1}
	ts.posts.On("Search", mock.Anything, in).Return([]*models.Post{{ID: 1}}, nil)
	ts.posts.On("CountSearch", mock.Anything, in).Return(int64(1), nil)

	var list []models.Post
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/posts/search?tag=go", 0, "", &list))
	assert.Len(t, list, 1)

	var count map[string]int64
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/posts/search/count?tag=go", 0, "", &count))
	assert.Equal(t, int64(1), count["total_docs"])
	ts.posts.AssertNotCalled(t, "GetPost", mock.Anything, mock.Anything)
}

func TestGetAuthoredPosts_DraftsForOthersForbidden(t *testing.T) {
	ts := newTestServer(t)
	ts.posts.On("ListAuthored", mock.Anything, service.AuthoredPostsInput{AuthorID: 7, ViewerID: 8, Draft: true, Page: 1}).
		Return(nil, models.NewPermissionError("drafts are private"))

	status := ts.do(t, http.MethodGet, "/api/users/7/posts?draft=true", 8, "", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestDeletePost(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		call       bool
		wantStatus int
	}{
		{"ok", "/api/posts/5", nil, true, http.StatusNoContent},
		{"not owner", "/api/posts/5", models.NewPermissionError("no"), true, http.StatusForbidden},
		{"bad id", "/api/posts/abc", nil, false, http.StatusBadRequest},
		{"unexpected error", "/api/posts/5", errors.New("boom"), true, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			if tt.call {
				ts.posts.On("DeletePost", mock.Anything, service.DeletePostInput{PostID: 5, RequesterID: 3}).Return(tt.err)
			}
			assert.Equal(t, tt.wantStatus, ts.do(t, http.MethodDelete, tt.target, 3, "", nil))
			ts.posts.AssertExpectations(t)
		})
	}
}

func TestToggleLikeAndLiked(t *testing.T) {
	ts := newTestServer(t)
	ts.posts.On("ToggleLike", mock.Anything, service.ToggleLikeInput{UserID: 3, PostID: 5}).Return(&service.LikeResult{Liked: true, TotalLikes: 4}, nil)
	ts.posts.On("IsLikedByUser", mock.Anything, uint(3), uint(5)).Return(true, nil)

	var res service.LikeResult
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/posts/5/like", 3, "", &res))
	assert.True(t, res.Liked)
	assert.Equal(t, int64(4), res.TotalLikes)

	var liked map[string]bool
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/posts/5/liked", 3, "", &liked))
	assert.True(t, liked["liked"])
}

func TestToggleLikePassesClientState(t *testing.T) {
	ts := newTestServer(t)
	shown := false
	ts.posts.On("ToggleLike", mock.Anything, service.ToggleLikeInput{UserID: 3, PostID: 5, CurrentlyLiked: &shown}).
		Return(&service.LikeResult{Liked: true, TotalLikes: 1}, nil)

	var res service.LikeResult
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/posts/5/like", 3, `{"currently_liked":false}`, &res))
	assert.True(t, res.Liked)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/posts/5/like", 3, `{"currently_liked":`, nil))
	ts.posts.AssertExpectations(t)
	ts.posts.AssertNumberOfCalls(t, "ToggleLike", 1)
}
