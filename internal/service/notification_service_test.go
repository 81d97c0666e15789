package service

import (
	"context"
	"errors"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNotifications(t *testing.T, env *testEnv, recipientID, actorID, postID uint, n int) []*models.Notification {
	t.Helper()
	out := make([]*models.Notification, 0, n)
	for i := 0; i < n; i++ {
		commentID := uint(1000 + i)
		notif := &models.Notification{
			Type:        models.NotificationComment,
			PostID:      postID,
			RecipientID: recipientID,
			ActorID:     actorID,
			CommentID:   &commentID,
		}
		require.NoError(t, env.notifs.Create(context.Background(), notif))
		out = append(out, notif)
	}
	return out
}

func TestNotificationService_ListMarksOnlyTheWindowSeen(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	ctx := context.Background()
	reader := testutil.CreateAccount(t, env.db, "reader")
	actor := testutil.CreateAccount(t, env.db, "actor")
	post := testutil.CreatePost(t, env.db, reader.ID, "inbox", true)

	seeded := seedNotifications(t, env, reader.ID, actor.ID, post.ID, 12)
	seedNotifications(t, env, reader.ID, reader.ID, post.ID, 1)

	total, err := env.notificationSvc.Count(ctx, reader.ID, "all")
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	first, err := env.notificationSvc.List(ctx, ListNotificationsInput{UserID: reader.ID, Filter: "all", Page: 1})
	require.NoError(t, err)
	require.Len(t, first, 10)
	assert.Equal(t, seeded[11].ID, first[0].ID)
	for _, n := range first {
		assert.False(t, n.Seen, "rows keep the state they had when listed")
		require.NotNil(t, n.Actor)
		assert.Equal(t, "actor", n.Actor.Username)
	}

	var unseen int64
	require.NoError(t, env.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND actor_id <> ? AND seen = ?", reader.ID, reader.ID, false).
		Count(&unseen).Error)
	assert.Equal(t, int64(2), unseen)

	has, err := env.notificationSvc.HasUnseen(ctx, reader.ID)
	require.NoError(t, err)
	assert.True(t, has)

	second, err := env.notificationSvc.List(ctx, ListNotificationsInput{UserID: reader.ID, Filter: "all", Page: 2})
	require.NoError(t, err)
	assert.Len(t, second, 2)

	has, err = env.notificationSvc.HasUnseen(ctx, reader.ID)
	require.NoError(t, err)
	assert.False(t, has)

	// Two loaded notifications were removed client-side, so page 2 starts at offset 8.
	shifted, err := env.notificationSvc.List(ctx, ListNotificationsInput{UserID: reader.ID, Page: 2, DeletedDocCount: 2})
	require.NoError(t, err)
	assert.Len(t, shifted, 4)
}

func TestNotificationService_Filters(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	ctx := context.Background()
	reader := testutil.CreateAccount(t, env.db, "reader")
	post := testutil.CreatePost(t, env.db, reader.ID, "filters", true)
	seedNotifications(t, env, reader.ID, 77, post.ID, 3)

	tests := []struct {
		filter string
		want   int64
	}{
		{"", 3},
		{"all", 3},
		{"comment", 3},
		{"like", 0},
		{"reply", 0},
	}
	for _, tt := range tests {
		got, err := env.notificationSvc.Count(ctx, reader.ID, tt.filter)
		require.NoError(t, err, tt.filter)
		assert.Equal(t, tt.want, got, tt.filter)
	}

	_, err := env.notificationSvc.Count(ctx, reader.ID, "mentions")
	assertValidationError(t, err)
	_, err = env.notificationSvc.List(ctx, ListNotificationsInput{UserID: reader.ID, Filter: "mentions"})
	assertValidationError(t, err)
}

func TestNotificationService_OnLike(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	ctx := context.Background()
	author := testutil.CreateAccount(t, env.db, "author")
	fan := testutil.CreateAccount(t, env.db, "fan")
	post := testutil.CreatePost(t, env.db, author.ID, "liked", true)

	require.NoError(t, env.notificationSvc.OnLike(ctx, post, fan.ID, true))
	require.NoError(t, env.notificationSvc.OnLike(ctx, post, fan.ID, false))

	notifs := env.notificationsFor(t, author.ID)
	require.Len(t, notifs, 1)
	assert.Equal(t, models.NotificationLike, notifs[0].Type)
	assert.Nil(t, notifs[0].CommentID)
	assert.Equal(t, 1, env.publisher.count(author.ID))
}

func TestNotificationService_RealtimeIsBestEffortAndFlagged(t *testing.T) {
	t.Parallel()

	t.Run("publish error does not fail creation", func(t *testing.T) {
		env := newTestEnv(t, "")
		env.publisher.err = errors.New("redis down")
		author := testutil.CreateAccount(t, env.db, "author")
		post := testutil.CreatePost(t, env.db, author.ID, "p", true)

		require.NoError(t, env.notificationSvc.OnComment(context.Background(), post, 99, 5))
		assert.Len(t, env.notificationsFor(t, author.ID), 1)
	})

	t.Run("flag off skips publish", func(t *testing.T) {
		env := newTestEnv(t, "realtime_notifications=off")
		author := testutil.CreateAccount(t, env.db, "author")
		post := testutil.CreatePost(t, env.db, author.ID, "p", true)

		require.NoError(t, env.notificationSvc.OnLike(context.Background(), post, 99, true))
		assert.Len(t, env.notificationsFor(t, author.ID), 1)
		assert.Equal(t, 0, env.publisher.count(author.ID))
	})

	t.Run("self notifications are stored but not pushed", func(t *testing.T) {
		env := newTestEnv(t, "")
		author := testutil.CreateAccount(t, env.db, "author")
		post := testutil.CreatePost(t, env.db, author.ID, "p", true)

		require.NoError(t, env.notificationSvc.OnLike(context.Background(), post, author.ID, true))
		assert.Len(t, env.notificationsFor(t, author.ID), 1)
		assert.Equal(t, 0, env.publisher.count(author.ID))
	})
}

func TestNotificationService_HasUnseenIsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	env := newTestEnv(t, "")
	ctx := context.Background()
	reader := testutil.CreateAccount(t, env.db, "reader")
	post := testutil.CreatePost(t, env.db, reader.ID, "cached", true)

	has, err := env.notificationSvc.HasUnseen(ctx, reader.ID)
	require.NoError(t, err)
	assert.False(t, has)
	assert.True(t, mr.Exists(cache.UnseenKey(reader.ID)))

	// Creating a notification drops the cached flag.
	require.NoError(t, env.notificationSvc.OnLike(ctx, post, 42, true))
	assert.False(t, mr.Exists(cache.UnseenKey(reader.ID)))

	has, err = env.notificationSvc.HasUnseen(ctx, reader.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestNotificationService_DeletionsDropCachedUnseen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	env := newTestEnv(t, "")
	ctx := context.Background()
	author := testutil.CreateAccount(t, env.db, "author")
	fan := testutil.CreateAccount(t, env.db, "fan")
	post := testutil.CreatePost(t, env.db, author.ID, "cached", true)

	t.Run("comment cascade", func(t *testing.T) {
		c := env.comment(t, post.ID, fan.ID, nil, "hello")
		has, err := env.notificationSvc.HasUnseen(ctx, author.ID)
		require.NoError(t, err)
		require.True(t, has)
		require.True(t, mr.Exists(cache.UnseenKey(author.ID)))

		require.NoError(t, env.commentSvc.DeleteComment(ctx, DeleteCommentInput{CommentID: c.ID, RequesterID: fan.ID}))
		assert.False(t, mr.Exists(cache.UnseenKey(author.ID)))

		has, err = env.notificationSvc.HasUnseen(ctx, author.ID)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("post delete", func(t *testing.T) {
		_, err := env.postSvc.ToggleLike(ctx, ToggleLikeInput{UserID: fan.ID, PostID: post.ID})
		require.NoError(t, err)
		has, err := env.notificationSvc.HasUnseen(ctx, author.ID)
		require.NoError(t, err)
		require.True(t, has)

		require.NoError(t, env.postSvc.DeletePost(ctx, DeletePostInput{PostID: post.ID, RequesterID: author.ID}))
		assert.False(t, mr.Exists(cache.UnseenKey(author.ID)))

		has, err = env.notificationSvc.HasUnseen(ctx, author.ID)
		require.NoError(t, err)
		assert.False(t, has)
	})
}
