package repository

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type commentFixture struct {
	db     *gorm.DB
	repo   CommentRepository
	post   *models.Post
	author *models.Account
}

func newCommentFixture(t *testing.T) *commentFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	author := testutil.CreateAccount(t, db, "author")
	return &commentFixture{
		db:     db,
		repo:   NewCommentRepository(db),
		post:   testutil.CreatePost(t, db, author.ID, "thread", true),
		author: author,
	}
}

func (f *commentFixture) add(t *testing.T, parent *models.Comment, content string) *models.Comment {
	t.Helper()
	ctx := context.Background()
	c := &models.Comment{PostID: f.post.ID, AuthorID: f.author.ID, Content: content}
	if parent != nil {
		c.ParentID = &parent.ID
		c.IsReply = true
	}
	require.NoError(t, f.repo.Create(ctx, c))
	if parent != nil {
		require.NoError(t, f.repo.AddChild(ctx, parent.ID, c.ID))
	}
	return c
}

func TestCommentRepository_ChildrenOrder(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()

	root := f.add(t, nil, "root")
	a := f.add(t, root, "a")
	b := f.add(t, root, "b")
	c := f.add(t, root, "c")

	got, err := f.repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID, c.ID}, got.Children)

	require.NoError(t, f.repo.AddChild(ctx, root.ID, a.ID), "re-adding an edge is a no-op")
	ids, err := f.repo.ChildIDs(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	require.NoError(t, f.repo.RemoveChild(ctx, root.ID, b.ID))
	ids, err = f.repo.ChildIDs(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, c.ID}, ids)
}

func TestCommentRepository_ListRepliesNewestFirst(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()

	root := f.add(t, nil, "root")
	first := f.add(t, root, "first")
	second := f.add(t, root, "second")
	f.add(t, first, "grandchild")

	replies, err := f.repo.ListReplies(ctx, root.ID, 0, 5)
	require.NoError(t, err)
	require.Len(t, replies, 2, "direct children only")
	assert.Equal(t, second.ID, replies[0].ID)
	assert.Equal(t, first.ID, replies[1].ID)
	require.NotNil(t, replies[0].Author)
	assert.Equal(t, "author", replies[0].Author.Username)
	assert.Len(t, replies[1].Children, 1)

	page2, err := f.repo.ListReplies(ctx, root.ID, 1, 5)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, first.ID, page2[0].ID)
}

func TestCommentRepository_ListTopLevel(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()

	older := f.add(t, nil, "older")
	newer := f.add(t, nil, "newer")
	f.add(t, older, "reply")

	list, err := f.repo.ListTopLevel(ctx, f.post.ID, 0, 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
	assert.Len(t, list[1].Children, 1)

	n, err := f.repo.CountTopLevel(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCommentRepository_DeleteRemovesEdges(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()

	root := f.add(t, nil, "root")
	mid := f.add(t, root, "mid")
	f.add(t, mid, "leaf")

	removed, err := f.repo.Delete(ctx, mid.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	ids, err := f.repo.ChildIDs(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, ids, "no dangling reference from the parent")

	var edges int64
	require.NoError(t, f.db.Model(&models.CommentEdge{}).Where("parent_id = ?", mid.ID).Count(&edges).Error)
	assert.Zero(t, edges)

	removed, err = f.repo.Delete(ctx, mid.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = f.repo.GetByID(ctx, mid.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCommentRepository_DeleteByPost(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()

	root := f.add(t, nil, "root")
	f.add(t, root, "reply")

	n, err := f.repo.DeleteByPost(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var edges int64
	require.NoError(t, f.db.Model(&models.CommentEdge{}).Count(&edges).Error)
	assert.Zero(t, edges)
}

func TestCommentRepository_LockInsideTransaction(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()
	root := f.add(t, nil, "root")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.repo.WithTx(tx).Lock(ctx, root.ID)
	})
	require.NoError(t, err)

	_, err = f.repo.Delete(ctx, root.ID)
	require.NoError(t, err)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		return f.repo.WithTx(tx).Lock(ctx, root.ID)
	})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
