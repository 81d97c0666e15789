package repository

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines persistence for comments and their parent/child edges.
type CommentRepository interface {
	WithTx(tx *gorm.DB) CommentRepository
	Create(ctx context.Context, comment *models.Comment) error
	// GetByID returns the comment with its ordered Children ids.
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	// Lock re-reads the comment under a row lock for the rest of the transaction.
	Lock(ctx context.Context, id uint) error
	// AddChild appends childID to parentID's children list.
	AddChild(ctx context.Context, parentID, childID uint) error
	// RemoveChild unlinks childID from parentID's children list.
	RemoveChild(ctx context.Context, parentID, childID uint) error
	// ChildIDs returns parentID's direct children in insertion order.
	ChildIDs(ctx context.Context, parentID uint) ([]uint, error)
	// Delete removes the comment row and every edge touching it, so a cascade that
	// stops halfway never leaves a children list pointing at a deleted comment.
	// It reports whether a row was removed.
	Delete(ctx context.Context, id uint) (bool, error)
	ListTopLevel(ctx context.Context, postID uint, skip, limit int) ([]*models.Comment, error)
	CountTopLevel(ctx context.Context, postID uint) (int64, error)
	ListReplies(ctx context.Context, parentID uint, skip, limit int) ([]*models.Comment, error)
	// DeleteByPost removes every comment of postID together with their edges.
	DeleteByPost(ctx context.Context, postID uint) (int64, error)
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

func (r *commentRepository) WithTx(tx *gorm.DB) CommentRepository {
	return &commentRepository{db: tx, log: r.log}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"comment_id": comment.ID, "post_id": comment.PostID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, translate(err, "Comment", id)
	}
	children, err := r.ChildIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	comment.Children = children
	return &comment, nil
}

func (r *commentRepository) Lock(ctx context.Context, id uint) error {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&comment, id).Error
	if err != nil {
		return translate(err, "Comment", id)
	}
	return nil
}

func (r *commentRepository) AddChild(ctx context.Context, parentID, childID uint) error {
	edge := &models.CommentEdge{ParentID: parentID, ChildID: childID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(edge).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) RemoveChild(ctx context.Context, parentID, childID uint) error {
	err := r.db.WithContext(ctx).
		Where("parent_id = ? AND child_id = ?", parentID, childID).
		Delete(&models.CommentEdge{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) ChildIDs(ctx context.Context, parentID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&models.CommentEdge{}).
		Where("parent_id = ?", parentID).
		Order("created_at ASC, child_id ASC").
		Pluck("child_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) (bool, error) {
	defer observability.TrackQuery("delete", "comments")()
	if err := r.db.WithContext(ctx).Where("parent_id = ? OR child_id = ?", id, id).Delete(&models.CommentEdge{}).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return false, models.NewInternalError(res.Error)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"comment_id": id})
	return res.RowsAffected > 0, nil
}

// attachChildren loads the children lists of comments in one query.
func (r *commentRepository) attachChildren(ctx context.Context, comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]uint, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		c.Children = []uint{}
	}

	var edges []models.CommentEdge
	err := r.db.WithContext(ctx).
		Where("parent_id IN ?", ids).
		Order("created_at ASC, child_id ASC").
		Find(&edges).Error
	if err != nil {
		return models.NewInternalError(err)
	}

	byID := make(map[uint]*models.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}
	for _, e := range edges {
		if c, ok := byID[e.ParentID]; ok {
			c.Children = append(c.Children, e.ChildID)
		}
	}
	return nil
}

func (r *commentRepository) ListTopLevel(ctx context.Context, postID uint, skip, limit int) ([]*models.Comment, error) {
	defer observability.TrackQuery("list", "comments")()
	var comments []*models.Comment
	err := withAuthor(r.db.WithContext(ctx)).
		Where("post_id = ? AND is_reply = ?", postID, false).
		Order("created_at DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, r.attachChildren(ctx, comments)
}

func (r *commentRepository) CountTopLevel(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ? AND is_reply = ?", postID, false).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *commentRepository) ListReplies(ctx context.Context, parentID uint, skip, limit int) ([]*models.Comment, error) {
	defer observability.TrackQuery("list_replies", "comments")()
	var replies []*models.Comment
	err := withAuthor(r.db.WithContext(ctx)).
		Joins("JOIN comment_edges ON comment_edges.child_id = comments.id").
		Where("comment_edges.parent_id = ?", parentID).
		Order("comments.created_at DESC, comments.id DESC").
		Offset(skip).Limit(limit).
		Find(&replies).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return replies, r.attachChildren(ctx, replies)
}

func (r *commentRepository) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	ids := r.db.Model(&models.Comment{}).Select("id").Where("post_id = ?", postID)
	if err := r.db.WithContext(ctx).Where("parent_id IN (?)", ids).Delete(&models.CommentEdge{}).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	res := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
