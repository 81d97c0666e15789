package ledger

import (
	"context"
	"fmt"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

const (
	commentCountSQL       = "(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)"
	parentCommentCountSQL = "(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.parent_id IS NULL)"
	likeCountSQL          = "(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id)"
	publishedCountSQL     = "(SELECT COUNT(*) FROM posts WHERE posts.author_id = accounts.id AND posts.published_at IS NOT NULL)"
)

// Report summarizes a reconciliation run.
type Report struct {
	PostsChecked     int
	PostsRepaired    int64
	AccountsChecked  int
	AccountsRepaired int64
}

// Reconciler recomputes counters from source rows, repairing any drift left by
// failed secondary steps or partial cascades. Read counters have no source rows
// and are left as they are.
type Reconciler struct {
	db        *gorm.DB
	batchSize int
}

// NewReconciler returns a Reconciler that walks tables batchSize rows at a time.
func NewReconciler(db *gorm.DB, batchSize int) *Reconciler {
	if batchSize < 1 {
		batchSize = 100
	}
	return &Reconciler{db: db, batchSize: batchSize}
}

// ReconcilePost repairs the comment, parent-comment and like counters of one post.
// It reports whether anything changed.
func (r *Reconciler) ReconcilePost(ctx context.Context, postID uint) (bool, error) {
	n, err := r.repairPosts(ctx, r.db.Where("id = ?", postID))
	return n > 0, err
}

// ReconcileAccount repairs an account's total_posts.
func (r *Reconciler) ReconcileAccount(ctx context.Context, accountID uint) (bool, error) {
	n, err := r.repairAccounts(ctx, r.db.Where("id = ?", accountID))
	return n > 0, err
}

// ReconcileAll repairs every post and account in batches.
func (r *Reconciler) ReconcileAll(ctx context.Context) (Report, error) {
	var report Report

	var posts []models.Post
	res := r.db.WithContext(ctx).Select("id").Order("id").
		FindInBatches(&posts, r.batchSize, func(batch *gorm.DB, _ int) error {
			ids := make([]uint, len(posts))
			for i, p := range posts {
				ids[i] = p.ID
			}
			n, err := r.repairPosts(ctx, r.db.Where("id IN ?", ids))
			report.PostsChecked += len(ids)
			report.PostsRepaired += n
			return err
		})
	if res.Error != nil {
		return report, fmt.Errorf("reconcile posts: %w", res.Error)
	}

	var accounts []models.Account
	res = r.db.WithContext(ctx).Select("id").Order("id").
		FindInBatches(&accounts, r.batchSize, func(batch *gorm.DB, _ int) error {
			ids := make([]uint, len(accounts))
			for i, a := range accounts {
				ids[i] = a.ID
			}
			n, err := r.repairAccounts(ctx, r.db.Where("id IN ?", ids))
			report.AccountsChecked += len(ids)
			report.AccountsRepaired += n
			return err
		})
	if res.Error != nil {
		return report, fmt.Errorf("reconcile accounts: %w", res.Error)
	}

	return report, nil
}

// repairPosts rewrites mismatching counters in a single statement so concurrent
// ledger updates are never overwritten with a stale read.
func (r *Reconciler) repairPosts(ctx context.Context, scope *gorm.DB) (int64, error) {
	res := scope.WithContext(ctx).Model(&models.Post{}).
		Where("total_comments <> "+commentCountSQL+
			" OR total_parent_comments <> "+parentCommentCountSQL+
			" OR total_likes <> "+likeCountSQL).
		UpdateColumns(map[string]interface{}{
			"total_comments":        gorm.Expr(commentCountSQL),
			"total_parent_comments": gorm.Expr(parentCommentCountSQL),
			"total_likes":           gorm.Expr(likeCountSQL),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		observability.ReconcileRepairs.WithLabelValues("post").Add(float64(res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (r *Reconciler) repairAccounts(ctx context.Context, scope *gorm.DB) (int64, error) {
	res := scope.WithContext(ctx).Model(&models.Account{}).
		Where("total_posts <> " + publishedCountSQL).
		UpdateColumn("total_posts", gorm.Expr(publishedCountSQL))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		observability.ReconcileRepairs.WithLabelValues("account").Add(float64(res.RowsAffected))
	}
	return res.RowsAffected, nil
}
