// Package ledger keeps the denormalized engagement counters on posts and accounts
// in step with their source rows.
//
// Every mutation of comments, likes, reads or publication maps to exactly one Event.
// DeltaFor turns an event into per-column deltas and Apply writes them as atomic
// "col = col + n" updates on the caller's transaction, so concurrent events never
// lose increments.
package ledger

import (
	"context"
	"fmt"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// Kind names a counter-affecting event.
type Kind string

const (
	ParentCommentAdded Kind = "parent_comment_added"
	ReplyAdded         Kind = "reply_added"
	CommentRemoved     Kind = "comment_removed"
	Liked              Kind = "liked"
	Unliked            Kind = "unliked"
	PostRead           Kind = "post_read"
	PostPublished      Kind = "post_published"
	PostRemoved        Kind = "post_removed"
)

// Event is one counter-affecting occurrence.
type Event struct {
	Kind Kind
	// PostID is the post whose counters change.
	PostID uint
	// AccountID is the post author, for account-level counters.
	AccountID uint
	// IsReply qualifies CommentRemoved: removing a reply leaves total_parent_comments alone.
	IsReply bool
	// FirstPublish qualifies PostPublished: re-publishing an edited post changes nothing.
	FirstPublish bool
	// WasPublished qualifies PostRemoved: deleting a draft changes nothing.
	WasPublished bool
}

// Delta is the signed change to each counter column.
type Delta struct {
	TotalComments       int64
	TotalParentComments int64
	TotalLikes          int64
	PostReads           int64
	AccountReads        int64
	AccountPosts        int64
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// DeltaFor maps an event to its counter deltas.
func DeltaFor(e Event) Delta {
	switch e.Kind {
	case ParentCommentAdded:
		return Delta{TotalComments: 1, TotalParentComments: 1}
	case ReplyAdded:
		return Delta{TotalComments: 1}
	case CommentRemoved:
		if e.IsReply {
			return Delta{TotalComments: -1}
		}
		return Delta{TotalComments: -1, TotalParentComments: -1}
	case Liked:
		return Delta{TotalLikes: 1}
	case Unliked:
		return Delta{TotalLikes: -1}
	case PostRead:
		return Delta{PostReads: 1, AccountReads: 1}
	case PostPublished:
		if e.FirstPublish {
			return Delta{AccountPosts: 1}
		}
	case PostRemoved:
		if e.WasPublished {
			return Delta{AccountPosts: -1}
		}
	}
	return Delta{}
}

func (d Delta) postColumns() map[string]interface{} {
	cols := map[string]interface{}{}
	add := func(col string, n int64) {
		if n != 0 {
			cols[col] = gorm.Expr(col+" + ?", n)
		}
	}
	add("total_comments", d.TotalComments)
	add("total_parent_comments", d.TotalParentComments)
	add("total_likes", d.TotalLikes)
	add("total_reads", d.PostReads)
	return cols
}

func (d Delta) accountColumns() map[string]interface{} {
	cols := map[string]interface{}{}
	if d.AccountReads != 0 {
		cols["total_reads"] = gorm.Expr("total_reads + ?", d.AccountReads)
	}
	if d.AccountPosts != 0 {
		cols["total_posts"] = gorm.Expr("total_posts + ?", d.AccountPosts)
	}
	return cols
}

// Ledger applies events to the store.
type Ledger struct{}

// New returns a Ledger.
func New() *Ledger {
	return &Ledger{}
}

// Apply writes the deltas for e through tx. Callers pass the transaction that
// carries the primary mutation so both commit or roll back together.
// A zero delta issues no statement.
func (l *Ledger) Apply(ctx context.Context, tx *gorm.DB, e Event) error {
	d := DeltaFor(e)
	if d.IsZero() {
		return nil
	}

	if cols := d.postColumns(); len(cols) > 0 {
		res := tx.WithContext(ctx).Model(&models.Post{}).Where("id = ?", e.PostID).UpdateColumns(cols)
		if res.Error != nil {
			return fmt.Errorf("ledger %s: post %d: %w", e.Kind, e.PostID, res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", e.PostID)
		}
	}

	if cols := d.accountColumns(); len(cols) > 0 {
		res := tx.WithContext(ctx).Model(&models.Account{}).Where("id = ?", e.AccountID).UpdateColumns(cols)
		if res.Error != nil {
			return fmt.Errorf("ledger %s: account %d: %w", e.Kind, e.AccountID, res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Account", e.AccountID)
		}
	}

	observability.LedgerDeltas.WithLabelValues(string(e.Kind)).Inc()
	return nil
}
