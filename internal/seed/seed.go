package seed

import (
	"context"
	"fmt"

	"inkwell/internal/featureflags"
	"inkwell/internal/ledger"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Accounts        int
	PostsPerAccount int
	DraftRatio      float64
	CommentsPerPost int
	ReplyRatio      float64
	LikeRatio       float64
	MaxReadsPerPost int
	ShouldClean     bool

	// Seed makes runs reproducible. Zero picks a random seed.
	Seed int64
}

// DefaultOptions is a small but well connected data set.
func DefaultOptions() Options {
	return Options{
		Accounts:        12,
		PostsPerAccount: 3,
		DraftRatio:      0.2,
		CommentsPerPost: 6,
		ReplyRatio:      0.4,
		LikeRatio:       0.3,
		MaxReadsPerPost: 20,
	}
}

// Report counts what a seed run created.
type Report struct {
	Accounts int
	Posts    int
	Drafts   int
	Comments int
	Replies  int
	Likes    int
	Reads    int
}

// Seeder writes demo data through the services.
type Seeder struct {
	db       *gorm.DB
	accounts repository.AccountRepository
	posts    *service.PostService
	comments *service.CommentService
	factory  *Factory
	opts     Options
}

// New wires a Seeder against db. Realtime delivery is disabled for seeded events.
func New(db *gorm.DB, opts Options) *Seeder {
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	flags := featureflags.NewManager(featureflags.RealtimeNotifications + "=off")

	l := ledger.New()
	notifications := service.NewNotificationService(notifRepo, nil, flags)
	posts := service.NewPostService(db, postRepo, repository.NewLikeRepository(db),
		commentRepo, notifRepo, l, notifications, flags)
	return &Seeder{
		db:       db,
		accounts: repository.NewAccountRepository(db),
		posts:    posts,
		comments: service.NewCommentService(db, commentRepo, postRepo, l, notifications),
		factory:  NewFactory(opts.Seed),
		opts:     opts,
	}
}

// Run seeds the database and reports what was created.
func (s *Seeder) Run(ctx context.Context) (Report, error) {
	var report Report
	log := middleware.Logger

	log.InfoContext(ctx, "starting database seeding",
		"accounts", s.opts.Accounts, "posts_per_account", s.opts.PostsPerAccount)

	if s.opts.ShouldClean {
		if err := Clean(ctx, s.db); err != nil {
			return report, fmt.Errorf("clean: %w", err)
		}
	}

	accounts, err := s.createAccounts(ctx)
	if err != nil {
		return report, fmt.Errorf("create accounts: %w", err)
	}
	report.Accounts = len(accounts)
	if len(accounts) == 0 {
		return report, nil
	}

	var published []*models.Post
	for _, author := range accounts {
		for i := 0; i < s.opts.PostsPerAccount; i++ {
			draft := s.factory.Chance(s.opts.DraftRatio)
			post, err := s.posts.Publish(ctx, s.factory.Post(author.ID, draft))
			if err != nil {
				return report, fmt.Errorf("publish post: %w", err)
			}
			if draft {
				report.Drafts++
				continue
			}
			report.Posts++
			published = append(published, post)
		}
	}

	for _, post := range published {
		if err := s.engage(ctx, post, accounts, &report); err != nil {
			return report, err
		}
	}

	log.InfoContext(ctx, "database seeding completed",
		"accounts", report.Accounts, "posts", report.Posts, "drafts", report.Drafts,
		"comments", report.Comments, "replies", report.Replies, "likes", report.Likes)
	return report, nil
}

func (s *Seeder) createAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts := make([]*models.Account, 0, s.opts.Accounts)
	for i := 0; i < s.opts.Accounts; i++ {
		acc := s.factory.Account(i)
		if err := s.accounts.Create(ctx, acc); err != nil {
			if models.IsCode(err, models.CodeConflict) {
				middleware.Logger.WarnContext(ctx, "skipping duplicate seed account", "username", acc.Username)
				continue
			}
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// engage adds reads, likes and a comment thread to post.
func (s *Seeder) engage(ctx context.Context, post *models.Post, accounts []*models.Account, report *Report) error {
	if s.opts.MaxReadsPerPost > 0 {
		reads := s.factory.Pick(s.opts.MaxReadsPerPost + 1)
		for i := 0; i < reads; i++ {
			if _, err := s.posts.GetPost(ctx, service.GetPostInput{Slug: post.Slug}); err != nil {
				return fmt.Errorf("read post: %w", err)
			}
		}
		report.Reads += reads
	}

	for _, acc := range accounts {
		if acc.ID == post.AuthorID || !s.factory.Chance(s.opts.LikeRatio) {
			continue
		}
		if _, err := s.posts.ToggleLike(ctx, service.ToggleLikeInput{UserID: acc.ID, PostID: post.ID}); err != nil {
			return fmt.Errorf("like post: %w", err)
		}
		report.Likes++
	}

	var thread []*models.Comment
	for i := 0; i < s.opts.CommentsPerPost; i++ {
		in := service.CreateCommentInput{
			PostID:   post.ID,
			AuthorID: accounts[s.factory.Pick(len(accounts))].ID,
			Content:  s.factory.Comment(),
		}
		if len(thread) > 0 && s.factory.Chance(s.opts.ReplyRatio) {
			parent := thread[s.factory.Pick(len(thread))]
			in.ParentID = &parent.ID
		}
		c, err := s.comments.CreateComment(ctx, in)
		if err != nil {
			return fmt.Errorf("comment: %w", err)
		}
		thread = append(thread, c)
		if c.IsReply {
			report.Replies++
		} else {
			report.Comments++
		}
	}
	return nil
}

// Clean removes every row the service owns, children first.
func Clean(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.InfoContext(ctx, "clearing existing data")
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&models.Notification{},
			&models.Like{},
			&models.CommentEdge{},
			&models.Comment{},
			&models.Post{},
			&models.Account{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
