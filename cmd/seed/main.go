// Command seed fills the database with demo accounts, posts and engagement.
package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	accounts := flag.Int("accounts", defaults.Accounts, "Number of accounts to create")
	posts := flag.Int("posts", defaults.PostsPerAccount, "Posts per account")
	comments := flag.Int("comments", defaults.CommentsPerPost, "Comments per published post")
	reads := flag.Int("reads", defaults.MaxReadsPerPost, "Maximum reads per published post")
	shouldClean := flag.Bool("clean", false, "Remove existing data before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed, 0 for a random run")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SkipRedis: true, ServiceName: "inkwell-seed"})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	ctx := context.Background()
	defer rt.Close(ctx)
	defer rt.CloseStores()

	opts := defaults
	opts.Accounts = *accounts
	opts.PostsPerAccount = *posts
	opts.CommentsPerPost = *comments
	opts.MaxReadsPerPost = *reads
	opts.ShouldClean = *shouldClean
	opts.Seed = *randSeed

	report, err := seed.New(rt.DB, opts).Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d accounts, %d posts (%d drafts), %d comments, %d replies, %d likes, %d reads",
		report.Accounts, report.Posts, report.Drafts, report.Comments, report.Replies, report.Likes, report.Reads)
}
