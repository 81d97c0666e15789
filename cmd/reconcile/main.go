// Command reconcile recomputes post and account counters from their source rows.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/ledger"
)

func main() {
	postID := flag.Uint("post", 0, "Reconcile a single post")
	accountID := flag.Uint("account", 0, "Reconcile a single account")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SkipRedis: true, ServiceName: "inkwell-reconcile"})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close(context.Background())
	defer rt.CloseStores()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := ledger.NewReconciler(rt.DB, cfg.ReconcileBatchSize)
	switch {
	case *postID != 0:
		changed, err := r.ReconcilePost(ctx, uint(*postID))
		if err != nil {
			log.Fatalf("Reconcile post %d failed: %v", *postID, err)
		}
		log.Printf("post %d repaired=%v", *postID, changed)
	case *accountID != 0:
		changed, err := r.ReconcileAccount(ctx, uint(*accountID))
		if err != nil {
			log.Fatalf("Reconcile account %d failed: %v", *accountID, err)
		}
		log.Printf("account %d repaired=%v", *accountID, changed)
	default:
		report, err := r.ReconcileAll(ctx)
		if err != nil {
			log.Fatalf("Reconcile failed after %d posts and %d accounts: %v",
				report.PostsChecked, report.AccountsChecked, err)
		}
		log.Printf("checked %d posts (%d repaired), %d accounts (%d repaired)",
			report.PostsChecked, report.PostsRepaired, report.AccountsChecked, report.AccountsRepaired)
	}
}
