package main

import (
	"context"
	"flag"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/alessandropanico/diary-sub001/social"
	"google.golang.org/api/option"
)

// One-shot sweep over the follow graph: completes or removes torn edges and
// recomputes the denormalized caches and counters.
//
// GOOGLE_CLOUD_PROJECT=my-project go run cmd/reconcile/main.go -project my-project
func main() {
	ctx := context.Background()
	projectPtr := flag.String("project", "", "GCP project id")
	keyPtr := flag.String("key", "", "service account key file (optional)")
	flag.Parse()

	if *projectPtr == "" {
		log.Fatalf("Please provide a project id using the -project flag")
	}

	var opts []option.ClientOption
	if *keyPtr != "" {
		opts = append(opts, option.WithCredentialsFile(*keyPtr))
	}
	client, err := firestore.NewClient(ctx, *projectPtr, opts...)
	if err != nil {
		log.Fatalf("error creating firestore client: %v", err)
	}
	defer client.Close()

	report, err := social.NewService(client).Reconcile(ctx)
	if err != nil {
		log.Fatalf("reconcile failed after %d edges: %v", report.EdgesChecked, err)
	}

	log.Printf("checked %d edges: repaired %d, removed %d orphans, refreshed %d users",
		report.EdgesChecked, report.EdgesRepaired, report.OrphansRemoved, report.UsersRefreshed)
}
