package main

import (
	"context"
	"flag"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/alessandropanico/diary-sub001/profile"
	"github.com/alessandropanico/diary-sub001/social"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const dbDriver = "postgres"

var schema = `
CREATE TABLE IF NOT EXISTS users (
	uid TEXT PRIMARY KEY,
	nickname TEXT NOT NULL,
	followers_count BIGINT NOT NULL,
	following_count BIGINT NOT NULL,
	exported_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS follows (
	follower_uid TEXT NOT NULL,
	followed_uid TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	exported_at TIMESTAMP NOT NULL,
	PRIMARY KEY (follower_uid, followed_uid)
);`

// Copies users and follow edges out of Firestore into Postgres for offline
// analytics.
//
// go run cmd/export/main.go -project my-project -dsn "user=user dbname=diary sslmode=disable"
func main() {
	ctx := context.Background()
	projectPtr := flag.String("project", "", "GCP project id")
	keyPtr := flag.String("key", "", "service account key file (optional)")
	dsnPtr := flag.String("dsn", "", "Postgres connection string")
	flag.Parse()

	if *projectPtr == "" || *dsnPtr == "" {
		log.Fatalf("Please provide both -project and -dsn flags")
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

	db, err := sqlx.ConnectContext(ctx, dbDriver, *dsnPtr)
	if err != nil {
		log.Fatalf("error connecting to postgres: %v", err)
	}
	defer db.Close()
	db.MustExecContext(ctx, schema)

	now := time.Now().UTC()
	users, err := exportUsers(ctx, client, db, now)
	if err != nil {
		log.Fatalf("error exporting users: %v", err)
	}
	edges, err := exportEdges(ctx, client, db, now)
	if err != nil {
		log.Fatalf("error exporting edges: %v", err)
	}

	log.Printf("exported %d users and %d follow edges", users, edges)
}

func exportUsers(ctx context.Context, client *firestore.Client, db *sqlx.DB, now time.Time) (int, error) {
	it := client.Collection(profile.UsersCollection).Documents(ctx)
	defer it.Stop()

	count := 0
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return count, nil
		}
		if err != nil {
			return count, err
		}

		user := profile.User{}
		if err := doc.DataTo(&user); err != nil {
			return count, err
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO users (uid, nickname, followers_count, following_count, exported_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (uid) DO UPDATE SET
			   nickname = EXCLUDED.nickname,
			   followers_count = EXCLUDED.followers_count,
			   following_count = EXCLUDED.following_count,
			   exported_at = EXCLUDED.exported_at`,
			doc.Ref.ID, user.Nickname, user.FollowersCount, user.FollowingCount, now)
		if err != nil {
			return count, err
		}
		count++
	}
}

func exportEdges(ctx context.Context, client *firestore.Client, db *sqlx.DB, now time.Time) (int, error) {
	it := client.CollectionGroup(social.FollowingCollection).Documents(ctx)
	defer it.Stop()

	count := 0
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return count, nil
		}
		if err != nil {
			return count, err
		}

		edge := social.Edge{}
		if err := doc.DataTo(&edge); err != nil {
			return count, err
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO follows (follower_uid, followed_uid, created_at, exported_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (follower_uid, followed_uid) DO UPDATE SET
			   created_at = EXCLUDED.created_at,
			   exported_at = EXCLUDED.exported_at`,
			doc.Ref.Parent.Parent.ID, doc.Ref.ID, edge.CreatedAt, now)
		if err != nil {
			return count, err
		}
		count++
	}
}
