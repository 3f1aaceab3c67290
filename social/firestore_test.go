package social

// These tests run against the Firestore emulator. They are skipped unless
// FIRESTORE_EMULATOR_HOST is set:
//
//	gcloud emulators firestore start --host-port=localhost:8080
//	FIRESTORE_EMULATOR_HOST=localhost:8080 go test ./social/
//
// Each test uses its own project id so state never leaks between tests.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/alessandropanico/diary-sub001/page"
	"github.com/alessandropanico/diary-sub001/profile"
)

func emulatorService(t *testing.T) (*Service, *firestore.Client) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, fmt.Sprintf("diary-test-%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("firestore.NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewService(client), client
}

// Follow and Unfollow run inside a transaction and update the profile
// document, which must already exist.
func seedUser(t *testing.T, client *firestore.Client, uid, nickname string) {
	t.Helper()
	_, err := client.Collection(profile.UsersCollection).Doc(uid).
		Set(context.Background(), profile.User{Nickname: nickname})
	if err != nil {
		t.Fatalf("seeding user %s: %v", uid, err)
	}
}

func TestFollowVisibleInBothEdgeSets(t *testing.T) {
	svc, client := emulatorService(t)
	ctx := context.Background()
	seedUser(t, client, "u1", "anna")
	seedUser(t, client, "u2", "bruno")

	if err := svc.Follow(ctx, "u1", "u2"); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	ids, err := svc.FollowingIDsOnce(ctx, "u1")
	if err != nil {
		t.Fatalf("FollowingIDsOnce: %v", err)
	}
	if len(ids) != 1 || ids[0] != "u2" {
		t.Errorf("FollowingIDsOnce(u1) = %v; want [u2]", ids)
	}

	followers := client.Collection(profile.UsersCollection).Doc("u2").
		Collection(FollowersCollection).Doc("u1")
	present, err := exists(ctx, followers)
	if err != nil {
		t.Fatalf("reading followers side: %v", err)
	}
	if !present {
		t.Error("followers side missing after Follow")
	}

	stream, err := svc.IsFollowing(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("IsFollowing: %v", err)
	}
	defer stream.Stop()
	select {
	case following := <-stream.Updates():
		if !following {
			t.Error("first IsFollowing emission = false; want true")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no IsFollowing emission")
	}

	if err := svc.Unfollow(ctx, "u1", "u2"); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	following, err := svc.VerifyEdge(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("VerifyEdge after Unfollow: %v", err)
	}
	if following {
		t.Error("edge still present after Unfollow")
	}
}

func TestFollowIdempotent(t *testing.T) {
	svc, client := emulatorService(t)
	ctx := context.Background()
	seedUser(t, client, "u1", "anna")
	seedUser(t, client, "u2", "bruno")

	counters := func() (int64, int64) {
		t.Helper()
		follower, err := profile.NewStore(client).Get(ctx, "u1")
		if err != nil {
			t.Fatalf("reading follower profile: %v", err)
		}
		followed, err := profile.NewStore(client).Get(ctx, "u2")
		if err != nil {
			t.Fatalf("reading followed profile: %v", err)
		}
		return follower.FollowingCount, followed.FollowersCount
	}

	for i := 0; i < 2; i++ {
		if err := svc.Follow(ctx, "u1", "u2"); err != nil {
			t.Fatalf("Follow #%d: %v", i+1, err)
		}
	}
	if following, followers := counters(); following != 1 || followers != 1 {
		t.Errorf("after double Follow: followingCount=%d followersCount=%d; want 1, 1", following, followers)
	}

	for i := 0; i < 2; i++ {
		if err := svc.Unfollow(ctx, "u1", "u2"); err != nil {
			t.Fatalf("Unfollow #%d: %v", i+1, err)
		}
	}
	if following, followers := counters(); following != 0 || followers != 0 {
		t.Errorf("after double Unfollow: followingCount=%d followersCount=%d; want 0, 0", following, followers)
	}
}

func TestListUsersConcatenation(t *testing.T) {
	svc, client := emulatorService(t)
	ctx := context.Background()

	// Duplicate nicknames force the document-id tiebreak.
	nicknames := map[string]string{
		"u1": "caro", "u2": "anna", "u3": "anna",
		"u4": "bruno", "u5": "anna", "u6": "caro", "u7": "bruno",
	}
	for uid, nickname := range nicknames {
		seedUser(t, client, uid, nickname)
	}

	all, next, err := svc.ListUsers(ctx, 100, page.End)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if next != page.End {
		t.Fatalf("single full listing returned cursor %q; want end", next)
	}
	if len(all) != len(nicknames) {
		t.Fatalf("full listing has %d users; want %d", len(all), len(nicknames))
	}

	for pageSize := 1; pageSize <= 4; pageSize++ {
		var walked []*profile.User
		cursor := page.End
		for {
			users, next, err := svc.ListUsers(ctx, pageSize, cursor)
			if err != nil {
				t.Fatalf("pageSize=%d ListUsers(%q): %v", pageSize, cursor, err)
			}
			walked = append(walked, users...)
			if next == page.End {
				break
			}
			cursor = next
		}
		if len(walked) != len(all) {
			t.Fatalf("pageSize=%d walked %d users; want %d", pageSize, len(walked), len(all))
		}
		for i := range all {
			if walked[i].UID != all[i].UID {
				t.Errorf("pageSize=%d position %d = %s; want %s", pageSize, i, walked[i].UID, all[i].UID)
			}
		}
	}
}

func TestVerifyEdgeReportsTornEdge(t *testing.T) {
	svc, client := emulatorService(t)
	ctx := context.Background()
	seedUser(t, client, "u1", "anna")
	seedUser(t, client, "u2", "bruno")

	// Only the following side, as an interrupted out-of-band write would
	// leave it.
	_, err := client.Collection(profile.UsersCollection).Doc("u1").
		Collection(FollowingCollection).Doc("u2").
		Set(ctx, Edge{CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("writing following side: %v", err)
	}

	if _, err := svc.VerifyEdge(ctx, "u1", "u2"); !errors.Is(err, ErrPartialWrite) {
		t.Fatalf("VerifyEdge on torn edge = %v; want ErrPartialWrite", err)
	}

	report, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.EdgesRepaired < 1 {
		t.Errorf("Reconcile repaired %d edges; want at least 1", report.EdgesRepaired)
	}

	following, err := svc.VerifyEdge(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("VerifyEdge after Reconcile: %v", err)
	}
	if !following {
		t.Error("edge absent after repair")
	}

	follower, err := profile.NewStore(client).Get(ctx, "u1")
	if err != nil {
		t.Fatalf("reading follower profile: %v", err)
	}
	if follower.FollowingCount != 1 || len(follower.FollowingIDs) != 1 {
		t.Errorf("denormalization not refreshed: count=%d ids=%v", follower.FollowingCount, follower.FollowingIDs)
	}
}

func TestReconcileRemovesOrphanFollowerEntry(t *testing.T) {
	svc, client := emulatorService(t)
	ctx := context.Background()
	seedUser(t, client, "u1", "anna")
	seedUser(t, client, "u2", "bruno")

	// Only the followers side: the follow intent is gone, the mirror stayed.
	_, err := client.Collection(profile.UsersCollection).Doc("u2").
		Collection(FollowersCollection).Doc("u1").
		Set(ctx, Edge{CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("writing followers side: %v", err)
	}

	report, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.OrphansRemoved < 1 {
		t.Errorf("Reconcile removed %d orphans; want at least 1", report.OrphansRemoved)
	}

	following, err := svc.VerifyEdge(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("VerifyEdge after Reconcile: %v", err)
	}
	if following {
		t.Error("orphan followers entry still reads as an edge")
	}
}
