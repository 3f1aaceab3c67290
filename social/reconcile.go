package social

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/alessandropanico/diary-sub001/log"
	"github.com/alessandropanico/diary-sub001/profile"
	"google.golang.org/api/iterator"
)

// Report summarizes one reconciliation sweep.
type Report struct {
	EdgesChecked   int
	EdgesRepaired  int
	OrphansRemoved int
	UsersRefreshed int
}

// Reconcile repairs torn edges and stale denormalizations left behind by
// out-of-band writes. Every edge is checked with VerifyEdge; the "following"
// side carries the follower's intent and wins: a following document without
// its followers mirror gets the mirror created, a followers document without
// its following counterpart is removed. Afterwards every user's followingIds
// cache and counters are recomputed from the edge sets.
func (s *Service) Reconcile(ctx context.Context) (Report, error) {
	logger := log.LoggerFromContext(ctx)
	report := Report{}

	// Forward pass: complete half-written follows.
	it := s.client.CollectionGroup(FollowingCollection).Documents(ctx)
	defer it.Stop()
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return report, mapStoreErr(err)
		}
		report.EdgesChecked++

		followerUID := doc.Ref.Parent.Parent.ID
		followedUID := doc.Ref.ID

		_, err = s.VerifyEdge(ctx, followerUID, followedUID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrPartialWrite) {
			return report, err
		}

		mirror := s.client.Collection(profile.UsersCollection).Doc(followedUID).
			Collection(FollowersCollection).Doc(followerUID)
		edge := Edge{}
		if err := doc.DataTo(&edge); err != nil {
			return report, err
		}
		if _, err := mirror.Set(ctx, edge); err != nil {
			return report, mapStoreErr(err)
		}
		report.EdgesRepaired++
		logger.Info("repaired torn edge",
			slog.String("follower", followerUID),
			slog.String("followed", followedUID),
		)
	}

	// Reverse pass: drop follower entries whose follow intent is gone.
	rit := s.client.CollectionGroup(FollowersCollection).Documents(ctx)
	defer rit.Stop()
	for {
		doc, err := rit.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return report, mapStoreErr(err)
		}

		followedUID := doc.Ref.Parent.Parent.ID
		followerUID := doc.Ref.ID

		_, err = s.VerifyEdge(ctx, followerUID, followedUID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrPartialWrite) {
			return report, err
		}

		if _, err := doc.Ref.Delete(ctx); err != nil {
			return report, mapStoreErr(err)
		}
		report.OrphansRemoved++
		logger.Info("removed orphan follower entry",
			slog.String("follower", followerUID),
			slog.String("followed", followedUID),
		)
	}

	// Denormalization pass: recompute caches and counters from edge sets.
	uit := s.client.Collection(profile.UsersCollection).Documents(ctx)
	defer uit.Stop()
	for {
		doc, err := uit.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return report, mapStoreErr(err)
		}

		user := profile.User{}
		if err := doc.DataTo(&user); err != nil {
			return report, err
		}

		followingIDs, err := s.FollowingIDsOnce(ctx, doc.Ref.ID)
		if err != nil {
			return report, err
		}
		if followingIDs == nil {
			followingIDs = []string{}
		}
		sort.Strings(followingIDs)
		followerCount, err := s.countEdges(ctx, doc.Ref.ID, FollowersCollection)
		if err != nil {
			return report, err
		}

		cached := append([]string(nil), user.FollowingIDs...)
		sort.Strings(cached)
		if equalIDs(cached, followingIDs) &&
			user.FollowersCount == followerCount &&
			user.FollowingCount == int64(len(followingIDs)) {
			continue
		}

		if _, err := doc.Ref.Update(ctx, []firestore.Update{
			{Path: profile.FollowingIDsField, Value: followingIDs},
			{Path: profile.FollowingCountField, Value: int64(len(followingIDs))},
			{Path: profile.FollowersCountField, Value: followerCount},
		}); err != nil {
			return report, mapStoreErr(err)
		}
		report.UsersRefreshed++
	}

	return report, nil
}

func (s *Service) countEdges(ctx context.Context, uid, edgeCollection string) (int64, error) {
	it := s.client.Collection(profile.UsersCollection).Doc(uid).
		Collection(edgeCollection).Select().Documents(ctx)
	defer it.Stop()

	var n int64
	for {
		_, err := it.Next()
		if err == iterator.Done {
			return n, nil
		}
		if err != nil {
			return n, mapStoreErr(err)
		}
		n++
	}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
