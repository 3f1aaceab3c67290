// Package social maintains the bidirectional follow graph.
//
// Each follow relation is stored twice: under the followed user's
// "followers" subcollection and under the follower's "following"
// subcollection. Both sides are written and deleted inside a single
// Firestore transaction, together with the denormalized followingIds cache
// and the follower/following counters on the two profiles, so a torn edge
// cannot be produced by a normal mutation. VerifyEdge and Reconcile exist
// for edges torn by out-of-band writes.
package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/alessandropanico/diary-sub001/profile"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// FollowersCollection holds, per user, one document per follower.
	FollowersCollection = "followers"
	// FollowingCollection holds, per user, one document per followed user.
	FollowingCollection = "following"
)

var (
	ErrInvalidArgument = errors.New("social: invalid argument")
	ErrSelfFollow      = errors.New("social: cannot follow yourself")
	ErrNotFound        = errors.New("social: not found")
	ErrUnavailable     = errors.New("social: backend unavailable")
	ErrPartialWrite    = errors.New("social: partial edge write")
)

// Edge is one direction of a follow relation.
type Edge struct {
	CreatedAt time.Time `firestore:"createdAt"`
}

// Service reads and mutates the follow graph.
type Service struct {
	client *firestore.Client
}

func NewService(client *firestore.Client) *Service {
	return &Service{client: client}
}

// Follow records that followerUID follows followedUID. Following an
// already-followed user is a no-op success.
func (s *Service) Follow(ctx context.Context, followerUID, followedUID string) error {
	if err := validatePair(followerUID, followedUID); err != nil {
		return err
	}

	followerRef := s.client.Collection(profile.UsersCollection).Doc(followerUID)
	followedRef := s.client.Collection(profile.UsersCollection).Doc(followedUID)
	followingRef := followerRef.Collection(FollowingCollection).Doc(followedUID)
	followersRef := followedRef.Collection(FollowersCollection).Doc(followerUID)

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(followingRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			return nil
		}

		edge := Edge{CreatedAt: time.Now().UTC()}
		if err := tx.Set(followingRef, edge); err != nil {
			return err
		}
		if err := tx.Set(followersRef, edge); err != nil {
			return err
		}
		if err := tx.Update(followerRef, []firestore.Update{
			{Path: profile.FollowingIDsField, Value: firestore.ArrayUnion(followedUID)},
			{Path: profile.FollowingCountField, Value: firestore.Increment(1)},
		}); err != nil {
			return err
		}
		return tx.Update(followedRef, []firestore.Update{
			{Path: profile.FollowersCountField, Value: firestore.Increment(1)},
		})
	})
	return mapStoreErr(err)
}

// Unfollow removes the relation. Unfollowing a user who is not followed is
// a no-op success.
func (s *Service) Unfollow(ctx context.Context, followerUID, followedUID string) error {
	if err := validatePair(followerUID, followedUID); err != nil {
		return err
	}

	followerRef := s.client.Collection(profile.UsersCollection).Doc(followerUID)
	followedRef := s.client.Collection(profile.UsersCollection).Doc(followedUID)
	followingRef := followerRef.Collection(FollowingCollection).Doc(followedUID)
	followersRef := followedRef.Collection(FollowersCollection).Doc(followerUID)

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(followingRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err != nil || !snap.Exists() {
			return nil
		}

		if err := tx.Delete(followingRef); err != nil {
			return err
		}
		if err := tx.Delete(followersRef); err != nil {
			return err
		}
		if err := tx.Update(followerRef, []firestore.Update{
			{Path: profile.FollowingIDsField, Value: firestore.ArrayRemove(followedUID)},
			{Path: profile.FollowingCountField, Value: firestore.Increment(-1)},
		}); err != nil {
			return err
		}
		return tx.Update(followedRef, []firestore.Update{
			{Path: profile.FollowersCountField, Value: firestore.Increment(-1)},
		})
	})
	return mapStoreErr(err)
}

// FollowingIDsOnce reads the follower's following edge set once, without a
// standing watch. Derived from the edge set, not the cached array.
func (s *Service) FollowingIDsOnce(ctx context.Context, uid string) ([]string, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: empty uid", ErrInvalidArgument)
	}

	it := s.client.Collection(profile.UsersCollection).Doc(uid).
		Collection(FollowingCollection).Documents(ctx)
	defer it.Stop()

	var ids []string
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapStoreErr(err)
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

// VerifyEdge checks both physical sides of one edge. It reports whether the
// edge exists, or ErrPartialWrite when only one side does.
func (s *Service) VerifyEdge(ctx context.Context, followerUID, followedUID string) (bool, error) {
	if err := validatePair(followerUID, followedUID); err != nil {
		return false, err
	}

	followingRef := s.client.Collection(profile.UsersCollection).Doc(followerUID).
		Collection(FollowingCollection).Doc(followedUID)
	followersRef := s.client.Collection(profile.UsersCollection).Doc(followedUID).
		Collection(FollowersCollection).Doc(followerUID)

	followingSide, err := exists(ctx, followingRef)
	if err != nil {
		return false, mapStoreErr(err)
	}
	followersSide, err := exists(ctx, followersRef)
	if err != nil {
		return false, mapStoreErr(err)
	}

	if followingSide != followersSide {
		return false, fmt.Errorf("%w: %s -> %s (following=%t followers=%t)",
			ErrPartialWrite, followerUID, followedUID, followingSide, followersSide)
	}
	return followingSide, nil
}

func exists(ctx context.Context, ref *firestore.DocumentRef) (bool, error) {
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return snap.Exists(), nil
}

func validatePair(followerUID, followedUID string) error {
	if followerUID == "" || followedUID == "" {
		return fmt.Errorf("%w: empty uid", ErrInvalidArgument)
	}
	if followerUID == followedUID {
		return fmt.Errorf("%w: %s", ErrSelfFollow, followerUID)
	}
	return nil
}

// mapStoreErr folds backend failures into the package error taxonomy.
// Errors are returned to the caller, never retried here.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
