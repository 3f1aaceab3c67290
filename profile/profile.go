// Package profile owns per-user profile documents: identity fields, the
// registered push-token map and the denormalized follow counters.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// UsersCollection is the Firestore collection holding user documents.
	UsersCollection = "users"

	// Firestore field names of User, for updates built outside struct
	// encoding. Keep in sync with the struct tags below.
	NicknameField       = "nickname"
	FollowingIDsField   = "followingIds"
	FollowersCountField = "followersCount"
	FollowingCountField = "followingCount"

	tokensField = "tokens"
)

var (
	ErrNotFound    = errors.New("profile: user not found")
	ErrUnavailable = errors.New("profile: backend unavailable")
)

// User is a user profile document. Tokens maps a device push token to its
// registration flag: an entry with value true is deliverable. Entries are
// removed outright when the push provider reports them permanently invalid,
// never flipped to false. FollowingIDs is a materialized cache of the
// following edge set; the edge set is the source of truth.
type User struct {
	UID            string          `firestore:"-"`
	Nickname       string          `firestore:"nickname"`
	FirstName      string          `firestore:"firstName"`
	LastName       string          `firestore:"lastName"`
	Photo          string          `firestore:"photo"`
	Tokens         map[string]bool `firestore:"tokens"`
	FollowingIDs   []string        `firestore:"followingIds"`
	FollowersCount int64           `firestore:"followersCount"`
	FollowingCount int64           `firestore:"followingCount"`
}

// Store reads and mutates user documents.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Get loads one user profile. A missing document is ErrNotFound.
func (s *Store) Get(ctx context.Context, uid string) (*User, error) {
	doc, err := s.client.Collection(UsersCollection).Doc(uid).Get(ctx)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uid)
		case codes.Unavailable, codes.DeadlineExceeded:
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	user := User{}
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("decoding user %s: %w", uid, err)
	}
	user.UID = doc.Ref.ID
	return &user, nil
}

// RemoveToken deletes one entry from the user's token map. Removing a token
// that is already gone is a no-op.
func (s *Store) RemoveToken(ctx context.Context, uid, token string) error {
	_, err := s.client.Collection(UsersCollection).Doc(uid).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{tokensField, token}, Value: firestore.Delete},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, uid)
		}
		return err
	}
	return nil
}

// ActiveTokens returns the user's deliverable push tokens in stable order.
func ActiveTokens(u *User) []string {
	var tokens []string
	for token, active := range u.Tokens {
		if active {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	return tokens
}
