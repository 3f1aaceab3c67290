package social

import (
	"context"
	"errors"
	"testing"
)

func TestValidatePair(t *testing.T) {
	tests := []struct {
		name        string
		followerUID string
		followedUID string
		expectedErr error
	}{
		{
			name:        "valid pair",
			followerUID: "u1",
			followedUID: "u2",
			expectedErr: nil,
		},
		{
			name:        "self follow",
			followerUID: "u1",
			followedUID: "u1",
			expectedErr: ErrSelfFollow,
		},
		{
			name:        "empty follower",
			followerUID: "",
			followedUID: "u2",
			expectedErr: ErrInvalidArgument,
		},
		{
			name:        "empty followed",
			followerUID: "u1",
			followedUID: "",
			expectedErr: ErrInvalidArgument,
		},
		{
			name:        "both empty",
			followerUID: "",
			followedUID: "",
			expectedErr: ErrInvalidArgument,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := validatePair(test.followerUID, test.followedUID)
			if !errors.Is(err, test.expectedErr) {
				t.Errorf("validatePair(%q, %q) = %v; want %v",
					test.followerUID, test.followedUID, err, test.expectedErr)
			}
		})
	}
}

// Follow and Unfollow must reject bad pairs before touching the backend, so
// a nil client is fine here.
func TestFollowRejectsBadPairs(t *testing.T) {
	s := NewService(nil)
	ctx := context.Background()

	if err := s.Follow(ctx, "u1", "u1"); !errors.Is(err, ErrSelfFollow) {
		t.Errorf("Follow(u1, u1) = %v; want ErrSelfFollow", err)
	}
	if err := s.Follow(ctx, "", "u2"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf(`Follow("", u2) = %v; want ErrInvalidArgument`, err)
	}
	if err := s.Unfollow(ctx, "u1", "u1"); !errors.Is(err, ErrSelfFollow) {
		t.Errorf("Unfollow(u1, u1) = %v; want ErrSelfFollow", err)
	}
	if err := s.Unfollow(ctx, "u1", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf(`Unfollow(u1, "") = %v; want ErrInvalidArgument`, err)
	}
}

func TestIsFollowingRejectsBadPairs(t *testing.T) {
	s := NewService(nil)

	if _, err := s.IsFollowing(context.Background(), "u1", "u1"); !errors.Is(err, ErrSelfFollow) {
		t.Errorf("IsFollowing(u1, u1) = %v; want ErrSelfFollow", err)
	}
	if _, err := s.FollowerIDs(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf(`FollowerIDs("") = %v; want ErrInvalidArgument`, err)
	}
}
