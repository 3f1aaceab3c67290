package social

import (
	"context"
	"sync"
)

// Graph is the part of the follow graph a Toggler needs.
type Graph interface {
	Follow(ctx context.Context, followerUID, followedUID string) error
	Unfollow(ctx context.Context, followerUID, followedUID string) error
	FollowingIDsOnce(ctx context.Context, uid string) ([]string, error)
}

// Toggler flips the follow state between one user and others, keeping a
// local cache of who that user follows so the flip direction is known
// without a read per toggle. The cache is scoped to the Toggler and
// refreshed only through Refresh; concurrent toggles are serialized so the
// cache cannot lose an update.
type Toggler struct {
	graph Graph
	uid   string

	mu        sync.Mutex
	following map[string]bool
}

// NewToggler returns a Toggler for the given user with an empty cache.
// Call Refresh before the first Toggle.
func NewToggler(graph Graph, uid string) *Toggler {
	return &Toggler{
		graph:     graph,
		uid:       uid,
		following: map[string]bool{},
	}
}

// Refresh reloads the cache from the edge set.
func (t *Toggler) Refresh(ctx context.Context) error {
	ids, err := t.graph.FollowingIDsOnce(ctx, t.uid)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.following = make(map[string]bool, len(ids))
	for _, id := range ids {
		t.following[id] = true
	}
	return nil
}

// Toggle follows targetUID if not currently followed, unfollows otherwise,
// and returns the new following state. The cache is updated only after the
// mutation succeeds.
func (t *Toggler) Toggle(ctx context.Context, targetUID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.following[targetUID] {
		if err := t.graph.Unfollow(ctx, t.uid, targetUID); err != nil {
			return true, err
		}
		delete(t.following, targetUID)
		return false, nil
	}

	if err := t.graph.Follow(ctx, t.uid, targetUID); err != nil {
		return false, err
	}
	t.following[targetUID] = true
	return true, nil
}
