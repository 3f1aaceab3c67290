package social

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeGraph records edges in memory with the same idempotency rules as the
// real service.
type fakeGraph struct {
	mu        sync.Mutex
	edges     map[[2]string]bool
	failNext  error
	followN   int
	unfollowN int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{edges: map[[2]string]bool{}}
}

func (g *fakeGraph) Follow(_ context.Context, followerUID, followedUID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return err
	}
	g.followN++
	g.edges[[2]string{followerUID, followedUID}] = true
	return nil
}

func (g *fakeGraph) Unfollow(_ context.Context, followerUID, followedUID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return err
	}
	g.unfollowN++
	delete(g.edges, [2]string{followerUID, followedUID})
	return nil
}

func (g *fakeGraph) FollowingIDsOnce(_ context.Context, uid string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for edge := range g.edges {
		if edge[0] == uid {
			ids = append(ids, edge[1])
		}
	}
	return ids, nil
}

func (g *fakeGraph) has(followerUID, followedUID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.edges[[2]string{followerUID, followedUID}]
}

func TestToggleFlipsState(t *testing.T) {
	graph := newFakeGraph()
	toggler := NewToggler(graph, "u1")
	ctx := context.Background()

	following, err := toggler.Toggle(ctx, "u2")
	assert.NoError(t, err)
	assert.True(t, following)
	assert.True(t, graph.has("u1", "u2"))

	following, err = toggler.Toggle(ctx, "u2")
	assert.NoError(t, err)
	assert.False(t, following)
	assert.False(t, graph.has("u1", "u2"))
}

func TestToggleRefreshSeesExistingEdges(t *testing.T) {
	graph := newFakeGraph()
	graph.edges[[2]string{"u1", "u2"}] = true

	toggler := NewToggler(graph, "u1")
	ctx := context.Background()
	assert.NoError(t, toggler.Refresh(ctx))

	// The first toggle must unfollow, not follow again.
	following, err := toggler.Toggle(ctx, "u2")
	assert.NoError(t, err)
	assert.False(t, following)
	assert.False(t, graph.has("u1", "u2"))
}

func TestToggleKeepsCacheOnError(t *testing.T) {
	graph := newFakeGraph()
	toggler := NewToggler(graph, "u1")
	ctx := context.Background()

	graph.failNext = errors.New("backend down")
	_, err := toggler.Toggle(ctx, "u2")
	assert.Error(t, err)

	// The failed follow must not be cached as done.
	following, err := toggler.Toggle(ctx, "u2")
	assert.NoError(t, err)
	assert.True(t, following)
	assert.True(t, graph.has("u1", "u2"))
}

func TestConcurrentTogglesAreSerialized(t *testing.T) {
	graph := newFakeGraph()
	toggler := NewToggler(graph, "u1")
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := toggler.Toggle(ctx, "u2")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// An even number of toggles lands back on not-following, and every
	// toggle must have alternated direction: half follows, half unfollows.
	assert.False(t, graph.has("u1", "u2"))
	assert.Equal(t, n/2, graph.followN)
	assert.Equal(t, n/2, graph.unfollowN)
}
