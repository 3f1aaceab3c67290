package social

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/alessandropanico/diary-sub001/log"
	"github.com/alessandropanico/diary-sub001/profile"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// BoolStream is a live boolean subscription. It emits the current value
// immediately after creation and again on every change, until Stop is
// called. An unreleased stream keeps a standing watch open.
type BoolStream struct {
	updates chan bool
	done    chan struct{}
	stop    func()
	once    sync.Once
}

// Updates is closed after Stop or on a watch failure.
func (w *BoolStream) Updates() <-chan bool { return w.updates }

// Stop releases the underlying watch. Safe to call more than once.
func (w *BoolStream) Stop() {
	w.once.Do(func() {
		close(w.done)
		w.stop()
	})
}

func newBoolStream(pull func() (bool, error), stop func(), onErr func(error)) *BoolStream {
	w := &BoolStream{
		updates: make(chan bool, 1),
		done:    make(chan struct{}),
		stop:    stop,
	}
	go func() {
		defer close(w.updates)
		for {
			v, err := pull()
			if err != nil {
				onErr(err)
				return
			}
			select {
			case w.updates <- v:
			case <-w.done:
				return
			}
		}
	}()
	return w
}

// SetStream is a live subscription to a set of uids, emitted sorted. Same
// lifecycle contract as BoolStream.
type SetStream struct {
	updates chan []string
	done    chan struct{}
	stop    func()
	once    sync.Once
}

func (w *SetStream) Updates() <-chan []string { return w.updates }

func (w *SetStream) Stop() {
	w.once.Do(func() {
		close(w.done)
		w.stop()
	})
}

func newSetStream(pull func() ([]string, error), stop func(), onErr func(error)) *SetStream {
	w := &SetStream{
		updates: make(chan []string, 1),
		done:    make(chan struct{}),
		stop:    stop,
	}
	go func() {
		defer close(w.updates)
		for {
			ids, err := pull()
			if err != nil {
				onErr(err)
				return
			}
			select {
			case w.updates <- ids:
			case <-w.done:
				return
			}
		}
	}()
	return w
}

// IsFollowing watches whether followerUID currently follows targetUID,
// derived from the edge set.
func (s *Service) IsFollowing(ctx context.Context, followerUID, targetUID string) (*BoolStream, error) {
	if err := validatePair(followerUID, targetUID); err != nil {
		return nil, err
	}

	ref := s.client.Collection(profile.UsersCollection).Doc(followerUID).
		Collection(FollowingCollection).Doc(targetUID)
	it := ref.Snapshots(ctx)

	pull := func() (bool, error) {
		snap, err := it.Next()
		if err != nil {
			return false, err
		}
		return snap.Exists(), nil
	}
	return newBoolStream(pull, it.Stop, watchErrLogger(ctx, "isFollowing")), nil
}

// FollowerIDs watches the set of uids following the given user.
func (s *Service) FollowerIDs(ctx context.Context, uid string) (*SetStream, error) {
	return s.watchEdgeSet(ctx, uid, FollowersCollection)
}

// FollowingIDs watches the set of uids the given user follows.
func (s *Service) FollowingIDs(ctx context.Context, uid string) (*SetStream, error) {
	return s.watchEdgeSet(ctx, uid, FollowingCollection)
}

func (s *Service) watchEdgeSet(ctx context.Context, uid, edgeCollection string) (*SetStream, error) {
	if uid == "" {
		return nil, ErrInvalidArgument
	}

	query := s.client.Collection(profile.UsersCollection).Doc(uid).Collection(edgeCollection).Query
	it := query.Snapshots(ctx)

	pull := func() ([]string, error) {
		snap, err := it.Next()
		if err != nil {
			return nil, err
		}
		var ids []string
		docs := snap.Documents
		for {
			doc, err := docs.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, err
			}
			ids = append(ids, doc.Ref.ID)
		}
		sort.Strings(ids)
		return ids, nil
	}
	return newSetStream(pull, it.Stop, watchErrLogger(ctx, edgeCollection)), nil
}

// watchErrLogger logs watch failures, except the cancellation produced by
// releasing the subscription.
func watchErrLogger(ctx context.Context, watch string) func(error) {
	logger := log.LoggerFromContext(ctx)
	return func(err error) {
		if status.Code(err) == codes.Canceled {
			return
		}
		logger.Error("watch terminated",
			slog.String("watch", watch),
			slog.String("errorMsg", err.Error()),
		)
	}
}
