package social

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/alessandropanico/diary-sub001/page"
	"github.com/alessandropanico/diary-sub001/profile"
	"google.golang.org/api/iterator"
)

// ListUsers returns one page of user profiles ordered by nickname, ties
// broken by document id ascending so the order is total. Pass page.End as
// the cursor for the first page; a returned page.End cursor signals the end
// of the listing. Items created after the cursor position are picked up by
// later pages; items sorting before it are never revisited.
func (s *Service) ListUsers(ctx context.Context, pageSize int, cursor page.Cursor) ([]*profile.User, page.Cursor, error) {
	if pageSize < 1 {
		return nil, page.End, fmt.Errorf("%w: pageSize %d", ErrInvalidArgument, pageSize)
	}

	query := s.client.Collection(profile.UsersCollection).
		OrderBy(profile.NicknameField, firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)

	if cursor != page.End {
		nickname, uid, err := page.Decode(cursor)
		if err != nil {
			return nil, page.End, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		query = query.StartAfter(nickname, uid)
	}

	it := query.Limit(pageSize).Documents(ctx)
	defer it.Stop()

	var users []*profile.User
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, page.End, mapStoreErr(err)
		}
		user := profile.User{}
		if err := doc.DataTo(&user); err != nil {
			return nil, page.End, fmt.Errorf("decoding user %s: %w", doc.Ref.ID, err)
		}
		user.UID = doc.Ref.ID
		users = append(users, &user)
	}

	return users, nextCursor(users, pageSize), nil
}

// nextCursor points past the last item of a full page. A short page means
// the listing is exhausted.
func nextCursor(users []*profile.User, pageSize int) page.Cursor {
	if len(users) < pageSize {
		return page.End
	}
	last := users[len(users)-1]
	return page.Encode(last.Nickname, last.UID)
}
