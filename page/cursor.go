// Package page implements opaque cursors for resumable, ordered listings.
//
// A cursor captures the position of the last returned item as its sort key
// plus a tiebreak key (the document id), so a query can restart strictly
// after that position in the total order. Cursors are stateless and never
// persisted.
package page

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Cursor is an opaque position marker inside an ordered listing.
type Cursor string

// End marks the end of a listing: no further pages exist.
const End Cursor = ""

var ErrInvalidCursor = errors.New("page: invalid cursor")

type cursorData struct {
	SortKey     string `json:"k"`
	TiebreakKey string `json:"t"`
}

// Encode builds a cursor from the sort key and tiebreak key of the last
// item returned on a page.
func Encode(sortKey, tiebreakKey string) Cursor {
	data, _ := json.Marshal(cursorData{SortKey: sortKey, TiebreakKey: tiebreakKey})
	return Cursor(base64.RawURLEncoding.EncodeToString(data))
}

// Decode recovers the keys encoded in the cursor. Decode(Encode(k, t))
// returns (k, t) for all keys.
func Decode(c Cursor) (sortKey, tiebreakKey string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var data cursorData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return data.SortKey, data.TiebreakKey, nil
}
