package diary

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/alessandropanico/diary-sub001/auth"
	"github.com/alessandropanico/diary-sub001/contract"
	"github.com/alessandropanico/diary-sub001/log"
	"github.com/alessandropanico/diary-sub001/page"
	"github.com/alessandropanico/diary-sub001/social"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func init() {
	functions.HTTP("Users", Users)
}

// Users lists user profiles ordered by nickname, one page per call. The
// response carries an opaque cursor for the next page, null at the end of
// the listing.
func Users(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.LoggerFromContext(ctx)
	logger.Info("users function called")

	if r.Method != http.MethodGet {
		logger.Error("invalid method: " + r.Method)
		http.Error(w, "Method Not Implemented", http.StatusNotImplemented)
		return
	}

	uid, err := auth.Authenticate(r)
	if err != nil {
		logger.Error("error while authenticating", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	logger = logger.With(slog.String(userIDLogField, uid))
	ctx = log.WithLogger(ctx, logger)

	pageSize, err := parsePageSize(r.URL.Query().Get("page_size"))
	if err != nil {
		logger.Error("invalid page_size", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	cursor := page.Cursor(r.URL.Query().Get("cursor"))

	client, err := newFirestoreClient(ctx)
	if err != nil {
		logger.Error("error while creating firestore client", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer client.Close()

	users, next, err := social.NewService(client).ListUsers(ctx, pageSize, cursor)
	if err != nil {
		logger.Error("error while listing users", slog.String(errorMsgLogField, err.Error()))
		httpError(w, err)
		return
	}

	resp := contract.UsersResponse{Items: make([]contract.User, 0, len(users))}
	for _, u := range users {
		resp.Items = append(resp.Items, contract.User{
			UID:            u.UID,
			Nickname:       u.Nickname,
			FirstName:      u.FirstName,
			LastName:       u.LastName,
			Photo:          u.Photo,
			FollowersCount: u.FollowersCount,
			FollowingCount: u.FollowingCount,
		})
	}
	if next != page.End {
		s := string(next)
		resp.NextCursor = &s
	}

	writeJSON(w, logger, resp)
}

func parsePageSize(raw string) (int, error) {
	if raw == "" {
		return defaultPageSize, nil
	}
	pageSize, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if pageSize < 1 {
		return defaultPageSize, nil
	}
	if pageSize > maxPageSize {
		return maxPageSize, nil
	}
	return pageSize, nil
}
