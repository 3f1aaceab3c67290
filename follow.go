package diary

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/alessandropanico/diary-sub001/auth"
	"github.com/alessandropanico/diary-sub001/contract"
	"github.com/alessandropanico/diary-sub001/log"
	"github.com/alessandropanico/diary-sub001/social"
)

func init() {
	functions.HTTP("Follow", Follow)
	functions.HTTP("Unfollow", Unfollow)
	functions.HTTP("ToggleFollow", ToggleFollow)
}

// Follow makes the authenticated user follow the target user.
func Follow(w http.ResponseWriter, r *http.Request) {
	handleEdgeMutation(w, r, "follow", (*social.Service).Follow)
}

// Unfollow removes the authenticated user's follow of the target user.
func Unfollow(w http.ResponseWriter, r *http.Request) {
	handleEdgeMutation(w, r, "unfollow", (*social.Service).Unfollow)
}

func handleEdgeMutation(w http.ResponseWriter, r *http.Request, name string, mutate func(*social.Service, context.Context, string, string) error) {
	ctx := r.Context()
	logger := log.LoggerFromContext(ctx)
	logger.Info(name + " function called")

	if r.Method != http.MethodPost {
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

	req, err := decodeFollowRequest(r)
	if err != nil {
		logger.Error("error while decoding request", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	logger = logger.With(
		slog.String(userIDLogField, uid),
		slog.String(targetIDLogField, req.TargetUID),
	)
	ctx = log.WithLogger(ctx, logger)

	client, err := newFirestoreClient(ctx)
	if err != nil {
		logger.Error("error while creating firestore client", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer client.Close()

	if err := mutate(social.NewService(client), ctx, uid, req.TargetUID); err != nil {
		logger.Error("error while mutating edge", slog.String(errorMsgLogField, err.Error()))
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFollow flips the follow state between the authenticated user and
// the target, and returns the new state.
func ToggleFollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.LoggerFromContext(ctx)
	logger.Info("toggleFollow function called")

	if r.Method != http.MethodPost {
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

	req, err := decodeFollowRequest(r)
	if err != nil {
		logger.Error("error while decoding request", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	logger = logger.With(
		slog.String(userIDLogField, uid),
		slog.String(targetIDLogField, req.TargetUID),
	)
	ctx = log.WithLogger(ctx, logger)

	client, err := newFirestoreClient(ctx)
	if err != nil {
		logger.Error("error while creating firestore client", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer client.Close()

	toggler := social.NewToggler(social.NewService(client), uid)
	if err := toggler.Refresh(ctx); err != nil {
		logger.Error("error while refreshing follow cache", slog.String(errorMsgLogField, err.Error()))
		httpError(w, err)
		return
	}
	following, err := toggler.Toggle(ctx, req.TargetUID)
	if err != nil {
		logger.Error("error while toggling follow", slog.String(errorMsgLogField, err.Error()))
		httpError(w, err)
		return
	}

	writeJSON(w, logger, contract.ToggleFollowResponse{Following: following})
}

func decodeFollowRequest(r *http.Request) (contract.FollowRequest, error) {
	req := contract.FollowRequest{}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return req, err
	}
	err = json.Unmarshal(data, &req)
	return req, err
}
