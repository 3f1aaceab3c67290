// Package diary wires the diary app's core backend into Cloud Functions:
// a Firestore trigger fanning new chat messages out as push notifications,
// and an HTTP surface over the follow graph.
package diary

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/firestore"
	"github.com/alessandropanico/diary-sub001/social"
)

const (
	errorMsgLogField  = "errorMsg"
	userIDLogField    = "userID"
	targetIDLogField  = "targetID"
	chatIDLogField    = "chatId"
	messageIDLogField = "messageId"
	senderIDLogField  = "senderId"

	gcloudFuncSourceDir = "serverless_function_source_code"
)

func init() {
	fixDir()
}

// in GCP Functions, source code is placed in a directory named
// "serverless_function_source_code"
func fixDir() {
	fileInfo, err := os.Stat(gcloudFuncSourceDir)
	if err == nil && fileInfo.IsDir() {
		_ = os.Chdir(gcloudFuncSourceDir)
	}
}

func newFirestoreClient(ctx context.Context) (*firestore.Client, error) {
	projectID, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return firestore.NewClient(ctx, projectID)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("error while encoding response", slog.String(errorMsgLogField, err.Error()))
	}
}

// httpError maps a social graph error onto a response. Graph errors are
// user-visible: the client decides whether to retry.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, social.ErrSelfFollow), errors.Is(err, social.ErrInvalidArgument):
		http.Error(w, "Bad Request", http.StatusBadRequest)
	case errors.Is(err, social.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, social.ErrUnavailable):
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
