package diary

import (
	"context"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/alessandropanico/diary-sub001/conversation"
	"github.com/alessandropanico/diary-sub001/dispatch"
	"github.com/alessandropanico/diary-sub001/log"
	"github.com/alessandropanico/diary-sub001/profile"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/googleapis/google-cloudevents-go/cloud/firestoredata"
	"google.golang.org/protobuf/proto"
)

const (
	senderIDField   = "senderId"
	senderNameField = "senderName"
	textField       = "text"
	timestampField  = "timestamp"
)

func init() {
	functions.CloudEvent("MessageCreated", MessageCreated)
}

// MessageCreated handles the Firestore create trigger on
// chats/{chatId}/messages/{messageId}. It always reports success to the
// trigger: a notification-delivery fault must never fail or retry the
// write that produced the message.
func MessageCreated(ctx context.Context, e event.Event) error {
	logger := log.LoggerFromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("message dispatch panicked", slog.Any("panic", r))
		}
	}()

	var data firestoredata.DocumentEventData
	if err := proto.Unmarshal(e.Data(), &data); err != nil {
		logger.Error("error while decoding firestore event", slog.String(errorMsgLogField, err.Error()))
		return nil
	}
	doc := data.GetValue()
	if doc == nil {
		return nil
	}

	msg, ok := messageFromDocument(doc)
	if !ok {
		logger.Error("unexpected document path", slog.String("document", doc.GetName()))
		return nil
	}

	ev := dispatch.Event{
		ChatID:     msg.ConversationID,
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
	}
	logger = logger.With(
		slog.String(chatIDLogField, ev.ChatID),
		slog.String(messageIDLogField, ev.MessageID),
		slog.String(senderIDLogField, ev.SenderID),
	)
	ctx = log.WithLogger(ctx, logger)
	logger.Info("message created")

	fsClient, err := newFirestoreClient(ctx)
	if err != nil {
		logger.Error("error while creating firestore client", slog.String(errorMsgLogField, err.Error()))
		return nil
	}
	defer fsClient.Close()

	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		logger.Error("error while creating firebase app", slog.String(errorMsgLogField, err.Error()))
		return nil
	}
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		logger.Error("error while creating messaging client", slog.String(errorMsgLogField, err.Error()))
		return nil
	}

	dispatcher := dispatch.New(
		conversation.NewStore(fsClient),
		profile.NewStore(fsClient),
		dispatch.NewFCMSender(msgClient),
	)

	outcome, err := dispatcher.Dispatch(ctx, ev)
	if err != nil {
		logger.Error("dispatch failed", slog.String(errorMsgLogField, err.Error()))
		return nil
	}
	logger.Info("dispatch completed",
		slog.String("stage", string(outcome.Stage)),
		slog.Int("recipients", outcome.Recipients),
		slog.Int("tokens", outcome.Tokens),
		slog.Int("sent", outcome.Sent),
		slog.Int("pruned", outcome.Pruned),
	)
	return nil
}

// messageIDsFromPath extracts the chat and message ids from a fully
// qualified document name like
// projects/p/databases/(default)/documents/chats/c1/messages/m1.
func messageIDsFromPath(name string) (chatID, messageID string, ok bool) {
	const marker = "/documents/"
	i := strings.Index(name, marker)
	if i < 0 {
		return "", "", false
	}
	parts := strings.Split(name[i+len(marker):], "/")
	if len(parts) != 4 || parts[0] != conversation.ChatsCollection || parts[2] != conversation.MessagesCollection {
		return "", "", false
	}
	if parts[1] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// messageFromDocument decodes a Firestore message document from the trigger
// payload. It reports false when the document does not live under
// chats/{chatId}/messages/{messageId}.
func messageFromDocument(doc *firestoredata.Document) (conversation.Message, bool) {
	chatID, messageID, ok := messageIDsFromPath(doc.GetName())
	if !ok {
		return conversation.Message{}, false
	}
	return conversation.Message{
		ID:             messageID,
		ConversationID: chatID,
		SenderID:       stringField(doc, senderIDField),
		SenderName:     stringField(doc, senderNameField),
		Text:           stringField(doc, textField),
		Timestamp:      doc.GetFields()[timestampField].GetTimestampValue().AsTime(),
	}, true
}

func stringField(doc *firestoredata.Document, field string) string {
	value, ok := doc.GetFields()[field]
	if !ok {
		return ""
	}
	return value.GetStringValue()
}
