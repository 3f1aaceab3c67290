// Package conversation reads chat conversations and messages. The chat UI
// owns these documents; this package never writes them.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/alessandropanico/diary-sub001/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// ChatsCollection is the Firestore collection holding conversations.
	ChatsCollection = "chats"
	// MessagesCollection is the per-conversation message subcollection.
	MessagesCollection = "messages"
)

var (
	ErrNotFound    = errors.New("conversation: not found")
	ErrUnavailable = errors.New("conversation: backend unavailable")
)

// Conversation is one chat thread between two or more participants.
type Conversation struct {
	ID            string    `firestore:"-"`
	Participants  []string  `firestore:"participants"`
	LastMessage   string    `firestore:"lastMessage"`
	LastMessageAt time.Time `firestore:"lastMessageAt"`
}

// Message is one chat message inside a conversation.
type Message struct {
	ID             string    `firestore:"-"`
	ConversationID string    `firestore:"-"`
	SenderID       string    `firestore:"senderId"`
	SenderName     string    `firestore:"senderName"`
	Text           string    `firestore:"text"`
	Timestamp      time.Time `firestore:"timestamp"`
}

// Store reads conversation documents.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Get loads one conversation. A missing document is ErrNotFound.
func (s *Store) Get(ctx context.Context, chatID string) (*Conversation, error) {
	doc, err := s.client.Collection(ChatsCollection).Doc(chatID).Get(ctx)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			logger.FromContext(ctx).Printf("conversation not found: %s", chatID)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, chatID)
		case codes.Unavailable, codes.DeadlineExceeded:
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	conv := Conversation{}
	if err := doc.DataTo(&conv); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", chatID, err)
	}
	conv.ID = doc.Ref.ID
	return &conv, nil
}
