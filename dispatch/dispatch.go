// Package dispatch fans a new chat message out to the push tokens of every
// other conversation participant.
//
// The pipeline is a pure function of its event with all I/O behind injected
// interfaces. It runs at-least-once: a redelivered trigger re-dispatches
// and duplicates are accepted. Tokens reported permanently invalid by the
// push provider are pruned from the owning profile; transient send failures
// leave the token in place.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alessandropanico/diary-sub001/conversation"
	"github.com/alessandropanico/diary-sub001/log"
	"github.com/alessandropanico/diary-sub001/profile"
)

const (
	// SystemSender marks messages written by the app itself; they never
	// trigger a notification.
	SystemSender = "system"

	titleFormat      = "%s ti ha inviato un messaggio!"
	emptyBodyText    = "Nuovo messaggio"
	clickAction      = "FLUTTER_NOTIFICATION_CLICK"
	errorMsgLogField = "errorMsg"
)

// Stage is the last pipeline stage an event completed.
type Stage string

const (
	StageReceived             Stage = "received"
	StageFiltered             Stage = "filtered"
	StageParticipantsResolved Stage = "participantsResolved"
	StageTokensResolved       Stage = "tokensResolved"
	StageDispatched           Stage = "dispatched"
	StagePruned               Stage = "pruned"
	StageDone                 Stage = "done"
)

// Event is one message-creation occurrence.
type Event struct {
	ChatID     string
	MessageID  string
	SenderID   string
	SenderName string
	Text       string
}

// Outcome reports what one dispatch did.
type Outcome struct {
	Stage      Stage
	Recipients int
	Tokens     int
	Sent       int
	Pruned     int
}

// Payload is the notification sent to every recipient token.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string
}

// SendResult is the per-token result of a batch send. Permanent marks a
// token the provider reports as no longer registered; only those are
// pruned.
type SendResult struct {
	Token     string
	Err       error
	Permanent bool
}

// Conversations resolves conversations by id.
type Conversations interface {
	Get(ctx context.Context, chatID string) (*conversation.Conversation, error)
}

// Profiles resolves recipient profiles and prunes dead tokens.
type Profiles interface {
	Get(ctx context.Context, uid string) (*profile.User, error)
	RemoveToken(ctx context.Context, uid, token string) error
}

// Sender delivers one payload to a token batch.
type Sender interface {
	Send(ctx context.Context, p Payload, tokens []string) ([]SendResult, error)
}

// Dispatcher runs the fan-out pipeline.
type Dispatcher struct {
	conversations Conversations
	profiles      Profiles
	sender        Sender
}

func New(conversations Conversations, profiles Profiles, sender Sender) *Dispatcher {
	return &Dispatcher{
		conversations: conversations,
		profiles:      profiles,
		sender:        sender,
	}
}

// Dispatch runs the pipeline for one message-creation event. Sentinel
// senders, missing conversations and empty recipient or token sets are
// normal early exits, not errors. A returned error means a required
// resolution step or the batch send failed; the caller logs it and must
// not fail the triggering write.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Outcome, error) {
	logger := log.LoggerFromContext(ctx).With(
		slog.String("chatId", ev.ChatID),
		slog.String("messageId", ev.MessageID),
	)
	outcome := Outcome{Stage: StageReceived}

	if ev.SenderID == "" || ev.SenderID == SystemSender {
		outcome.Stage = StageFiltered
		return outcome, nil
	}
	outcome.Stage = StageFiltered

	conv, err := d.conversations.Get(ctx, ev.ChatID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			logger.Info("conversation gone, skipping dispatch")
			return outcome, nil
		}
		return outcome, fmt.Errorf("resolving conversation: %w", err)
	}

	recipients := removeUID(conv.Participants, ev.SenderID)
	if len(recipients) == 0 {
		logger.Info("no recipients besides sender, skipping dispatch")
		return outcome, nil
	}
	outcome.Stage = StageParticipantsResolved
	outcome.Recipients = len(recipients)

	tokens, owners := d.resolveTokens(ctx, logger, recipients)
	outcome.Stage = StageTokensResolved
	outcome.Tokens = len(tokens)
	if len(tokens) == 0 {
		return outcome, nil
	}

	results, err := d.sender.Send(ctx, buildPayload(ev), tokens)
	if err != nil {
		return outcome, fmt.Errorf("sending notifications: %w", err)
	}
	outcome.Stage = StageDispatched
	for _, res := range results {
		if res.Err == nil {
			outcome.Sent++
		}
	}

	outcome.Pruned = d.prune(ctx, logger, results, owners)
	outcome.Stage = StagePruned

	outcome.Stage = StageDone
	return outcome, nil
}

// resolveTokens collects the active tokens of every recipient, remembering
// which profile owns each token. A missing profile is logged and skipped;
// one recipient's failure never blocks the others.
func (d *Dispatcher) resolveTokens(ctx context.Context, logger *slog.Logger, recipients []string) (tokens []string, owners map[string]string) {
	owners = map[string]string{}
	for _, uid := range recipients {
		user, err := d.profiles.Get(ctx, uid)
		if err != nil {
			logger.Warn("skipping recipient",
				slog.String("uid", uid),
				slog.String(errorMsgLogField, err.Error()),
			)
			continue
		}
		for _, token := range profile.ActiveTokens(user) {
			tokens = append(tokens, token)
			owners[token] = uid
		}
	}
	return tokens, owners
}

// prune removes tokens whose send result reports a permanent registration
// failure. Transient failures leave the token in place.
func (d *Dispatcher) prune(ctx context.Context, logger *slog.Logger, results []SendResult, owners map[string]string) int {
	pruned := 0
	for _, res := range results {
		if !res.Permanent {
			continue
		}
		uid, ok := owners[res.Token]
		if !ok {
			continue
		}
		if err := d.profiles.RemoveToken(ctx, uid, res.Token); err != nil {
			logger.Warn("failed to prune token",
				slog.String("uid", uid),
				slog.String(errorMsgLogField, err.Error()),
			)
			continue
		}
		pruned++
		logger.Info("pruned dead token", slog.String("uid", uid))
	}
	return pruned
}

func buildPayload(ev Event) Payload {
	body := Preview(ev.Text)
	if body == "" {
		body = emptyBodyText
	}
	return Payload{
		Title: fmt.Sprintf(titleFormat, ev.SenderName),
		Body:  body,
		Data: map[string]string{
			"chatId":       ev.ChatID,
			"senderId":     ev.SenderID,
			"messageId":    ev.MessageID,
			"click_action": clickAction,
		},
	}
}

func removeUID(uids []string, uid string) []string {
	var out []string
	for _, u := range uids {
		if u != uid && u != "" {
			out = append(out, u)
		}
	}
	return out
}
