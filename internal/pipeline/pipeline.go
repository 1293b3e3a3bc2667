// ABOUTME: Inbound-message pipeline: filter, persist, and auto-reply via the AI gateway
// ABOUTME: AI failures degrade to a fixed fallback reply, never to a pipeline error

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skelter/wagate/internal/ai"
	"github.com/skelter/wagate/internal/dedupe"
	"github.com/skelter/wagate/internal/store"
	"github.com/skelter/wagate/internal/transport"
)

// FallbackReply is sent when AI generation ultimately fails.
const FallbackReply = "Sorry, I can't reply right now."

// DefaultHistoryLimit bounds the conversation window passed to the gateway.
const DefaultHistoryLimit = 10

// Pipeline processes inbound message events for one user.
type Pipeline struct {
	userID       string
	messages     store.MessageStore
	configs      store.ConfigStore
	gateway      ai.Gateway
	seen         *dedupe.Cache
	historyLimit int
	logger       *slog.Logger
}

// New creates a pipeline for one user. seen may be nil to disable
// deduplication; historyLimit <= 0 uses DefaultHistoryLimit.
func New(userID string, messages store.MessageStore, configs store.ConfigStore, gateway ai.Gateway, seen *dedupe.Cache, historyLimit int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Pipeline{
		userID:       userID,
		messages:     messages,
		configs:      configs,
		gateway:      gateway,
		seen:         seen,
		historyLimit: historyLimit,
		logger:       logger.With("component", "pipeline", "user_id", userID),
	}
}

// shouldDrop is the pure filter predicate: messages with no text body,
// from broadcast channels, or from group chats are discarded outright.
func shouldDrop(senderID, body string) bool {
	if body == "" {
		return true
	}
	if strings.Contains(senderID, "@broadcast") {
		return true
	}
	if strings.HasSuffix(senderID, "@g.us") {
		return true
	}
	return false
}

// Handle runs the full pipeline for one inbound message event. It never
// returns an error; every failure mode is either a silent drop, a logged
// persistence problem, or the fallback reply.
func (p *Pipeline) Handle(ctx context.Context, sender transport.Sender, msg *transport.InboundMessage) {
	if shouldDrop(msg.SenderID, msg.Body) {
		return
	}
	if p.seen != nil && msg.ExternalID != "" && p.seen.CheckAndMark(msg.ExternalID) {
		p.logger.Debug("duplicate message dropped", "external_id", msg.ExternalID)
		return
	}

	direction := store.DirectionInbound
	if msg.FromSelf {
		direction = store.DirectionOutbound
	}
	record := &store.Message{
		ID:         uuid.New().String(),
		UserID:     p.userID,
		PeerID:     msg.SenderID,
		ExternalID: msg.ExternalID,
		Content:    msg.Body,
		Direction:  direction,
		Timestamp:  time.Now(),
	}
	if err := p.messages.SaveMessage(ctx, record); err != nil {
		// No reply for a message we failed to record; history would
		// otherwise diverge from what the peer actually sent. The dedupe
		// mark is released so a transport redelivery gets another chance
		// to be persisted.
		if p.seen != nil && msg.ExternalID != "" {
			p.seen.Unmark(msg.ExternalID)
		}
		p.logger.Error("failed to persist inbound message", "error", err, "peer", msg.SenderID)
		return
	}

	// Echoes of the user's own manual sends are recorded but never answered.
	if msg.FromSelf {
		return
	}

	cfg, err := p.configs.GetAIConfig(ctx, p.userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Error("failed to load ai config", "error", err)
		}
		return
	}
	if !cfg.AutoReply || cfg.APIKey == "" {
		return
	}

	if err := sender.SetTyping(ctx, msg.SenderID); err != nil {
		p.logger.Debug("typing indicator failed", "error", err)
	}

	history, err := p.assembleHistory(ctx, msg.SenderID, record.ID)
	if err != nil {
		p.logger.Error("failed to load history", "error", err)
		history = nil
	}

	reply, err := p.gateway.Generate(ctx, ai.Request{
		Provider:     ai.Provider(cfg.Provider),
		Credential:   cfg.APIKey,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Message:      msg.Body,
		History:      history,
		Temperature:  cfg.Temperature,
	})
	if err != nil {
		p.logger.Warn("ai generation failed, using fallback",
			"error", err,
			"provider", cfg.Provider,
		)
		reply = FallbackReply
	}

	if err := sender.Send(ctx, msg.SenderID, reply); err != nil {
		p.logger.Error("failed to send reply", "error", err, "peer", msg.SenderID)
		return
	}

	outbound := &store.Message{
		ID:           uuid.New().String(),
		UserID:       p.userID,
		PeerID:       msg.SenderID,
		ExternalID:   "ai-" + uuid.New().String(),
		Content:      reply,
		Direction:    store.DirectionOutbound,
		IsAIResponse: true,
		Timestamp:    time.Now(),
	}
	if err := p.messages.SaveMessage(ctx, outbound); err != nil {
		p.logger.Error("failed to persist reply", "error", err)
	}
}

// assembleHistory returns the bounded recent exchange with the peer as
// provider-agnostic turns, oldest first. The triggering message is excluded;
// it travels separately as the current message.
func (p *Pipeline) assembleHistory(ctx context.Context, peerID, currentID string) ([]ai.Turn, error) {
	recent, err := p.messages.RecentPeerMessages(ctx, p.userID, peerID, p.historyLimit)
	if err != nil {
		return nil, err
	}

	turns := make([]ai.Turn, 0, len(recent))
	for _, m := range recent {
		if m.ID == currentID {
			continue
		}
		role := ai.RoleUser
		if m.Direction == store.DirectionOutbound {
			role = ai.RoleAssistant
		}
		turns = append(turns, ai.Turn{Role: role, Content: m.Content})
	}
	return turns, nil
}
