package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"content-graph/backend/internal/graph"
	apperrors "content-graph/backend/pkg/errors"
)

// EventType names a domain event a producer can send to the dispatcher
type EventType string

const (
	EventContentPublished        EventType = "content_published"
	EventGameSessionCompleted    EventType = "game_session_completed"
	EventSportsFixtureUpdated    EventType = "sports_fixture_updated"
	EventChatConversationCreated EventType = "chat_conversation_created"
)

// SystemEvent is the envelope producers send: a type and a raw payload
type SystemEvent struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// UpdateSummary lists what one event wrote to the graph. When a step fails
// Partial is set and CompletedSteps names the steps that did persist, so the
// caller can re-send the event.
type UpdateSummary struct {
	Nodes          []graph.Node         `json:"nodes"`
	Relationships  []graph.Relationship `json:"relationships"`
	Concepts       []Concept            `json:"concepts"`
	CompletedSteps []string             `json:"completed_steps"`
	Partial        bool                 `json:"partial"`
}

func newUpdateSummary() *UpdateSummary {
	return &UpdateSummary{
		Nodes:          []graph.Node{},
		Relationships:  []graph.Relationship{},
		Concepts:       []Concept{},
		CompletedSteps: []string{},
	}
}

// ContentPublishedPayload is the data of a content_published event
type ContentPublishedPayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title" validate:"required"`
	Slug        string   `json:"slug"`
	Summary     string   `json:"summary"`
	Content     string   `json:"content"`
	Author      string   `json:"author"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	PublishedAt string   `json:"publishedAt"`
}

// GameSessionPayload is the data of a game_session_completed event
type GameSessionPayload struct {
	GameType     string   `json:"gameType" validate:"required"`
	UserID       string   `json:"userId" validate:"required"`
	Score        float64  `json:"score" validate:"gte=0"`
	Level        int      `json:"level" validate:"gte=0"`
	Duration     float64  `json:"duration" validate:"gte=0"`
	Achievements []string `json:"achievements"`
	CompletedAt  string   `json:"completedAt"`
}

// SportsFixturePayload is the data of a sports_fixture_updated event
type SportsFixturePayload struct {
	League string         `json:"league"`
	Games  []FixtureEntry `json:"games" validate:"required,min=1,dive"`
}

// FixtureEntry is a single game in a fixture update
type FixtureEntry struct {
	HomeTeam  string `json:"homeTeam" validate:"required,nefield=AwayTeam"`
	AwayTeam  string `json:"awayTeam" validate:"required"`
	HomeScore *int   `json:"homeScore"`
	AwayScore *int   `json:"awayScore"`
	Status    string `json:"status"`
	Venue     string `json:"venue"`
	StartTime string `json:"startTime"`
}

// ChatConversationPayload is the data of a chat_conversation_created event
type ChatConversationPayload struct {
	ConversationID string        `json:"conversationId" validate:"required"`
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	Profile        string        `json:"profile"`
	Messages       []ChatMessage `json:"messages" validate:"dive"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProcessSystemEvent dispatches ev to the pipeline for its type. Unknown
// types are ignored and produce an empty summary. A recognised payload that
// fails validation is rejected before anything is written. Pipelines are not
// transactional: on a failed step the summary of what was written is
// returned together with the error.
func (e *Engine) ProcessSystemEvent(ctx context.Context, ev SystemEvent) (*UpdateSummary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	var steps []step
	var err error
	switch ev.Type {
	case EventContentPublished:
		var p ContentPublishedPayload
		if err = decodePayload(ev.Data, &p); err == nil {
			steps = e.contentPipeline(p)
		}
	case EventGameSessionCompleted:
		var p GameSessionPayload
		if err = decodePayload(ev.Data, &p); err == nil {
			steps = e.gameSessionPipeline(p)
		}
	case EventSportsFixtureUpdated:
		var p SportsFixturePayload
		if err = decodePayload(ev.Data, &p); err == nil {
			steps = e.sportsFixturePipeline(p)
		}
	case EventChatConversationCreated:
		var p ChatConversationPayload
		if err = decodePayload(ev.Data, &p); err == nil {
			steps = e.chatConversationPipeline(p)
		}
	default:
		e.metrics.RecordEvent(string(ev.Type), "ignored")
		e.logger.Warn("Ignoring unrecognised event type", zap.String("event_type", string(ev.Type)))
		return newUpdateSummary(), nil
	}
	if err != nil {
		e.metrics.RecordEvent(string(ev.Type), "invalid")
		return nil, err
	}

	start := time.Now()
	summary, err := e.runSteps(ctx, steps)
	if err != nil {
		e.metrics.RecordEvent(string(ev.Type), "error")
		e.logger.Error("Event pipeline failed",
			zap.String("event_type", string(ev.Type)),
			zap.Strings("completed_steps", summary.CompletedSteps),
			zap.Error(err))
		return summary, err
	}

	e.metrics.RecordEvent(string(ev.Type), "ok")
	e.logger.Info("Processed event",
		zap.String("event_type", string(ev.Type)),
		zap.Int("nodes", len(summary.Nodes)),
		zap.Int("relationships", len(summary.Relationships)),
		zap.Int("concepts", len(summary.Concepts)),
		zap.Duration("elapsed", time.Since(start)))
	return summary, nil
}

// normalizer is implemented by payloads whose identity fields are trimmed
// before validation, so blank names and padded duplicates are caught up front.
type normalizer interface {
	normalize()
}

func (p *ContentPublishedPayload) normalize() {
	p.Title = strings.TrimSpace(p.Title)
}

func (p *GameSessionPayload) normalize() {
	p.GameType = strings.TrimSpace(p.GameType)
	p.UserID = strings.TrimSpace(p.UserID)
}

func (p *SportsFixturePayload) normalize() {
	for i := range p.Games {
		p.Games[i].HomeTeam = strings.TrimSpace(p.Games[i].HomeTeam)
		p.Games[i].AwayTeam = strings.TrimSpace(p.Games[i].AwayTeam)
	}
}

func (p *ChatConversationPayload) normalize() {
	p.ConversationID = strings.TrimSpace(p.ConversationID)
}

func decodePayload(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		return apperrors.NewValidationError("data", "payload is required")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.NewValidationError("data", fmt.Sprintf("malformed payload: %v", err))
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	return validateInput(dst)
}
