package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gopherai-workspace/internal/citation"
	"gopherai-workspace/internal/metrics"
	"gopherai-workspace/internal/model"
	"gopherai-workspace/internal/session"
)

type PromptSource interface {
	ListPrompts(ctx context.Context, wsID, userID uint) ([]model.PromptRecord, error)
	ListSessionPrompts(ctx context.Context, wsID, userID uint, sessionID string) ([]model.PromptRecord, error)
}

// PromptCache is optional. A dirty pair always reads through to the source.
type PromptCache interface {
	GetPrompts(ctx context.Context, wsID, userID uint) ([]model.PromptRecord, bool, error)
	SetPrompts(ctx context.Context, wsID, userID uint, records []model.PromptRecord) error
	IsDirty(ctx context.Context, wsID, userID uint) (bool, error)
}

type Config struct {
	Prompts PromptSource
	Cache   PromptCache
	NewID   func() string
	Now     func() time.Time
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Conversation is a rebuilt transcript together with the session record it
// implies. It is meant to be published as one unit.
type Conversation struct {
	Found     bool                `json:"found"`
	SessionID string              `json:"session_id"`
	Record    model.SessionRecord `json:"record"`
	Messages  []model.ChatMessage `json:"messages"`
}

type Reconstructor struct {
	prompts  PromptSource
	cache    PromptCache
	newID    func() string
	now      func() time.Time
	inferrer session.TextualInference
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func New(cfg Config) *Reconstructor {
	r := &Reconstructor{
		prompts: cfg.Prompts,
		cache:   cfg.Cache,
		newID:   cfg.NewID,
		now:     cfg.Now,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Latest rebuilds the most recent session of a workspace. The most recent
// session is the one holding the highest prompt id, whatever the wall clock
// or session id ordering says.
func (r *Reconstructor) Latest(ctx context.Context, wsID, userID uint) (Conversation, error) {
	records, err := r.fetchAll(ctx, wsID, userID)
	if err != nil {
		r.count("error")
		return Conversation{}, fmt.Errorf("load prompt history failed: %w", err)
	}
	group := latestGroup(records)
	if len(group) == 0 {
		r.count("empty")
		return Conversation{Record: emptyRecord("")}, nil
	}
	r.count("ok")
	return r.build(ctx, wsID, group), nil
}

// ForSession rebuilds one explicitly chosen session.
func (r *Reconstructor) ForSession(ctx context.Context, wsID, userID uint, sessionID string) (Conversation, error) {
	records, err := r.prompts.ListSessionPrompts(ctx, wsID, userID, sessionID)
	if err != nil {
		r.count("error")
		return Conversation{}, fmt.Errorf("load session history failed: %w", err)
	}
	group := make([]model.PromptRecord, 0, len(records))
	for _, rec := range records {
		if rec.SessionID == "" || rec.SessionID == sessionID {
			rec.SessionID = sessionID
			group = append(group, rec)
		}
	}
	if len(group) == 0 {
		r.count("empty")
		return Conversation{SessionID: sessionID, Record: emptyRecord(sessionID)}, nil
	}
	r.count("ok")
	return r.build(ctx, wsID, group), nil
}

// All returns every prompt record of the pair, for the history dialog.
func (r *Reconstructor) All(ctx context.Context, wsID, userID uint) ([]model.PromptRecord, error) {
	return r.fetchAll(ctx, wsID, userID)
}

func (r *Reconstructor) fetchAll(ctx context.Context, wsID, userID uint) ([]model.PromptRecord, error) {
	if r.cache != nil {
		dirty, err := r.cache.IsDirty(ctx, wsID, userID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := r.cache.GetPrompts(ctx, wsID, userID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	records, err := r.prompts.ListPrompts(ctx, wsID, userID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if dirty, dirtyErr := r.cache.IsDirty(ctx, wsID, userID); dirtyErr == nil && !dirty {
			if err := r.cache.SetPrompts(ctx, wsID, userID, records); err != nil {
				r.logger.Warn().Err(err).Uint("ws_id", wsID).Msg("prompt cache fill failed")
			}
		}
	}
	return records, nil
}

func (r *Reconstructor) build(ctx context.Context, wsID uint, group []model.PromptRecord) Conversation {
	sorted := make([]model.PromptRecord, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PromptID < sorted[j].PromptID })

	sessionID := sorted[0].SessionID
	ts := r.now()
	messages := make([]model.ChatMessage, 0, 2*len(sorted))
	for _, rec := range sorted {
		messages = append(messages,
			model.ChatMessage{
				ID:          r.newID(),
				WorkspaceID: wsID,
				Role:        model.RoleUser,
				Content:     rec.PromptText,
				Timestamp:   ts,
			},
			model.ChatMessage{
				ID:          r.newID(),
				WorkspaceID: wsID,
				Role:        model.RoleAssistant,
				Content:     rec.ResponseText,
				Timestamp:   ts,
				Sources:     citation.ParseSources(rec.Sources),
			},
		)
	}

	// textual inference never fails
	docs, _ := r.inferrer.Documents(ctx, session.DocumentQuery{SessionID: sessionID, Records: sorted})
	return Conversation{
		Found:     true,
		SessionID: sessionID,
		Record: model.SessionRecord{
			SessionID: sessionID,
			Type:      citation.ClassifySessionType(docs),
			Documents: docs,
		},
		Messages: messages,
	}
}

// latestGroup groups records by session and returns the group holding the
// record with the highest prompt id. Ties go to the first record seen.
func latestGroup(records []model.PromptRecord) []model.PromptRecord {
	if len(records) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(records); i++ {
		if records[i].PromptID > records[best].PromptID {
			best = i
		}
	}
	target := records[best].SessionID
	group := make([]model.PromptRecord, 0, len(records))
	for _, rec := range records {
		if rec.SessionID == target {
			group = append(group, rec)
		}
	}
	return group
}

func emptyRecord(sessionID string) model.SessionRecord {
	return model.SessionRecord{SessionID: sessionID, Type: model.SessionEmpty, Documents: []string{}}
}

func (r *Reconstructor) count(result string) {
	if r.metrics != nil {
		r.metrics.Reconstructions.WithLabelValues(result).Inc()
	}
}
