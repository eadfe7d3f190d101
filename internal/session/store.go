package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gopherai-workspace/internal/citation"
	"gopherai-workspace/internal/metrics"
	"gopherai-workspace/internal/model"
)

const (
	KeySessionIDs       = "workspace_session_ids"
	KeySessionTypes     = "workspace_session_types"
	KeySessionDocuments = "workspace_session_documents"

	persistTimeout = 3 * time.Second
)

var ErrNoSession = errors.New("no session found for this workspace")

// KV is the durable backend for the three session maps. SetMany writes all
// entries or none of them.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetMany(ctx context.Context, entries map[string][]byte) error
}

type Config struct {
	KV      KV
	Live    DocumentStrategy
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Store owns the per-workspace session id, session type and document list.
// Every mutation rewrites all three maps to the KV before returning.
type Store struct {
	mu      sync.Mutex
	kv      KV
	live    DocumentStrategy
	logger  zerolog.Logger
	metrics *metrics.Metrics

	sessionIDs       map[uint]string
	sessionTypes     map[uint]model.SessionType
	sessionDocuments map[uint][]string
}

// Snapshot is a copy of the three persisted maps.
type Snapshot struct {
	SessionIDs       map[uint]string            `json:"workspace_session_ids" yaml:"workspace_session_ids"`
	SessionTypes     map[uint]model.SessionType `json:"workspace_session_types" yaml:"workspace_session_types"`
	SessionDocuments map[uint][]string          `json:"workspace_session_documents" yaml:"workspace_session_documents"`
}

// Open restores the maps from the KV. Missing or corrupt maps start empty and
// are written back so all three keys exist afterwards.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.KV == nil {
		return nil, errors.New("session store requires a kv backend")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Global()
	}
	s := &Store{
		kv:               cfg.KV,
		live:             cfg.Live,
		logger:           cfg.Logger.With().Str("component", "session_store").Logger(),
		metrics:          cfg.Metrics,
		sessionIDs:       map[uint]string{},
		sessionTypes:     map[uint]model.SessionType{},
		sessionDocuments: map[uint][]string{},
	}

	complete := true
	for _, item := range []struct {
		key  string
		dest any
	}{
		{KeySessionIDs, &s.sessionIDs},
		{KeySessionTypes, &s.sessionTypes},
		{KeySessionDocuments, &s.sessionDocuments},
	} {
		ok, err := s.restore(ctx, item.key, item.dest)
		if err != nil {
			return nil, err
		}
		complete = complete && ok
	}
	s.normalizeLocked()

	if !complete {
		s.mu.Lock()
		s.persistLocked(ctx)
		s.mu.Unlock()
	}
	return s, nil
}

func (s *Store) restore(ctx context.Context, key string, dest any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s failed: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discard corrupt session state")
		return false, nil
	}
	return true, nil
}

// normalizeLocked repairs maps decoded from storage: nil maps become empty
// and unknown session types are recomputed from the document list.
func (s *Store) normalizeLocked() {
	if s.sessionIDs == nil {
		s.sessionIDs = map[uint]string{}
	}
	if s.sessionTypes == nil {
		s.sessionTypes = map[uint]model.SessionType{}
	}
	if s.sessionDocuments == nil {
		s.sessionDocuments = map[uint][]string{}
	}
	for wsID, t := range s.sessionTypes {
		if !t.Valid() {
			s.sessionTypes[wsID] = citation.ClassifySessionType(s.sessionDocuments[wsID])
		}
	}
}

// EnsureSession returns the workspace's session id, preferring the id carried
// on the workspace itself. Sessions are never created here.
func (s *Store) EnsureSession(ws model.Workspace) (string, error) {
	if ws.SessionID != "" {
		return ws.SessionID, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id := s.sessionIDs[ws.ID]; id != "" {
		return id, nil
	}
	return "", ErrNoSession
}

// Bind records the session id the backend reports for a workspace.
func (s *Store) Bind(ctx context.Context, wsID uint, sessionID string) {
	if wsID == 0 || sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionIDs[wsID] == sessionID {
		return
	}
	s.sessionIDs[wsID] = sessionID
	s.persistLocked(ctx)
}

// Init starts a fresh record for a newly created workspace.
func (s *Store) Init(ctx context.Context, wsID uint, sessionID string) model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionIDs[wsID] = sessionID
	s.sessionTypes[wsID] = model.SessionEmpty
	s.sessionDocuments[wsID] = []string{}
	s.persistLocked(ctx)
	return s.recordLocked(wsID)
}

// RecordDocument appends name unless an identical entry exists. Names that
// are URLs also collide with their scheme-less form. An empty
// session becomes pdf; any other type is left alone.
func (s *Store) RecordDocument(ctx context.Context, wsID uint, name string) model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.sessionDocuments[wsID]
	if !containsDocument(docs, name) {
		s.sessionDocuments[wsID] = append(cloneDocs(docs), name)
	}
	s.promoteLocked(wsID, model.SessionPDF)
	s.persistLocked(ctx)
	return s.recordLocked(wsID)
}

// RecordURL appends link unless an entry with the same scheme-less,
// case-folded form exists. An empty session becomes url.
func (s *Store) RecordURL(ctx context.Context, wsID uint, link string) model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.sessionDocuments[wsID]
	if !containsURL(docs, link) {
		s.sessionDocuments[wsID] = append(cloneDocs(docs), link)
	}
	s.promoteLocked(wsID, model.SessionURL)
	s.persistLocked(ctx)
	return s.recordLocked(wsID)
}

// HasURL reports whether link is already attached to the workspace.
func (s *Store) HasURL(wsID uint, link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return containsURL(s.sessionDocuments[wsID], link)
}

// RefreshFromRemote replaces the document list with the live listing and
// reclassifies the session. On failure the current record is kept.
func (s *Store) RefreshFromRemote(ctx context.Context, wsID uint, sessionID string) (model.SessionRecord, error) {
	if sessionID == "" {
		return s.Record(wsID), ErrNoSession
	}
	if s.live == nil {
		return s.Record(wsID), errors.New("session store has no live document strategy")
	}

	docs, err := s.live.Documents(ctx, DocumentQuery{SessionID: sessionID})
	if err != nil {
		s.metrics.Reconciliations.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).
			Uint("workspace_id", wsID).
			Str("session_id", sessionID).
			Str("strategy", s.live.Name()).
			Msg("refresh session documents failed, keeping local state")
		return s.Record(wsID), fmt.Errorf("refresh session documents failed: %w", err)
	}
	s.metrics.Reconciliations.WithLabelValues("ok").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionIDs[wsID] = sessionID
	s.sessionDocuments[wsID] = cloneDocs(docs)
	s.sessionTypes[wsID] = citation.ClassifySessionType(docs)
	s.persistLocked(ctx)
	return s.recordLocked(wsID), nil
}

// Apply replaces the whole record for a workspace in one step.
func (s *Store) Apply(ctx context.Context, wsID uint, rec model.SessionRecord) model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.SessionID != "" {
		s.sessionIDs[wsID] = rec.SessionID
	}
	t := rec.Type
	if !t.Valid() {
		t = citation.ClassifySessionType(rec.Documents)
	}
	s.sessionTypes[wsID] = t
	s.sessionDocuments[wsID] = cloneDocs(rec.Documents)
	s.persistLocked(ctx)
	return s.recordLocked(wsID)
}

// Forget drops every trace of a workspace.
func (s *Store) Forget(ctx context.Context, wsID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hadID := s.sessionIDs[wsID]
	_, hadType := s.sessionTypes[wsID]
	_, hadDocs := s.sessionDocuments[wsID]
	if !hadID && !hadType && !hadDocs {
		return false
	}
	delete(s.sessionIDs, wsID)
	delete(s.sessionTypes, wsID)
	delete(s.sessionDocuments, wsID)
	s.persistLocked(ctx)
	return true
}

func (s *Store) Record(wsID uint) model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(wsID)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionIDs:       make(map[uint]string, len(s.sessionIDs)),
		SessionTypes:     make(map[uint]model.SessionType, len(s.sessionTypes)),
		SessionDocuments: make(map[uint][]string, len(s.sessionDocuments)),
	}
	for k, v := range s.sessionIDs {
		snap.SessionIDs[k] = v
	}
	for k, v := range s.sessionTypes {
		snap.SessionTypes[k] = v
	}
	for k, v := range s.sessionDocuments {
		snap.SessionDocuments[k] = cloneDocs(v)
	}
	return snap
}

func (s *Store) recordLocked(wsID uint) model.SessionRecord {
	t, ok := s.sessionTypes[wsID]
	if !ok {
		t = model.SessionEmpty
	}
	return model.SessionRecord{
		SessionID: s.sessionIDs[wsID],
		Type:      t,
		Documents: cloneDocs(s.sessionDocuments[wsID]),
	}
}

func (s *Store) promoteLocked(wsID uint, to model.SessionType) {
	current, ok := s.sessionTypes[wsID]
	if !ok || current == model.SessionEmpty {
		s.sessionTypes[wsID] = to
	}
}

// persistLocked writes all three maps in one SetMany. A failed write is
// logged and counted; the in-memory state stays authoritative until the next
// successful write.
func (s *Store) persistLocked(ctx context.Context) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	entries := make(map[string][]byte, 3)
	for _, item := range []struct {
		key   string
		value any
	}{
		{KeySessionIDs, s.sessionIDs},
		{KeySessionTypes, s.sessionTypes},
		{KeySessionDocuments, s.sessionDocuments},
	} {
		payload, err := json.Marshal(item.value)
		if err != nil {
			s.metrics.StateWrites.WithLabelValues("error").Inc()
			s.logger.Error().Err(err).Str("key", item.key).Msg("encode session state failed")
			return
		}
		entries[item.key] = payload
	}
	if err := s.kv.SetMany(writeCtx, entries); err != nil {
		s.metrics.StateWrites.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("persist session state failed")
		return
	}
	s.metrics.StateWrites.WithLabelValues("ok").Inc()
}

// containsDocument matches exactly, and by URL key whenever either side is a URL.
func containsDocument(docs []string, name string) bool {
	nameIsURL := citation.IsURL(name)
	key := citation.URLKey(name)
	for _, doc := range docs {
		if doc == name {
			return true
		}
		if (nameIsURL || citation.IsURL(doc)) && citation.URLKey(doc) == key {
			return true
		}
	}
	return false
}

func containsURL(docs []string, link string) bool {
	key := citation.URLKey(link)
	for _, doc := range docs {
		if citation.URLKey(doc) == key {
			return true
		}
	}
	return false
}

func cloneDocs(docs []string) []string {
	out := make([]string, len(docs))
	copy(out, docs)
	return out
}
