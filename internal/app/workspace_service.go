package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gopherai-workspace/internal/history"
	"gopherai-workspace/internal/metrics"
	"gopherai-workspace/internal/model"
	"gopherai-workspace/internal/notify"
	"gopherai-workspace/internal/session"
)

type ServiceConfig struct {
	Backend     BackendClient
	LLM         LLMClient
	History     HistoryReconstructor
	Store       *session.Store
	Inbox       *notify.Inbox
	Publisher   PromptPublisher
	PromptCache PromptCacheInvalidator

	ModelName   string
	Temperature float64
	TokenUsage  int

	NewID   func() string
	Now     func() time.Time
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// WorkspaceService applies user intents to the session store and the
// per-workspace conversations, calling out to the backend and llm service.
type WorkspaceService struct {
	backend     BackendClient
	llm         LLMClient
	history     HistoryReconstructor
	store       *session.Store
	inbox       *notify.Inbox
	publisher   PromptPublisher
	promptCache PromptCacheInvalidator

	modelName   string
	temperature float64
	tokenUsage  int

	newID   func() string
	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
	sends   *fifo

	mu       sync.Mutex
	users    map[uint]*userState
	messages map[uint][]model.ChatMessage
	loading  map[uint]bool
	drafts   map[uint]string
}

type userState struct {
	loaded     bool
	workspaces []model.Workspace
	selected   uint
}

// View is a consistent snapshot of one workspace as the user sees it.
type View struct {
	Workspace model.Workspace     `json:"workspace"`
	Selected  bool                `json:"selected"`
	Session   model.SessionRecord `json:"session"`
	Messages  []model.ChatMessage `json:"messages"`
	Loading   bool                `json:"loading"`
	Draft     string              `json:"draft"`
}

func NewWorkspaceService(cfg ServiceConfig) *WorkspaceService {
	s := &WorkspaceService{
		backend:     cfg.Backend,
		llm:         cfg.LLM,
		history:     cfg.History,
		store:       cfg.Store,
		inbox:       cfg.Inbox,
		publisher:   cfg.Publisher,
		promptCache: cfg.PromptCache,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		tokenUsage:  cfg.TokenUsage,
		newID:       cfg.NewID,
		now:         cfg.Now,
		logger:      cfg.Logger.With().Str("component", "workspace_service").Logger(),
		metrics:     cfg.Metrics,
		sends:       newFIFO(),
		users:       make(map[uint]*userState),
		messages:    make(map[uint][]model.ChatMessage),
		loading:     make(map[uint]bool),
		drafts:      make(map[uint]string),
	}
	if s.inbox == nil {
		s.inbox = notify.NewInbox(0)
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = metrics.Global()
	}
	return s
}

func (s *WorkspaceService) Notifications(userID uint) []notify.Notice {
	return s.inbox.Drain(userID)
}

// RefreshWorkspaces reloads the user's workspaces, newest id first, together
// with their document metadata.
func (s *WorkspaceService) RefreshWorkspaces(ctx context.Context, userID uint) ([]model.Workspace, error) {
	if userID == 0 {
		s.inbox.Warning(userID, 0, "Sign in to load workspaces.")
		return nil, ErrInvalidInput
	}
	list, err := s.backend.ListWorkspaces(ctx, userID)
	if err != nil {
		s.inbox.Error(userID, 0, "Could not load workspaces.")
		return nil, s.remoteFailure("backend", "list_workspaces", err)
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	for i := range list {
		docs, err := s.backend.ListDocuments(ctx, list[i].ID)
		if err != nil {
			s.metrics.RemoteFailures.WithLabelValues("backend", "list_documents").Inc()
			s.logger.Warn().Err(err).Uint("ws_id", list[i].ID).Msg("load workspace documents failed")
		} else {
			list[i].Documents = docs
		}
		s.store.Bind(ctx, list[i].ID, list[i].SessionID)
	}

	s.mu.Lock()
	st := s.userLocked(userID)
	st.loaded = true
	st.workspaces = list
	if st.selected != 0 && indexOf(list, st.selected) < 0 {
		st.selected = 0
	}
	out := cloneWorkspaces(list)
	s.mu.Unlock()
	return out, nil
}

func (s *WorkspaceService) CreateWorkspace(ctx context.Context, userID uint, name string) (model.Workspace, error) {
	name = strings.TrimSpace(name)
	if userID == 0 || name == "" {
		s.inbox.Warning(userID, 0, "Workspace name is required.")
		return model.Workspace{}, ErrInvalidInput
	}
	if err := s.ensureLoaded(ctx, userID); err != nil {
		return model.Workspace{}, err
	}
	if s.nameTaken(userID, 0, name) {
		s.inbox.Warning(userID, 0, "A workspace with this name already exists.")
		return model.Workspace{}, ErrDuplicateWorkspace
	}

	sessionID, err := s.llm.StartSession(ctx)
	if err != nil {
		s.inbox.Error(userID, 0, "Could not start a session for the new workspace.")
		return model.Workspace{}, s.remoteFailure("llm", "start_session", err)
	}
	created, err := s.backend.CreateWorkspace(ctx, model.Workspace{
		Name:      name,
		UserID:    userID,
		Active:    true,
		SessionID: sessionID,
	})
	if err != nil {
		s.inbox.Error(userID, 0, "Could not create the workspace.")
		return model.Workspace{}, s.remoteFailure("backend", "create_workspace", err)
	}
	if created.SessionID == "" {
		created.SessionID = sessionID
	}
	if created.Name == "" {
		created.Name = name
	}
	created.UserID = userID
	s.store.Init(ctx, created.ID, sessionID)

	if _, err := s.RefreshWorkspaces(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Uint("ws_id", created.ID).Msg("refresh after create failed")
	}

	s.mu.Lock()
	st := s.userLocked(userID)
	if idx := indexOf(st.workspaces, created.ID); idx >= 0 {
		created = st.workspaces[idx]
	} else {
		st.workspaces = append([]model.Workspace{created}, st.workspaces...)
	}
	st.selected = created.ID
	s.messages[created.ID] = []model.ChatMessage{}
	s.mu.Unlock()

	s.inbox.Success(userID, created.ID, "Workspace created.")
	return created, nil
}

func (s *WorkspaceService) UpdateWorkspace(ctx context.Context, userID uint, ws model.Workspace) (model.Workspace, error) {
	ws.Name = strings.TrimSpace(ws.Name)
	current, err := s.findWorkspace(ctx, userID, ws.ID)
	if err != nil {
		return model.Workspace{}, err
	}
	if ws.Name == "" {
		s.inbox.Warning(userID, ws.ID, "Workspace name is required.")
		return model.Workspace{}, ErrInvalidInput
	}
	if s.nameTaken(userID, ws.ID, ws.Name) {
		s.inbox.Warning(userID, ws.ID, "A workspace with this name already exists.")
		return model.Workspace{}, ErrDuplicateWorkspace
	}

	current.Name = ws.Name
	current.Active = ws.Active
	updated, err := s.backend.UpdateWorkspace(ctx, current)
	if err != nil {
		s.inbox.Error(userID, ws.ID, "Could not update the workspace.")
		return model.Workspace{}, s.remoteFailure("backend", "update_workspace", err)
	}
	if updated.Documents == nil {
		updated.Documents = current.Documents
	}
	if updated.SessionID == "" {
		updated.SessionID = current.SessionID
	}

	s.mu.Lock()
	st := s.userLocked(userID)
	if idx := indexOf(st.workspaces, ws.ID); idx >= 0 {
		st.workspaces[idx] = updated
	}
	s.mu.Unlock()

	s.inbox.Success(userID, ws.ID, "Workspace updated.")
	return updated, nil
}

// DeleteWorkspace removes the workspace remotely and drops its local state.
// Deleting the selected workspace moves the selection to the newest remaining
// one by creation marker, ties going to the highest id.
func (s *WorkspaceService) DeleteWorkspace(ctx context.Context, userID, wsID uint) error {
	if _, err := s.findWorkspace(ctx, userID, wsID); err != nil {
		return err
	}
	if err := s.backend.DeleteWorkspace(ctx, wsID); err != nil {
		s.inbox.Error(userID, wsID, "Could not delete the workspace.")
		return s.remoteFailure("backend", "delete_workspace", err)
	}

	s.store.Forget(ctx, wsID)

	s.mu.Lock()
	delete(s.messages, wsID)
	delete(s.loading, wsID)
	delete(s.drafts, wsID)
	st := s.userLocked(userID)
	if idx := indexOf(st.workspaces, wsID); idx >= 0 {
		st.workspaces = append(st.workspaces[:idx:idx], st.workspaces[idx+1:]...)
	}
	var next uint
	if st.selected == wsID {
		st.selected = 0
		next = newestWorkspace(st.workspaces)
	}
	s.mu.Unlock()

	s.inbox.Success(userID, wsID, "Workspace deleted.")
	if next != 0 {
		if _, err := s.SelectWorkspace(ctx, userID, next); err != nil {
			s.logger.Warn().Err(err).Uint("ws_id", next).Msg("select after delete failed")
		}
	}
	return nil
}

// SelectWorkspace makes wsID the user's current workspace and rebuilds its
// latest conversation from prompt history. A history failure keeps whatever
// conversation was already shown.
func (s *WorkspaceService) SelectWorkspace(ctx context.Context, userID, wsID uint) (View, error) {
	ws, err := s.findWorkspace(ctx, userID, wsID)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	s.userLocked(userID).selected = wsID
	s.mu.Unlock()
	s.store.Bind(ctx, wsID, ws.SessionID)

	queued := s.inSendQueue(ctx, wsID, func() {
		conv, err := s.history.Latest(ctx, wsID, userID)
		switch {
		case err != nil:
			s.metrics.RemoteFailures.WithLabelValues("backend", "list_prompts").Inc()
			s.logger.Warn().Err(err).Uint("ws_id", wsID).Msg("reconstruct conversation failed")
			s.inbox.Warning(userID, wsID, "Could not load the conversation history.")
		case conv.Found:
			s.publishConversation(ctx, wsID, conv)
		default:
			s.mu.Lock()
			if _, ok := s.messages[wsID]; !ok {
				s.messages[wsID] = []model.ChatMessage{}
			}
			s.mu.Unlock()
		}
	})
	if queued != nil {
		s.inbox.Warning(userID, wsID, "Opening the workspace was cancelled.")
		return View{}, queued
	}

	if sessionID, err := s.store.EnsureSession(ws); err == nil {
		// live listing supersedes what was inferred from history
		_, _ = s.store.RefreshFromRemote(ctx, wsID, sessionID)
	}
	return s.View(ctx, userID, wsID)
}

// LoadPromptHistory replaces the shown conversation with an older session of
// the same workspace.
func (s *WorkspaceService) LoadPromptHistory(ctx context.Context, userID, wsID uint, sessionID string) (View, error) {
	if _, err := s.findWorkspace(ctx, userID, wsID); err != nil {
		return View{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		s.inbox.Warning(userID, wsID, "Choose a session to load.")
		return View{}, ErrInvalidInput
	}

	var conv history.Conversation
	var loadErr error
	queued := s.inSendQueue(ctx, wsID, func() {
		conv, loadErr = s.history.ForSession(ctx, wsID, userID, sessionID)
		if loadErr != nil || !conv.Found {
			return
		}
		s.mu.Lock()
		s.userLocked(userID).selected = wsID
		s.mu.Unlock()
		s.publishConversation(ctx, wsID, conv)
	})
	switch {
	case queued != nil:
		s.inbox.Warning(userID, wsID, "Loading the session was cancelled.")
		return View{}, queued
	case loadErr != nil:
		s.inbox.Error(userID, wsID, "Could not load the selected session.")
		return View{}, s.remoteFailure("backend", "list_session_prompts", loadErr)
	case !conv.Found:
		s.inbox.Info(userID, wsID, "The selected session has no history.")
		return View{}, ErrHistoryNotFound
	}
	_, _ = s.store.RefreshFromRemote(ctx, wsID, conv.SessionID)

	s.inbox.Success(userID, wsID, "Session history loaded.")
	return s.View(ctx, userID, wsID)
}

// RefreshSession reconciles the workspace's document list with the live
// listing of its llm session.
func (s *WorkspaceService) RefreshSession(ctx context.Context, userID, wsID uint) (View, error) {
	ws, err := s.findWorkspace(ctx, userID, wsID)
	if err != nil {
		return View{}, err
	}
	sessionID, err := s.store.EnsureSession(ws)
	if err != nil {
		s.inbox.Error(userID, wsID, "No session found for this workspace.")
		return View{}, ErrNoSession
	}
	if _, err := s.store.RefreshFromRemote(ctx, wsID, sessionID); err != nil {
		s.inbox.Warning(userID, wsID, "Could not refresh the document list.")
		return View{}, remoteError("list_files", err)
	}
	return s.View(ctx, userID, wsID)
}

// inSendQueue runs fn in the workspace's send queue, after every send that
// arrived before it has finished.
func (s *WorkspaceService) inSendQueue(ctx context.Context, wsID uint, fn func()) error {
	release, err := s.sends.enter(ctx, wsID)
	if err != nil {
		return err
	}
	defer release()
	fn()
	return nil
}

// publishConversation swaps messages and session record together so readers
// never see one without the other.
func (s *WorkspaceService) publishConversation(ctx context.Context, wsID uint, conv history.Conversation) {
	rec := conv.Record
	rec.SessionID = conv.SessionID
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[wsID] = conv.Messages
	s.store.Apply(ctx, wsID, rec)
}

func (s *WorkspaceService) View(ctx context.Context, userID, wsID uint) (View, error) {
	ws, err := s.findWorkspace(ctx, userID, wsID)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]model.ChatMessage, len(s.messages[wsID]))
	copy(msgs, s.messages[wsID])
	return View{
		Workspace: ws,
		Selected:  s.userLocked(userID).selected == wsID,
		Session:   s.store.Record(wsID),
		Messages:  msgs,
		Loading:   s.loading[wsID],
		Draft:     s.drafts[wsID],
	}, nil
}

// Selected returns the user's current workspace id, zero when none.
func (s *WorkspaceService) Selected(userID uint) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userLocked(userID).selected
}

func (s *WorkspaceService) ListUploadedFiles(ctx context.Context, userID, wsID uint) ([]string, error) {
	ws, err := s.findWorkspace(ctx, userID, wsID)
	if err != nil {
		return nil, err
	}
	sessionID, err := s.store.EnsureSession(ws)
	if err != nil {
		s.inbox.Error(userID, wsID, "No session found for this workspace.")
		return nil, ErrNoSession
	}
	files, err := s.llm.ListFiles(ctx, sessionID)
	if err != nil {
		s.inbox.Error(userID, wsID, "Could not list the session files.")
		return nil, s.remoteFailure("llm", "list_files", err)
	}
	return files, nil
}

func (s *WorkspaceService) PromptHistory(ctx context.Context, userID, wsID uint) ([]model.PromptRecord, error) {
	if _, err := s.findWorkspace(ctx, userID, wsID); err != nil {
		return nil, err
	}
	records, err := s.history.All(ctx, wsID, userID)
	if err != nil {
		s.inbox.Error(userID, wsID, "Could not load prompt history.")
		return nil, s.remoteFailure("backend", "list_prompts", err)
	}
	if records == nil {
		records = []model.PromptRecord{}
	}
	return records, nil
}

func (s *WorkspaceService) ensureLoaded(ctx context.Context, userID uint) error {
	s.mu.Lock()
	loaded := s.userLocked(userID).loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := s.RefreshWorkspaces(ctx, userID)
	return err
}

// findWorkspace looks the workspace up in the user's list, loading the list
// on first use.
func (s *WorkspaceService) findWorkspace(ctx context.Context, userID, wsID uint) (model.Workspace, error) {
	if userID == 0 || wsID == 0 {
		s.inbox.Warning(userID, wsID, "Choose a workspace first.")
		return model.Workspace{}, ErrInvalidInput
	}
	if err := s.ensureLoaded(ctx, userID); err != nil {
		return model.Workspace{}, err
	}
	s.mu.Lock()
	st := s.userLocked(userID)
	idx := indexOf(st.workspaces, wsID)
	if idx < 0 {
		s.mu.Unlock()
		s.inbox.Warning(userID, wsID, "Workspace not found.")
		return model.Workspace{}, ErrWorkspaceNotFound
	}
	ws := st.workspaces[idx]
	s.mu.Unlock()
	ws.Documents = append([]model.Document(nil), ws.Documents...)
	return ws, nil
}

func (s *WorkspaceService) nameTaken(userID, exceptID uint, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.userLocked(userID).workspaces {
		if ws.ID != exceptID && strings.EqualFold(strings.TrimSpace(ws.Name), name) {
			return true
		}
	}
	return false
}

func (s *WorkspaceService) userLocked(userID uint) *userState {
	st, ok := s.users[userID]
	if !ok {
		st = &userState{}
		s.users[userID] = st
	}
	return st
}

func (s *WorkspaceService) remoteFailure(client, op string, err error) error {
	s.metrics.RemoteFailures.WithLabelValues(client, op).Inc()
	s.logger.Error().Err(err).Str("client", client).Str("op", op).Msg("remote call failed")
	return remoteError(op, err)
}

func indexOf(list []model.Workspace, wsID uint) int {
	for i, ws := range list {
		if ws.ID == wsID {
			return i
		}
	}
	return -1
}

func newestWorkspace(list []model.Workspace) uint {
	var best *model.Workspace
	for i := range list {
		ws := &list[i]
		if best == nil {
			best = ws
			continue
		}
		bt, wt := best.CreationTime(), ws.CreationTime()
		if wt.After(bt) || (wt.Equal(bt) && ws.ID > best.ID) {
			best = ws
		}
	}
	if best == nil {
		return 0
	}
	return best.ID
}

func cloneWorkspaces(list []model.Workspace) []model.Workspace {
	out := make([]model.Workspace, len(list))
	for i, ws := range list {
		ws.Documents = append([]model.Document(nil), ws.Documents...)
		out[i] = ws
	}
	return out
}
