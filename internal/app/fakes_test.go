package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"gopherai-workspace/internal/backend"
	"gopherai-workspace/internal/history"
	"gopherai-workspace/internal/llm"
	"gopherai-workspace/internal/model"
	"gopherai-workspace/internal/session"
)

type fakeBackend struct {
	mu         sync.Mutex
	workspaces []model.Workspace
	documents  map[uint][]model.Document
	prompts    []model.PromptRecord
	calls      map[string]int
	fail       map[string]error
	nextID     uint
}

func newFakeBackend(workspaces ...model.Workspace) *fakeBackend {
	return &fakeBackend{
		workspaces: workspaces,
		documents:  map[uint][]model.Document{},
		calls:      map[string]int{},
		fail:       map[string]error{},
		nextID:     100,
	}
}

func (f *fakeBackend) hit(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) ListWorkspaces(_ context.Context, userID uint) ([]model.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("list_workspaces"); err != nil {
		return nil, err
	}
	var out []model.Workspace
	for _, ws := range f.workspaces {
		if ws.UserID == userID {
			out = append(out, ws)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateWorkspace(_ context.Context, ws model.Workspace) (model.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create_workspace"); err != nil {
		return model.Workspace{}, err
	}
	f.nextID++
	ws.ID = f.nextID
	ws.CreatedAt = "2024-06-01T10:00:00"
	f.workspaces = append(f.workspaces, ws)
	return ws, nil
}

func (f *fakeBackend) UpdateWorkspace(_ context.Context, ws model.Workspace) (model.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("update_workspace"); err != nil {
		return model.Workspace{}, err
	}
	for i := range f.workspaces {
		if f.workspaces[i].ID == ws.ID {
			f.workspaces[i].Name = ws.Name
		}
	}
	return ws, nil
}

func (f *fakeBackend) DeleteWorkspace(_ context.Context, wsID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("delete_workspace"); err != nil {
		return err
	}
	kept := f.workspaces[:0]
	for _, ws := range f.workspaces {
		if ws.ID != wsID {
			kept = append(kept, ws)
		}
	}
	f.workspaces = kept
	return nil
}

func (f *fakeBackend) ListDocuments(_ context.Context, wsID uint) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("list_documents"); err != nil {
		return nil, err
	}
	return append([]model.Document(nil), f.documents[wsID]...), nil
}

func (f *fakeBackend) UploadDocument(_ context.Context, up backend.DocumentUpload) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("upload_document"); err != nil {
		return model.Document{}, err
	}
	f.nextID++
	doc := model.Document{ID: f.nextID, Name: up.Filename, WorkspaceID: up.WorkspaceID, UserID: up.UserID}
	f.documents[up.WorkspaceID] = append(f.documents[up.WorkspaceID], doc)
	return doc, nil
}

func (f *fakeBackend) DeleteDocument(_ context.Context, docID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("delete_document"); err != nil {
		return err
	}
	for wsID, docs := range f.documents {
		kept := docs[:0]
		for _, doc := range docs {
			if doc.ID != docID {
				kept = append(kept, doc)
			}
		}
		f.documents[wsID] = kept
	}
	return nil
}

func (f *fakeBackend) SavePrompt(_ context.Context, rec model.PromptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("save_prompt"); err != nil {
		return err
	}
	rec.PromptID = uint(len(f.prompts) + 1)
	f.prompts = append(f.prompts, rec)
	return nil
}

func (f *fakeBackend) ListPrompts(_ context.Context, wsID, userID uint) ([]model.PromptRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("list_prompts"); err != nil {
		return nil, err
	}
	var out []model.PromptRecord
	for _, rec := range f.prompts {
		if rec.WorkspaceID == wsID && rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListSessionPrompts(ctx context.Context, wsID, userID uint, sessionID string) ([]model.PromptRecord, error) {
	all, err := f.ListPrompts(ctx, wsID, userID)
	if err != nil {
		return nil, err
	}
	var out []model.PromptRecord
	for _, rec := range all {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeLLM struct {
	mu       sync.Mutex
	calls    map[string]int
	fail     map[string]error
	files    map[string][]string
	answer   llm.Answer
	block    chan struct{}
	inFlight int
	peak     int
	sessions int
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		calls: map[string]int{},
		fail:  map[string]error{},
		files: map[string][]string{},
	}
}

func (f *fakeLLM) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeLLM) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeLLM) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeLLM) StartSession(context.Context) (string, error) {
	if err := f.hit("start_session"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return fmt.Sprintf("sess-new-%d", f.sessions), nil
}

func (f *fakeLLM) UploadDocument(_ context.Context, sessionID, filename string, r io.Reader) (llm.IngestResult, error) {
	if err := f.hit("upload_document"); err != nil {
		return llm.IngestResult{}, err
	}
	_, _ = io.Copy(io.Discard, r)
	f.mu.Lock()
	f.files[sessionID] = append(f.files[sessionID], filename)
	f.mu.Unlock()
	return llm.IngestResult{Message: "Processed " + filename, Chunks: 3}, nil
}

func (f *fakeLLM) ScrapeURL(_ context.Context, sessionID, link string) (llm.IngestResult, error) {
	if err := f.hit("scrape_url"); err != nil {
		return llm.IngestResult{}, err
	}
	f.mu.Lock()
	f.files[sessionID] = append(f.files[sessionID], link)
	f.mu.Unlock()
	return llm.IngestResult{Message: "URL scraped successfully", Chunks: 5}, nil
}

func (f *fakeLLM) Ask(_ context.Context, _, question string) (llm.Answer, error) {
	if err := f.hit("ask_question"); err != nil {
		return llm.Answer{}, err
	}
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	block, answer := f.block, f.answer
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	if answer.Text == "" {
		answer.Text = "answer to " + question
	}
	return answer, nil
}

func (f *fakeLLM) ListFiles(_ context.Context, sessionID string) ([]string, error) {
	if err := f.hit("list_files"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.files[sessionID]...), nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []model.PromptRecord
	err     error
}

func (p *recordingPublisher) PublishPrompt(_ context.Context, rec model.PromptRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, rec)
	return nil
}

type fixture struct {
	svc       *WorkspaceService
	backend   *fakeBackend
	llm       *fakeLLM
	store     *session.Store
	publisher *recordingPublisher
}

func newFixture(t *testing.T, workspaces ...model.Workspace) *fixture {
	t.Helper()
	be := newFakeBackend(workspaces...)
	lm := newFakeLLM()
	store, err := session.Open(context.Background(), session.Config{
		KV:     session.NewMemoryKV(),
		Live:   session.LiveListing{Lister: lm},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	n := 0
	svc := NewWorkspaceService(ServiceConfig{
		Backend:     be,
		LLM:         lm,
		History:     history.New(history.Config{Prompts: be, Logger: zerolog.Nop()}),
		Store:       store,
		Publisher:   pub,
		ModelName:   "llama3.2:latest",
		Temperature: 1,
		TokenUsage:  100,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
		Now:    func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		Logger: zerolog.Nop(),
	})
	return &fixture{svc: svc, backend: be, llm: lm, store: store, publisher: pub}
}

var errUnavailable = errors.New("service unavailable")

// minimalPDF returns a one page document the pdf parser accepts.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
