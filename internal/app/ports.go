package app

import (
	"context"
	"io"

	"gopherai-workspace/internal/backend"
	"gopherai-workspace/internal/history"
	"gopherai-workspace/internal/llm"
	"gopherai-workspace/internal/model"
)

type BackendClient interface {
	ListWorkspaces(ctx context.Context, userID uint) ([]model.Workspace, error)
	CreateWorkspace(ctx context.Context, ws model.Workspace) (model.Workspace, error)
	UpdateWorkspace(ctx context.Context, ws model.Workspace) (model.Workspace, error)
	DeleteWorkspace(ctx context.Context, wsID uint) error
	ListDocuments(ctx context.Context, wsID uint) ([]model.Document, error)
	UploadDocument(ctx context.Context, up backend.DocumentUpload) (model.Document, error)
	DeleteDocument(ctx context.Context, docID uint) error
}

type LLMClient interface {
	StartSession(ctx context.Context) (string, error)
	UploadDocument(ctx context.Context, sessionID, filename string, r io.Reader) (llm.IngestResult, error)
	ScrapeURL(ctx context.Context, sessionID, link string) (llm.IngestResult, error)
	Ask(ctx context.Context, sessionID, question string) (llm.Answer, error)
	ListFiles(ctx context.Context, sessionID string) ([]string, error)
}

type HistoryReconstructor interface {
	Latest(ctx context.Context, wsID, userID uint) (history.Conversation, error)
	ForSession(ctx context.Context, wsID, userID uint, sessionID string) (history.Conversation, error)
	All(ctx context.Context, wsID, userID uint) ([]model.PromptRecord, error)
}

// PromptPublisher hands a finished exchange to prompt history storage.
type PromptPublisher interface {
	PublishPrompt(ctx context.Context, rec model.PromptRecord) error
}

type PromptCacheInvalidator interface {
	Invalidate(ctx context.Context, wsID, userID uint) error
}
