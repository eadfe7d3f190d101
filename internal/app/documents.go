package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopherai-workspace/internal/backend"
	"gopherai-workspace/internal/citation"
	"gopherai-workspace/internal/llm"
	"gopherai-workspace/internal/model"
	"gopherai-workspace/internal/pkg/pdfextract"
)

// UploadDocument indexes a PDF in the workspace session and then records its
// metadata with the backend. Nothing is saved when indexing fails.
func (s *WorkspaceService) UploadDocument(ctx context.Context, userID, wsID uint, filename string, data []byte) (model.Document, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if !citation.IsDocumentName(filename) {
		s.inbox.Warning(userID, wsID, "Only PDF documents can be uploaded.")
		return model.Document{}, ErrUnsupportedFile
	}
	info, err := pdfextract.Inspect(data)
	if err != nil {
		s.inbox.Warning(userID, wsID, "The file is not a readable PDF document.")
		return model.Document{}, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}

	ws, err := s.findWorkspace(ctx, userID, wsID)
	if err != nil {
		return model.Document{}, err
	}
	sessionID, err := s.store.EnsureSession(ws)
	if err != nil {
		s.inbox.Error(userID, wsID, "No session found for this workspace.")
		return model.Document{}, ErrNoSession
	}

	ingest, err := s.llm.UploadDocument(ctx, sessionID, filename, bytes.NewReader(data))
	if err != nil {
		s.inbox.Error(userID, wsID, "Could not upload "+filename+".")
		return model.Document{}, s.remoteFailure("llm", "upload_document", err)
	}
	s.store.RecordDocument(ctx, wsID, filename)

	doc, err := s.backend.UploadDocument(ctx, backend.DocumentUpload{
		WorkspaceID: wsID,
		UserID:      userID,
		Filename:    filename,
		Content:     data,
	})
	if err != nil {
		s.inbox.Warning(userID, wsID, filename+" was indexed but its metadata could not be saved.")
		return model.Document{}, s.remoteFailure("backend", "upload_document", err)
	}
	s.reloadDocuments(ctx, userID, wsID, doc)

	if text, err := pdfextract.ExtractText(bytes.NewReader(data)); err == nil && strings.TrimSpace(text) == "" {
		s.inbox.Warning(userID, wsID, filename+" has no extractable text, answers may be incomplete.")
	}
	s.logger.Info().
		Uint("ws_id", wsID).
		Str("file", filename).
		Int("pages", info.Pages).
		Int("chunks", ingest.Chunks).
		Msg("document uploaded")
	s.inbox.Success(userID, wsID, ingestMessage(ingest, filename+" uploaded."))
	return doc, nil
}

// DeleteDocument removes document metadata. The llm session keeps whatever
// it already indexed.
func (s *WorkspaceService) DeleteDocument(ctx context.Context, userID, docID uint) error {
	if userID == 0 || docID == 0 {
		s.inbox.Warning(userID, 0, "Choose a document to delete.")
		return ErrInvalidInput
	}
	if err := s.ensureLoaded(ctx, userID); err != nil {
		return err
	}

	s.mu.Lock()
	var wsID uint
	for _, ws := range s.userLocked(userID).workspaces {
		for _, doc := range ws.Documents {
			if doc.ID == docID {
				wsID = ws.ID
			}
		}
	}
	s.mu.Unlock()
	if wsID == 0 {
		s.inbox.Warning(userID, 0, "Document not found.")
		return ErrDocumentNotFound
	}

	if err := s.backend.DeleteDocument(ctx, docID); err != nil {
		s.inbox.Error(userID, wsID, "Could not delete the document.")
		return s.remoteFailure("backend", "delete_document", err)
	}

	s.mu.Lock()
	st := s.userLocked(userID)
	if idx := indexOf(st.workspaces, wsID); idx >= 0 {
		docs := st.workspaces[idx].Documents
		kept := make([]model.Document, 0, len(docs))
		for _, doc := range docs {
			if doc.ID != docID {
				kept = append(kept, doc)
			}
		}
		st.workspaces[idx].Documents = kept
	}
	s.mu.Unlock()

	s.inbox.Success(userID, wsID, "Document deleted.")
	return nil
}

// ScrapeURL asks the llm service to index a web page. Malformed and already
// scraped URLs are rejected before any network call.
func (s *WorkspaceService) ScrapeURL(ctx context.Context, userID, wsID uint, rawURL string) (llm.IngestResult, error) {
	link, ok := citation.NormalizeURL(rawURL)
	if !ok {
		s.inbox.Warning(userID, wsID, "Please enter a valid URL.")
		return llm.IngestResult{}, ErrInvalidURL
	}
	ws, err := s.findWorkspace(ctx, userID, wsID)
	if err != nil {
		return llm.IngestResult{}, err
	}
	sessionID, err := s.store.EnsureSession(ws)
	if err != nil {
		s.inbox.Error(userID, wsID, "No session found for this workspace.")
		return llm.IngestResult{}, ErrNoSession
	}
	if s.store.HasURL(wsID, link) {
		s.inbox.Info(userID, wsID, "This URL has already been scraped.")
		return llm.IngestResult{}, ErrDuplicateURL
	}

	res, err := s.llm.ScrapeURL(ctx, sessionID, link)
	if err != nil {
		s.inbox.Error(userID, wsID, "Could not scrape "+link+".")
		return llm.IngestResult{}, s.remoteFailure("llm", "scrape_url", err)
	}
	s.store.RecordURL(ctx, wsID, link)
	s.inbox.Success(userID, wsID, res.Message)
	return res, nil
}

// reloadDocuments refreshes one workspace's document metadata. When the
// listing fails the uploaded document is appended locally.
func (s *WorkspaceService) reloadDocuments(ctx context.Context, userID, wsID uint, uploaded model.Document) {
	docs, err := s.backend.ListDocuments(ctx, wsID)
	if err != nil {
		s.metrics.RemoteFailures.WithLabelValues("backend", "list_documents").Inc()
		s.logger.Warn().Err(err).Uint("ws_id", wsID).Msg("reload documents failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.userLocked(userID)
	idx := indexOf(st.workspaces, wsID)
	if idx < 0 {
		return
	}
	if err == nil {
		st.workspaces[idx].Documents = docs
		return
	}
	st.workspaces[idx].Documents = append(st.workspaces[idx].Documents, uploaded)
}

func ingestMessage(res llm.IngestResult, fallback string) string {
	if msg := strings.TrimSpace(res.Message); msg != "" {
		return msg
	}
	return fallback
}
