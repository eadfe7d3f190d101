package app

import (
	"context"
	"strconv"
	"strings"

	"gopherai-workspace/internal/citation"
	"gopherai-workspace/internal/model"
)

const answerFailurePrefix = "Sorry, I could not answer that question: "

// SendMessage asks the workspace session a question and appends both sides of
// the exchange to the conversation. Sends to one workspace run one at a time
// in arrival order. On failure an assistant message explaining the failure is
// appended and the draft is restored to text.
func (s *WorkspaceService) SendMessage(ctx context.Context, userID, wsID uint, text string) (model.ChatMessage, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		s.inbox.Warning(userID, wsID, "Please enter a message.")
		return model.ChatMessage{}, ErrEmptyMessage
	}
	ws, err := s.findWorkspace(ctx, userID, wsID)
	if err != nil {
		return model.ChatMessage{}, err
	}

	s.mu.Lock()
	hasHistory := len(s.messages[wsID]) > 0
	s.mu.Unlock()
	if !hasHistory && len(s.store.Record(wsID).Documents) == 0 {
		s.inbox.Warning(userID, wsID, "Upload a document or scrape a URL before asking a question.")
		return model.ChatMessage{}, ErrNothingToAsk
	}

	sessionID, err := s.store.EnsureSession(ws)
	if err != nil {
		s.inbox.Error(userID, wsID, "No session found for this workspace.")
		return model.ChatMessage{}, ErrNoSession
	}

	release, err := s.sends.enter(ctx, wsID)
	if err != nil {
		s.inbox.Warning(userID, wsID, "The question was cancelled before it was sent.")
		return model.ChatMessage{}, err
	}
	defer release()

	s.mu.Lock()
	s.messages[wsID] = append(s.messages[wsID], model.ChatMessage{
		ID:          s.newID(),
		WorkspaceID: wsID,
		Role:        model.RoleUser,
		Content:     question,
		Timestamp:   s.now(),
	})
	s.loading[wsID] = true
	s.drafts[wsID] = ""
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading[wsID] = false
		s.mu.Unlock()
	}()

	started := s.now()
	s.metrics.MessagesSent.Inc()
	answer, err := s.llm.Ask(ctx, sessionID, question)
	if err != nil {
		s.metrics.AnswersFailed.Inc()
		reply := s.appendAssistant(wsID, answerFailurePrefix+err.Error(), nil)
		s.mu.Lock()
		s.drafts[wsID] = text
		s.mu.Unlock()
		s.inbox.Error(userID, wsID, "The question could not be answered.")
		return reply, s.remoteFailure("llm", "ask_question", err)
	}

	reply := s.appendAssistant(wsID, answer.Text, citation.ParseSources(answer.Sources))

	elapsed := s.now().Sub(started).Seconds()
	if answer.ResponseTimeSeconds != nil {
		elapsed = *answer.ResponseTimeSeconds
	}
	s.persistPrompt(ctx, model.PromptRecord{
		WorkspaceID:  wsID,
		UserID:       userID,
		SessionID:    sessionID,
		PromptText:   question,
		ResponseText: answer.Text,
		Sources:      answer.Sources,
		ModelName:    s.modelName,
		Temperature:  s.temperature,
		TokenUsage:   s.tokenUsage,
		ResponseTime: strconv.FormatFloat(elapsed, 'f', 2, 64),
		Active:       true,
	})
	return reply, nil
}

func (s *WorkspaceService) appendAssistant(wsID uint, content string, sources []model.Source) model.ChatMessage {
	msg := model.ChatMessage{
		ID:          s.newID(),
		WorkspaceID: wsID,
		Role:        model.RoleAssistant,
		Content:     content,
		Timestamp:   s.now(),
		Sources:     sources,
	}
	s.mu.Lock()
	s.messages[wsID] = append(s.messages[wsID], msg)
	s.mu.Unlock()
	return msg
}

// persistPrompt hands the record to prompt history. Failures are logged and
// never reach the caller.
func (s *WorkspaceService) persistPrompt(ctx context.Context, rec model.PromptRecord) {
	if s.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if s.promptCache != nil {
		if err := s.promptCache.Invalidate(ctx, rec.WorkspaceID, rec.UserID); err != nil {
			s.logger.Warn().Err(err).Uint("ws_id", rec.WorkspaceID).Msg("invalidate prompt cache failed")
		}
	}
	if err := s.publisher.PublishPrompt(ctx, rec); err != nil {
		s.metrics.PromptsPersisted.WithLabelValues("publish_error").Inc()
		s.logger.Error().Err(err).
			Uint("ws_id", rec.WorkspaceID).
			Str("session_id", rec.SessionID).
			Msg("save prompt history failed")
	}
}
