package app

import (
	"context"

	"gopherai-workspace/internal/model"
)

type PromptSaver interface {
	SavePrompt(ctx context.Context, rec model.PromptRecord) error
}

// DirectPromptPublisher saves prompt records synchronously. It is used when
// the message queue is disabled.
type DirectPromptPublisher struct {
	Saver PromptSaver
}

func (p DirectPromptPublisher) PublishPrompt(ctx context.Context, rec model.PromptRecord) error {
	return p.Saver.SavePrompt(ctx, rec)
}
