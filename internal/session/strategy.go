package session

import (
	"context"
	"errors"

	"gopherai-workspace/internal/citation"
	"gopherai-workspace/internal/model"
)

const (
	StrategyLiveListing      = "liveListing"
	StrategyTextualInference = "textualInference"
)

// DocumentQuery carries the inputs a strategy may draw on. Live listing reads
// SessionID; textual inference reads Records.
type DocumentQuery struct {
	SessionID string
	Records   []model.PromptRecord
}

// DocumentStrategy derives the document list of a session.
type DocumentStrategy interface {
	Name() string
	Documents(ctx context.Context, q DocumentQuery) ([]string, error)
}

type FileLister interface {
	ListFiles(ctx context.Context, sessionID string) ([]string, error)
}

// LiveListing asks the llm service which files the session holds. It is
// accurate but costs a round trip.
type LiveListing struct {
	Lister FileLister
}

func (LiveListing) Name() string { return StrategyLiveListing }

func (l LiveListing) Documents(ctx context.Context, q DocumentQuery) ([]string, error) {
	if q.SessionID == "" {
		return nil, ErrNoSession
	}
	if l.Lister == nil {
		return nil, errors.New("live listing has no file lister")
	}
	files, err := l.Lister.ListFiles(ctx, q.SessionID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []string{}
	}
	return files, nil
}

// TextualInference scans persisted answers for filenames and URLs. It needs
// no network call but only sees documents the assistant mentioned.
type TextualInference struct{}

func (TextualInference) Name() string { return StrategyTextualInference }

func (TextualInference) Documents(_ context.Context, q DocumentQuery) ([]string, error) {
	texts := make([]string, 0, len(q.Records))
	for _, rec := range q.Records {
		texts = append(texts, rec.ResponseText)
	}
	return citation.InferDocuments(texts), nil
}
