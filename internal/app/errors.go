package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDuplicateWorkspace = errors.New("a workspace with this name already exists")
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrNothingToAsk       = errors.New("upload a document or scrape a url before asking")
	ErrInvalidURL         = errors.New("url is not a valid http or https address")
	ErrDuplicateURL       = errors.New("url was already scraped in this workspace")
	ErrUnsupportedFile    = errors.New("only pdf documents are supported")
	ErrNoSession          = errors.New("no session found for this workspace")
	ErrHistoryNotFound    = errors.New("no prompt history for this session")
	ErrRemote             = errors.New("remote service call failed")
)

func remoteError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRemote, op, err)
}
