package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"gopherai-workspace/internal/pkg/httpcall"
)

const defaultScrapeMessage = "URL scraped successfully"

type Config struct {
	BaseURL string
	Caller  httpcall.Caller
}

// Client calls the stateful question-answering service. Every call except
// StartSession is scoped to a session id issued by that service.
type Client struct {
	baseURL string
	caller  httpcall.Caller
}

type IngestResult struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
}

type Answer struct {
	Text                string   `json:"answer"`
	Sources             []string `json:"sources"`
	ResponseTimeSeconds *float64 `json:"response_time_seconds,omitempty"`
}

func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		caller:  cfg.Caller,
	}
}

func (c *Client) StartSession(ctx context.Context) (string, error) {
	body, err := c.caller.Do(ctx, httpcall.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/start-session/",
	})
	if err != nil {
		return "", fmt.Errorf("start session failed: %w", err)
	}
	var parsed struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("start session failed: decode response: %w", err)
	}
	if strings.TrimSpace(parsed.SessionID) == "" {
		return "", errors.New("start session failed: empty session id")
	}
	return parsed.SessionID, nil
}

func (c *Client) UploadDocument(ctx context.Context, sessionID, filename string, r io.Reader) (IngestResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", filename)
	if err != nil {
		return IngestResult{}, fmt.Errorf("build upload form failed: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return IngestResult{}, fmt.Errorf("build upload form failed: %w", err)
	}
	_ = w.WriteField("session_id", sessionID)
	if err := w.Close(); err != nil {
		return IngestResult{}, fmt.Errorf("build upload form failed: %w", err)
	}

	body, err := c.caller.Do(ctx, httpcall.Request{
		Method:      http.MethodPost,
		URL:         c.baseURL + "/upload-pdf/",
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("upload document failed: %w", err)
	}
	var out IngestResult
	if err := json.Unmarshal(body, &out); err != nil {
		return IngestResult{}, fmt.Errorf("upload document failed: decode response: %w", err)
	}
	return out, nil
}

func (c *Client) ScrapeURL(ctx context.Context, sessionID, link string) (IngestResult, error) {
	body, err := c.postJSON(ctx, "/scrape-url/", map[string]string{
		"session_id": sessionID,
		"url":        link,
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("scrape url failed: %w", err)
	}
	var out IngestResult
	if err := json.Unmarshal(body, &out); err != nil {
		return IngestResult{}, fmt.Errorf("scrape url failed: decode response: %w", err)
	}
	if strings.TrimSpace(out.Message) == "" {
		out.Message = defaultScrapeMessage
	}
	return out, nil
}

func (c *Client) Ask(ctx context.Context, sessionID, question string) (Answer, error) {
	body, err := c.postJSON(ctx, "/ask-question/", map[string]string{
		"session_id": sessionID,
		"question":   question,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("ask question failed: %w", err)
	}
	var out Answer
	if err := json.Unmarshal(body, &out); err != nil {
		return Answer{}, fmt.Errorf("ask question failed: decode response: %w", err)
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}
	return out, nil
}

func (c *Client) ListFiles(ctx context.Context, sessionID string) ([]string, error) {
	body, err := c.caller.Do(ctx, httpcall.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/list-files/" + url.PathEscape(sessionID),
		Retry:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("list files failed: %w", err)
	}
	var parsed struct {
		Files []string `json:"files"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("list files failed: decode response: %w", err)
	}
	if parsed.Files == nil {
		return []string{}, nil
	}
	return parsed.Files, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return c.caller.Do(ctx, httpcall.Request{
		Method:      http.MethodPost,
		URL:         c.baseURL + path,
		Body:        raw,
		ContentType: "application/json",
	})
}
