package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gopherai-workspace/internal/model"
	"gopherai-workspace/internal/pkg/httpcall"
)

// ErrRejected is returned when the backend answers with success=false.
var ErrRejected = errors.New("backend rejected request")

type Config struct {
	BaseURL string
	Caller  httpcall.Caller
}

// Client talks to the relational backend that stores workspaces, documents
// and prompt history.
type Client struct {
	baseURL string
	caller  httpcall.Caller
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type DocumentUpload struct {
	WorkspaceID uint
	UserID      uint
	Filename    string
	Content     []byte
}

func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		caller:  cfg.Caller,
	}
}

func (c *Client) ListWorkspaces(ctx context.Context, userID uint) ([]model.Workspace, error) {
	var out []model.Workspace
	q := url.Values{"user_id": {strconv.FormatUint(uint64(userID), 10)}}
	if err := c.get(ctx, "list workspaces", "/workspaces", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateWorkspace(ctx context.Context, ws model.Workspace) (model.Workspace, error) {
	payload := map[string]any{
		"ws_name":    ws.Name,
		"user_id":    ws.UserID,
		"is_active":  ws.Active,
		"session_id": ws.SessionID,
	}
	data, err := c.send(ctx, "create workspace", http.MethodPost, "/workspaces", payload)
	if err != nil {
		return model.Workspace{}, err
	}
	var created model.Workspace
	if err := decodeOneOrMany(data, &created); err != nil {
		return model.Workspace{}, fmt.Errorf("create workspace failed: %w", err)
	}
	if created.ID == 0 {
		return model.Workspace{}, fmt.Errorf("create workspace failed: backend returned no workspace id")
	}
	return created, nil
}

func (c *Client) UpdateWorkspace(ctx context.Context, ws model.Workspace) (model.Workspace, error) {
	path := "/workspaces/" + strconv.FormatUint(uint64(ws.ID), 10)
	payload := map[string]any{
		"ws_name":    ws.Name,
		"user_id":    ws.UserID,
		"is_active":  ws.Active,
		"session_id": ws.SessionID,
	}
	data, err := c.send(ctx, "update workspace", http.MethodPut, path, payload)
	if err != nil {
		return model.Workspace{}, err
	}
	updated := ws
	if len(data) > 0 && string(data) != "null" {
		if err := decodeOneOrMany(data, &updated); err != nil {
			return model.Workspace{}, fmt.Errorf("update workspace failed: %w", err)
		}
	}
	return updated, nil
}

func (c *Client) DeleteWorkspace(ctx context.Context, wsID uint) error {
	path := "/workspaces/" + strconv.FormatUint(uint64(wsID), 10)
	_, err := c.send(ctx, "delete workspace", http.MethodDelete, path, nil)
	return err
}

func (c *Client) ListDocuments(ctx context.Context, wsID uint) ([]model.Document, error) {
	var out []model.Document
	q := url.Values{"ws_id": {strconv.FormatUint(uint64(wsID), 10)}}
	if err := c.get(ctx, "list documents", "/documents", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UploadDocument(ctx context.Context, up DocumentUpload) (model.Document, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", up.Filename)
	if err != nil {
		return model.Document{}, fmt.Errorf("build upload form failed: %w", err)
	}
	if _, err := part.Write(up.Content); err != nil {
		return model.Document{}, fmt.Errorf("build upload form failed: %w", err)
	}
	_ = w.WriteField("ws_id", strconv.FormatUint(uint64(up.WorkspaceID), 10))
	_ = w.WriteField("user_id", strconv.FormatUint(uint64(up.UserID), 10))
	if err := w.Close(); err != nil {
		return model.Document{}, fmt.Errorf("build upload form failed: %w", err)
	}

	body, err := c.caller.Do(ctx, httpcall.Request{
		Method:      http.MethodPost,
		URL:         c.baseURL + "/documents/upload",
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	})
	if err != nil {
		return model.Document{}, fmt.Errorf("upload document failed: %w", err)
	}
	data, err := unwrap("upload document", body)
	if err != nil {
		return model.Document{}, err
	}
	doc := model.Document{Name: up.Filename, WorkspaceID: up.WorkspaceID, UserID: up.UserID}
	if len(data) > 0 && string(data) != "null" {
		if err := decodeOneOrMany(data, &doc); err != nil {
			return model.Document{}, fmt.Errorf("upload document failed: %w", err)
		}
	}
	return doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, docID uint) error {
	path := "/documents/" + strconv.FormatUint(uint64(docID), 10)
	_, err := c.send(ctx, "delete document", http.MethodDelete, path, nil)
	return err
}

func (c *Client) SavePrompt(ctx context.Context, rec model.PromptRecord) error {
	if rec.Sources == nil {
		rec.Sources = []string{}
	}
	_, err := c.send(ctx, "save prompt", http.MethodPost, "/prompts", rec)
	return err
}

func (c *Client) ListPrompts(ctx context.Context, wsID, userID uint) ([]model.PromptRecord, error) {
	var out []model.PromptRecord
	q := url.Values{
		"ws_id":   {strconv.FormatUint(uint64(wsID), 10)},
		"user_id": {strconv.FormatUint(uint64(userID), 10)},
	}
	if err := c.get(ctx, "list prompts", "/prompts", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSessionPrompts(ctx context.Context, wsID, userID uint, sessionID string) ([]model.PromptRecord, error) {
	var out []model.PromptRecord
	q := url.Values{
		"ws_id":      {strconv.FormatUint(uint64(wsID), 10)},
		"user_id":    {strconv.FormatUint(uint64(userID), 10)},
		"session_id": {sessionID},
	}
	if err := c.get(ctx, "list session prompts", "/prompts/session", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, dest any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	body, err := c.caller.Do(ctx, httpcall.Request{
		Method: http.MethodGet,
		URL:    target,
		Retry:  true,
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	data, err := unwrap(op, body)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%s failed: decode data: %w", op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any) (json.RawMessage, error) {
	req := httpcall.Request{Method: method, URL: c.baseURL + path}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s failed: marshal payload: %w", op, err)
		}
		req.Body = raw
		req.ContentType = "application/json"
	}
	body, err := c.caller.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	return unwrap(op, body)
}

// unwrap accepts either the {success, message, data} envelope or a bare JSON
// array, which some list endpoints return.
func unwrap(op string, body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		return json.RawMessage(trimmed), nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%s failed: decode envelope: %w", op, err)
	}
	if !env.Success {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = "no message"
		}
		return nil, fmt.Errorf("%s failed: %w: %s", op, ErrRejected, msg)
	}
	return env.Data, nil
}

// decodeOneOrMany decodes data that is either an object or an array whose
// first element is the object.
func decodeOneOrMany(data json.RawMessage, dest any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			return errors.New("empty data array")
		}
		trimmed = items[0]
	}
	return json.Unmarshal(trimmed, dest)
}
