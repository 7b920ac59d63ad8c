package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// HTTPTransport talks to the API service. Error responses are decoded back
// into AppErrors so callers can branch on the code.
type HTTPTransport struct {
	base   string
	token  string
	client *http.Client
}

func NewHTTPTransport(base, token string) *HTTPTransport {
	return &HTTPTransport{
		base:   base,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return appErrors.Unavailable("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return appErrors.Unavailable("decode response", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var appErr appErrors.AppError
	if err := json.Unmarshal(raw, &appErr); err == nil && appErr.Code != "" {
		return &appErr
	}
	msg := fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(raw))
	if resp.StatusCode >= 500 {
		return appErrors.Unavailable(msg, nil)
	}
	return appErrors.New(appErrors.CodeUnknown, msg)
}

func conversationPath(id int64) string {
	return "/conversations/" + strconv.FormatInt(id, 10)
}

func (t *HTTPTransport) Append(ctx context.Context, conversationID int64, d Draft) (*model.Message, error) {
	var msg model.Message
	if err := t.do(ctx, http.MethodPost, conversationPath(conversationID)+"/messages", d, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (t *HTTPTransport) Poll(ctx context.Context, conversationID, after int64) (*model.PollResult, error) {
	q := url.Values{"after": {strconv.FormatInt(after, 10)}}
	var res model.PollResult
	if err := t.do(ctx, http.MethodGet, conversationPath(conversationID)+"/messages?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (t *HTTPTransport) Typing(ctx context.Context, conversationID int64) error {
	return t.do(ctx, http.MethodPost, conversationPath(conversationID)+"/typing", nil, nil)
}

// Login exchanges an operator id for a bearer token.
func Login(ctx context.Context, base string, req LoginRequest) (*LoginResponse, error) {
	t := NewHTTPTransport(base, "")
	var resp LoginResponse
	if err := t.do(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Open starts a conversation as a guest or account holder and returns it with
// a requester token scoped to it.
func Open(ctx context.Context, base string, requester model.Requester) (*OpenResponse, error) {
	t := NewHTTPTransport(base, "")
	var resp OpenResponse
	if err := t.do(ctx, http.MethodPost, "/conversations", requester, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetStatus and Assign are operator actions; they are not part of the
// polling loop.
func (t *HTTPTransport) SetStatus(ctx context.Context, conversationID int64, status model.Status) (*model.Conversation, error) {
	var conv model.Conversation
	body := map[string]model.Status{"status": status}
	if err := t.do(ctx, http.MethodPut, conversationPath(conversationID)+"/status", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (t *HTTPTransport) Assign(ctx context.Context, conversationID int64, operator string) (*model.Conversation, error) {
	var conv model.Conversation
	body := map[string]string{"operator": operator}
	if err := t.do(ctx, http.MethodPut, conversationPath(conversationID)+"/assignee", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// LoginRequest is the operator login. Requesters receive their token when
// they open a conversation.
type LoginRequest struct {
	OperatorID string `json:"operator_id"`
}

type LoginResponse struct {
	Token    string     `json:"token"`
	Role     model.Role `json:"role"`
	Identity string     `json:"identity"`
}

type OpenResponse struct {
	Conversation model.Conversation `json:"conversation"`
	Token        string             `json:"token"`
	Identity     string             `json:"identity"`
}
