// Package api is the HTTP client for the document-chat backend. The
// streaming endpoint hands its response body off to a stream.Session;
// everything else is plain request/response.
package api

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
	"path/filepath"
	"strings"
	"time"

	"github.com/youruser/docchat/internal/logging"
	"github.com/youruser/docchat/internal/stream"
)

var (
	ErrRequestFailed = errors.New("API request failed")
	log              = logging.Get()
)

const defaultRequestTimeout = 30 * time.Second

// cancelNotifyTimeout bounds the fire-and-forget cancellation notice.
const cancelNotifyTimeout = 5 * time.Second

// Client handles communication with the document-chat backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	topK           int
	includeSources bool
}

// NewClient creates a client for the backend at baseURL. topK and
// includeSources are passed on every streamed message.
func NewClient(baseURL string, topK int, includeSources bool) *Client {
	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     &http.Client{},
		topK:           topK,
		includeSources: includeSources,
	}
}

// StreamMessage submits a message to the streaming endpoint and returns a
// session whose read loop is already running. The caller consumes
// session.Events() until the channel closes and may call session.Cancel()
// at any time. sessionKnown tells the session whether the conversation
// already adopted a server session id.
func (c *Client) StreamMessage(ctx context.Context, req MessageRequest, sessionKnown bool) (*stream.Session, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	streamCtx, abort := context.WithCancel(ctx)

	u := fmt.Sprintf("%s/api/chat/message/stream?top_k=%d&include_sources=%t",
		c.baseURL, c.topK, c.includeSources)
	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, u, bytes.NewReader(bodyBytes))
	if err != nil {
		abort()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Request(http.MethodPost, u)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		abort()
		log.Error("HTTP request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", stream.ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		abort()
		log.Error("API error %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	sess := stream.NewSession(stream.Config{
		Abort:        abort,
		Notify:       c.notifyCancel,
		SessionKnown: sessionKnown,
	})
	go sess.Run(resp.Body)
	return sess, nil
}

// notifyCancel posts the out-of-band cancellation notice. Failures are
// logged and swallowed: the local abort has already taken effect.
func (c *Client) notifyCancel(streamID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelNotifyTimeout)
	defer cancel()
	if err := c.CancelStream(ctx, streamID); err != nil {
		log.Info("cancel notice for stream %s failed: %v", streamID, err)
	}
}

// CancelStream asks the server to stop generating for the given stream
// handle. Any response body is ignored.
func (c *Client) CancelStream(ctx context.Context, streamID string) error {
	u := c.baseURL + "/api/chat/message/cancel/" + url.PathEscape(streamID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}

	log.Request(http.MethodPost, u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrRequestFailed, resp.StatusCode)
	}
	return nil
}

// SendMessage is the non-streaming sibling of StreamMessage: the full
// answer arrives in one response.
func (c *Client) SendMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	u := fmt.Sprintf("%s/api/chat/message?top_k=%d&include_sources=%t",
		c.baseURL, c.topK, c.includeSources)
	var msg MessageResponse
	if err := c.postJSON(ctx, u, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListSessions returns all server-side conversations, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	var sessions []SessionInfo
	if err := c.getJSON(ctx, c.baseURL+"/api/chat/sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession returns one conversation with its transcript.
func (c *Client) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	var detail SessionDetail
	if err := c.getJSON(ctx, c.baseURL+"/api/chat/sessions/"+url.PathEscape(id), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateSession creates an empty server-side conversation.
func (c *Client) CreateSession(ctx context.Context) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.postJSON(ctx, c.baseURL+"/api/chat/sessions", struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeleteSession removes a conversation and its messages.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.delete(ctx, c.baseURL+"/api/chat/sessions/"+url.PathEscape(id))
}

// ListDocuments returns all indexed documents.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	var docs []DocumentInfo
	if err := c.getJSON(ctx, c.baseURL+"/api/documents/", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UploadDocument sends a file to be indexed. The server rejects
// unsupported file types with a 400.
func (c *Client) UploadDocument(ctx context.Context, name string, r io.Reader) (*DocumentUploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	u := c.baseURL + "/api/documents/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	log.Request(http.MethodPost, u)

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var uploaded DocumentUploadResponse
	if err := json.Unmarshal(raw, &uploaded); err != nil {
		return nil, err
	}
	return &uploaded, nil
}

// DeleteDocument removes an indexed document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.delete(ctx, c.baseURL+"/api/documents/"+url.PathEscape(id))
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	ctx, cancel := ensureTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	log.Request(http.MethodGet, u)

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) postJSON(ctx context.Context, u string, in, out any) error {
	ctx, cancel := ensureTimeout(ctx)
	defer cancel()

	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	log.Request(http.MethodPost, u)

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) delete(ctx context.Context, u string) error {
	ctx, cancel := ensureTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	log.Request(http.MethodDelete, u)

	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("API error %d: %s", resp.StatusCode, string(raw))
		return nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, string(raw))
	}
	return raw, nil
}

// ensureTimeout adds the default request timeout unless the caller's
// context already has a deadline.
func ensureTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, defaultRequestTimeout)
}
