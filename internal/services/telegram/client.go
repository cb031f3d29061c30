package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.telegram.org"
	defaultHTTPTimeout = 60 * time.Second
	userAgent          = "leadcast/0.1"
	maxResponseBytes   = 1 << 20
)

// Config captures the runtime settings for the Bot API.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
}

// Client issues Bot API calls. The bot token is supplied per call so one
// client can serve several routes.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a Bot API client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	return client
}

// Upload is one file plus caption addressed to a chat.
type Upload struct {
	ChatID      string
	Caption     string
	ParseMode   string
	FileName    string
	ContentType string
	Data        []byte
}

// Message is the subset of the sent message leadcast records.
type Message struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"chat"`
}

// User describes the bot returned by getMe.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendVideo uploads the file as an inline-playable video.
func (c *Client) SendVideo(ctx context.Context, token string, upload Upload) (Message, error) {
	return c.sendFile(ctx, token, "sendVideo", "video", upload)
}

// SendDocument uploads the file as a generic attachment.
func (c *Client) SendDocument(ctx context.Context, token string, upload Upload) (Message, error) {
	return c.sendFile(ctx, token, "sendDocument", "document", upload)
}

// GetMe verifies the token and returns the bot identity.
func (c *Client) GetMe(ctx context.Context, token string) (User, error) {
	var user User
	if strings.TrimSpace(token) == "" {
		return user, &APIError{Method: "getMe", Kind: KindUnauthorized, Description: "bot token required"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL(token, "getMe"), nil)
	if err != nil {
		return user, fmt.Errorf("telegram getMe: build request: %w", err)
	}
	raw, err := c.do(req, "getMe")
	if err != nil {
		return user, err
	}
	if err := json.Unmarshal(raw, &user); err != nil {
		return user, fmt.Errorf("telegram getMe: decode result: %w", err)
	}
	return user, nil
}

func (c *Client) sendFile(ctx context.Context, token, method, field string, upload Upload) (Message, error) {
	var msg Message
	if strings.TrimSpace(token) == "" {
		return msg, &APIError{Method: method, Kind: KindUnauthorized, Description: "bot token required"}
	}
	if strings.TrimSpace(upload.ChatID) == "" {
		return msg, &APIError{Method: method, Kind: KindChatNotFound, Description: "chat id required"}
	}

	body, contentType, err := encodeMultipart(field, upload)
	if err != nil {
		return msg, fmt.Errorf("telegram %s: encode body: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(token, method), body)
	if err != nil {
		return msg, fmt.Errorf("telegram %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", contentType)

	raw, err := c.do(req, method)
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return msg, nil
}

func encodeMultipart(field string, upload Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := []struct{ key, value string }{
		{"chat_id", upload.ChatID},
		{"caption", upload.Caption},
		{"parse_mode", upload.ParseMode},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := writer.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}
	if field == "video" {
		if err := writer.WriteField("supports_streaming", "true"); err != nil {
			return nil, "", err
		}
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, upload.FileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func (c *Client) methodURL(token, method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)
}

func (c *Client) do(req *http.Request, method string) (json.RawMessage, error) {
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := KindGeneric
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, &APIError{Method: method, Kind: kind, Description: redactToken(err.Error()), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		kind := KindGeneric
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Kind: kind, Description: "read response", Err: err}
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		description := strings.TrimSpace(string(body))
		if len(description) > 200 {
			description = description[:200]
		}
		return nil, &APIError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			Kind:        Classify(resp.StatusCode, description),
			Description: description,
		}
	}
	if resp.StatusCode >= 300 || !payload.OK {
		return nil, &APIError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   payload.ErrorCode,
			Description: payload.Description,
			RetryAfter:  time.Duration(payload.Parameters.RetryAfter) * time.Second,
			Kind:        Classify(statusOrCode(resp.StatusCode, payload.ErrorCode), payload.Description),
		}
	}
	return payload.Result, nil
}

func statusOrCode(status, code int) int {
	if status >= 300 {
		return status
	}
	return code
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

// redactToken hides bot tokens that net/http includes in URL errors.
func redactToken(message string) string {
	idx := strings.Index(message, "/bot")
	if idx < 0 {
		return message
	}
	rest := message[idx+4:]
	end := strings.IndexByte(rest, '/')
	if end < 0 {
		return message
	}
	return message[:idx+4] + "<token>" + rest[end:]
}
