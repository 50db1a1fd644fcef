// Package api is the client for the recruitment backend that owns
// applications, interview attendance and passport uploads.
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
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-checkin/application"
)

// DefaultTimeout bounds every backend request
const DefaultTimeout = 15 * time.Second

// ErrNotFound is returned when a scanned code matches no application
var ErrNotFound = errors.New("no application data found for this code")

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the backend
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// NewClient creates a client for the backend rooted at baseURL
// (for example https://admin.example.com/api)
func NewClient(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// FetchApplication looks up the application behind a scanned barcode
func (c *Client) FetchApplication(ctx context.Context, code string) (*application.Record, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/frontend/v1/application-barcode/"+url.PathEscape(code), nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}

	switch strings.TrimSpace(string(envelope.Data)) {
	case "", "null", "false", `""`, "0":
		return nil, ErrNotFound
	}

	var rec application.Record
	if err := json.Unmarshal(envelope.Data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode application: %w", err)
	}
	return &rec, nil
}

// UpdateAttendance records the applicant as present or absent for a
// scheduled interview slot
func (c *Client) UpdateAttendance(ctx context.Context, applicationID, scheduleID string, present bool) error {
	isPresent := 0
	if present {
		isPresent = 1
	}
	body, err := json.Marshal(map[string]any{
		"schedule_id": numberOrString(scheduleID),
		"is_present":  isPresent,
		"token":       c.token,
	})
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	path := "/admin/v1/applications/" + url.PathEscape(applicationID) + "/updateAttendanceByToken"
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// UploadPassport sends a passport photo for the candidate. filename may be
// empty, in which case a unique name is generated.
func (c *Client) UploadPassport(ctx context.Context, userID, filename string, photo io.Reader) error {
	if filename == "" {
		filename = "passport_" + uuid.NewString() + ".jpg"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="passport_copy"; filename=%q`, filename))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("multipart error: %w", err)
	}
	if _, err := io.Copy(part, photo); err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}
	if err := w.WriteField("user_id", userID); err != nil {
		return fmt.Errorf("multipart error: %w", err)
	}
	if err := w.WriteField("token", c.token); err != nil {
		return fmt.Errorf("multipart error: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("multipart error: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/frontend/v1/upload-passport-photo", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	logger := c.logger.With(
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("Request failed", zap.Error(err))
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	logger.Debug("Request completed",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		logger.Warn("Backend error", zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	return body.Message
}

func numberOrString(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// ScheduleFor returns the ids UpdateAttendance needs for rec. The numeric
// record id is preferred over the printed application id.
func ScheduleFor(rec *application.Record) (applicationID, scheduleID string, err error) {
	if rec == nil {
		return "", "", errors.New("no application loaded")
	}
	sid, ok := rec.ScheduleID()
	if !ok {
		return "", "", errors.New("application has no interview schedule")
	}
	id := rec.ID
	if !id.Available() {
		id = rec.ApplicationID
	}
	if !id.Available() {
		return "", "", errors.New("application has no id")
	}
	return id.String(), sid.String(), nil
}
