// Package api is a typed client for the SmartStudent backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"

	"golang.org/x/net/publicsuffix"

	"github.com/debuck1718/smartstudent/internal/model"
)

const (
	LocalBaseURL      = "http://localhost:3000"
	ProductionBaseURL = "https://smartstudent-backend.onrender.com"
)

// BaseURLFor picks the backend for the host the app is served from.
func BaseURLFor(hostname string) string {
	if hostname == "localhost" {
		return LocalBaseURL
	}
	return ProductionBaseURL
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// StatusOf returns the HTTP status of an *Error in err's chain, or 0.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// Client calls the backend with a cookie jar so session cookies are sent on
// every request.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for baseURL. A nil httpClient gets a fresh
// client with its own cookie jar.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar}
	}
	return &Client{base: base, httpClient: httpClient, logger: logger}, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// SetSessionCookie seeds the cookie jar with a "name=value" session cookie
// for the backend, for callers that did not log in through this client.
func (c *Client) SetSessionCookie(raw string) error {
	if c.httpClient.Jar == nil {
		return errors.New("set session cookie: client has no cookie jar")
	}
	cookies, err := http.ParseCookie(raw)
	if err != nil {
		return fmt.Errorf("set session cookie: %w", err)
	}
	c.httpClient.Jar.SetCookies(c.base, cookies)
	return nil
}

// HTTPClient returns the underlying client, sharing its cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) url(path string, query url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: path})
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var eb struct {
			Error string `json:"error"`
		}
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Error
		}
		return fmt.Errorf("%s %s: %w", method, path, apiErr)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data), "application/json", out)
}

// --- Session and admin ---

func (c *Client) Session(ctx context.Context) (*model.Session, error) {
	var s model.Session
	if err := c.getJSON(ctx, "/api/session", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) AdminUsers(ctx context.Context) ([]model.AdminUser, error) {
	var users []model.AdminUser
	if err := c.getJSON(ctx, "/api/admin/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetAdmin promotes or demotes a user.
func (c *Client) SetAdmin(ctx context.Context, email string, promote bool) error {
	return c.postJSON(ctx, "/api/admin/set-admin", map[string]any{"email": email, "promote": promote}, nil)
}

func (c *Client) RemoveUser(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/api/admin/remove-user", map[string]string{"email": email}, nil)
}

// --- Dashboard ---

func (c *Client) Assignments(ctx context.Context) ([]model.Assignment, error) {
	var out []model.Assignment
	if err := c.getJSON(ctx, "/api/assignments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AssignmentsPath is where new assignments are posted.
const AssignmentsPath = "/api/assignments"

// CreateAssignment posts a pre-encoded JSON body, so the same bytes can be
// queued verbatim when the post fails.
func (c *Client) CreateAssignment(ctx context.Context, body []byte) error {
	return c.do(ctx, http.MethodPost, AssignmentsPath, nil, bytes.NewReader(body), "application/json", nil)
}

func (c *Client) Expenses(ctx context.Context) ([]model.Expense, error) {
	var out []model.Expense
	if err := c.getJSON(ctx, "/api/expenses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateExpense(ctx context.Context, e model.Expense) error {
	return c.postJSON(ctx, "/api/expenses", e, nil)
}

func (c *Client) Goals(ctx context.Context) ([]model.Goal, error) {
	var out []model.Goal
	if err := c.getJSON(ctx, "/api/goals", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateGoal(ctx context.Context, g model.Goal) error {
	return c.postJSON(ctx, "/api/goals", g, nil)
}

func (c *Client) Rewards(ctx context.Context) ([]model.Reward, error) {
	var out []model.Reward
	if err := c.getJSON(ctx, "/api/rewards", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UserInfo(ctx context.Context) (*model.UserInfo, error) {
	var u model.UserInfo
	if err := c.getJSON(ctx, "/api/userinfo", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) WeekMetrics(ctx context.Context) (*model.WeekMetrics, error) {
	var m model.WeekMetrics
	if err := c.getJSON(ctx, "/api/metrics/week", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// --- Teacher ---

func (c *Client) ClassStudents(ctx context.Context) ([]model.ClassStudent, error) {
	var out []model.ClassStudent
	if err := c.getJSON(ctx, "/api/teacher/students/class", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Overdue(ctx context.Context) ([]model.OverdueAssignment, error) {
	var out []model.OverdueAssignment
	if err := c.getJSON(ctx, "/api/teacher/overdue", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FeedbackSince returns feedback with an id greater than since.
func (c *Client) FeedbackSince(ctx context.Context, since int64) ([]model.Feedback, error) {
	var out []model.Feedback
	q := url.Values{"since": {strconv.FormatInt(since, 10)}}
	if err := c.getJSON(ctx, "/api/teacher/feedback", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Attachment is an optional file sent with feedback.
type Attachment struct {
	Name string
	Data io.Reader
}

// SubmitFeedback posts a multipart form with a message and optional file.
func (c *Client) SubmitFeedback(ctx context.Context, msg string, file *Attachment) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("message", msg); err != nil {
		return fmt.Errorf("write message field: %w", err)
	}
	if file != nil {
		part, err := w.CreateFormFile("file", file.Name)
		if err != nil {
			return fmt.Errorf("create file part: %w", err)
		}
		if _, err := io.Copy(part, file.Data); err != nil {
			return fmt.Errorf("copy file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/api/feedback", nil, &buf, w.FormDataContentType(), nil)
}

// --- Push, timezone, refresh ---

// PushKey returns the server's VAPID public key.
func (c *Client) PushKey(ctx context.Context) (string, error) {
	var out struct {
		Vapid string `json:"vapid"`
	}
	if err := c.getJSON(ctx, "/api/push/key", nil, &out); err != nil {
		return "", err
	}
	return out.Vapid, nil
}

// PushSubscribe uploads a push subscription. sub is marshalled as-is.
func (c *Client) PushSubscribe(ctx context.Context, sub any) error {
	return c.postJSON(ctx, "/api/push/subscribe", sub, nil)
}

func (c *Client) SetTimezone(ctx context.Context, tz string) error {
	return c.postJSON(ctx, "/api/timezone", map[string]string{"timezone": tz}, nil)
}

// PeriodicRefresh pings the refresh endpoint.
func (c *Client) PeriodicRefresh(ctx context.Context) error {
	return c.getJSON(ctx, "/api/periodic-refresh", nil, nil)
}

// Ping reports whether the API is reachable. Any HTTP response counts as
// reachable; only transport failures are returned.
func (c *Client) Ping(ctx context.Context) error {
	err := c.getJSON(ctx, "/api/session", nil, nil)
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return nil
	}
	return err
}
