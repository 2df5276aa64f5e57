// Package calendar is a thin client for the Google Calendar v3 events API.
// It never handles authorization itself: every call asks a TokenSource for a
// valid access token, so expired tokens are refreshed upstream before the
// request goes out.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/jobpath/jobpath-server/internal/errors"
)

const (
	// DefaultBaseURL is the production Google Calendar API endpoint.
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

	// PrimaryCalendar addresses the authenticated user's default calendar.
	PrimaryCalendar = "primary"

	defaultTimeout = 15 * time.Second
)

// TokenSource supplies a bearer token for the given user, refreshing it if
// necessary. Satisfied by the oauth orchestrator.
type TokenSource interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// EventTime is either a timed instant (DateTime, RFC 3339) or an all-day
// date (Date, yyyy-mm-dd). Exactly one of the two is set.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Attendee is an invited participant on an event.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// Event mirrors the Google Calendar event resource, limited to the fields
// this application reads and writes.
type Event struct {
	ID          string     `json:"id,omitempty"`
	Status      string     `json:"status,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       *EventTime `json:"start,omitempty"`
	End         *EventTime `json:"end,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	HTMLLink    string     `json:"htmlLink,omitempty"`
}

// ListOptions narrows an event listing. A zero TimeMin defaults to the
// current time so unbounded listings never page through past events; the
// other zero values are omitted from the query.
type ListOptions struct {
	TimeMin      time.Time
	TimeMax      time.Time
	Query        string
	MaxResults   int
	SingleEvents bool
	OrderBy      string
}

type eventList struct {
	Items []Event `json:"items"`
}

// ProviderError reports a non-2xx response from the Calendar API.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar api: %d %s", e.StatusCode, e.Message)
}

// Client calls the Calendar API on behalf of linked users.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	nowTime    func() time.Time
}

type Option func(*Client)

// WithBaseURL points the client at a different API endpoint (testing).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the default bounded-timeout HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

func NewClient(tokens TokenSource, options ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// ListEvents returns the events on the user's calendar matching opts.
func (c *Client) ListEvents(ctx context.Context, userID, calendarID string, opts ListOptions) ([]Event, error) {
	q := url.Values{}
	if opts.TimeMin.IsZero() {
		opts.TimeMin = c.nowTime()
	}
	q.Set("timeMin", opts.TimeMin.Format(time.RFC3339))
	if !opts.TimeMax.IsZero() {
		q.Set("timeMax", opts.TimeMax.Format(time.RFC3339))
	}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.MaxResults > 0 {
		q.Set("maxResults", fmt.Sprintf("%d", opts.MaxResults))
	}
	if opts.SingleEvents {
		q.Set("singleEvents", "true")
	}
	if opts.OrderBy != "" {
		q.Set("orderBy", opts.OrderBy)
	}

	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list eventList
	if err := c.do(ctx, userID, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// CreateEvent inserts a new event and returns it with the provider-assigned
// ID populated.
func (c *Client) CreateEvent(ctx context.Context, userID, calendarID string, event *Event) (*Event, error) {
	if event == nil {
		return nil, errors.New("[CreateEvent] event is required")
	}
	var created Event
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	if err := c.do(ctx, userID, http.MethodPost, path, event, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateEvent replaces the event with the given ID.
func (c *Client) UpdateEvent(ctx context.Context, userID, calendarID, eventID string, event *Event) (*Event, error) {
	if eventID == "" {
		return nil, errors.New("[UpdateEvent] event ID is required")
	}
	var updated Event
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
	if err := c.do(ctx, userID, http.MethodPut, path, event, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteEvent removes the event. Deleting an already-deleted event returns
// the provider's 404/410 as a not-found error.
func (c *Client) DeleteEvent(ctx context.Context, userID, calendarID, eventID string) error {
	if eventID == "" {
		return errors.New("[DeleteEvent] event ID is required")
	}
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
	return c.do(ctx, userID, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, userID, method, path string, body, out any) error {
	token, err := c.tokens.AccessToken(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "[calendar] access token")
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[calendar] encode request body")
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "[calendar] build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.KindProvider, "calendar request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.providerError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Wrap(apperrors.KindProvider, "calendar response malformed", err)
		}
	}
	return nil
}

func (c *Client) providerError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(raw, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	provErr := &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Wrap(apperrors.KindToken, "calendar authorization rejected", provErr)
	case http.StatusNotFound, http.StatusGone:
		return apperrors.Wrap(apperrors.KindNotFound, "calendar event not found", provErr)
	case http.StatusTooManyRequests:
		return apperrors.Wrap(apperrors.KindRateLimit, "calendar rate limited", provErr)
	default:
		return apperrors.Wrap(apperrors.KindProvider, "calendar request rejected", provErr)
	}
}
