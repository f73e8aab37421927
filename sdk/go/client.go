package ateliersdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Atelier HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Atelier represents the API atelier model (partial).
type Atelier struct {
	ID          string   `json:"id"`
	UploaderID  string   `json:"uploader_id"`
	GameID      string   `json:"game_id"`
	Title       string   `json:"title"`
	Status      int      `json:"status"`
	StatusLabel string   `json:"status_label"`
	ReviewerID  *string  `json:"reviewer_id,omitempty"`
	Bounty      *int64   `json:"bounty,omitempty"`
	MaxBounty   int64    `json:"max_bounty"`
	Score       *float64 `json:"score,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

// Offer is one bounty bid in a create request.
type Offer struct {
	ReviewerID string `json:"reviewer_id"`
	Bounty     int64  `json:"bounty"`
}

// Account holds a user's coin balances.
type Account struct {
	UserID     string `json:"user_id"`
	Free       int64  `json:"free"`
	Frozen     int64  `json:"frozen"`
	Redeemable int64  `json:"redeemable"`
}

// Candidate is one open offer in an auction pool.
type Candidate struct {
	ReviewerID string `json:"reviewer_id"`
	Bounty     int64  `json:"bounty"`
	OfferedAt  string `json:"offered_at"`
}

// HistoryEntry is one row of the lifecycle log.
type HistoryEntry struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	AtelierID  string `json:"atelier_id,omitempty"`
	ActorID    string `json:"actor_id"`
	FromStatus *int   `json:"from_status,omitempty"`
	ToStatus   *int   `json:"to_status,omitempty"`
}

// PaginatedAteliers wraps list responses with cursors.
type PaginatedAteliers struct {
	Items      []Atelier `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateAtelier opens an atelier with the given recording and bounty offers.
func (c *Client) CreateAtelier(ctx context.Context, gameID, title, mediaType string, original []byte, offers []Offer) (Atelier, error) {
	body := map[string]any{
		"game_id":      gameID,
		"title":        title,
		"media_type":   mediaType,
		"original_b64": base64.StdEncoding.EncodeToString(original),
		"offers":       offers,
	}
	var resp Atelier
	err := c.do(ctx, http.MethodPost, "v0/ateliers", body, &resp)
	return resp, err
}

// GetAtelier fetches an atelier by id.
func (c *Client) GetAtelier(ctx context.Context, id string) (Atelier, error) {
	var resp Atelier
	err := c.do(ctx, http.MethodGet, "v0/ateliers/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Ateliers returns a paginated atelier listing.
func (c *Client) Ateliers(ctx context.Context, limit int, cursor string) (PaginatedAteliers, error) {
	endpoint := "v0/ateliers"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedAteliers
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Candidates lists the auction pool of an atelier.
func (c *Client) Candidates(ctx context.Context, id string) ([]Candidate, error) {
	var resp []Candidate
	err := c.do(ctx, http.MethodGet, "v0/ateliers/"+url.PathEscape(id)+"/candidates", nil, &resp)
	return resp, err
}

// Accept takes the caller's open offer on an atelier.
func (c *Client) Accept(ctx context.Context, id string) (Atelier, error) {
	var resp Atelier
	err := c.do(ctx, http.MethodPost, "v0/ateliers/"+url.PathEscape(id)+"/accept", nil, &resp)
	return resp, err
}

// Decline withdraws the caller's open offer on an atelier.
func (c *Client) Decline(ctx context.Context, id string) (Atelier, error) {
	var resp Atelier
	err := c.do(ctx, http.MethodPost, "v0/ateliers/"+url.PathEscape(id)+"/decline", nil, &resp)
	return resp, err
}

// Cancel cancels an atelier and releases its escrow.
func (c *Client) Cancel(ctx context.Context, id string) (Atelier, error) {
	var resp Atelier
	err := c.do(ctx, http.MethodPost, "v0/ateliers/"+url.PathEscape(id)+"/cancel", nil, &resp)
	return resp, err
}

// StartReview moves an assigned atelier to in_progress.
func (c *Client) StartReview(ctx context.Context, id string) (Atelier, error) {
	var resp Atelier
	err := c.do(ctx, http.MethodPost, "v0/ateliers/"+url.PathEscape(id)+"/review/start", nil, &resp)
	return resp, err
}

// SubmitReview delivers the review video and settles the escrow.
func (c *Client) SubmitReview(ctx context.Context, id, mediaType string, review []byte) (Atelier, error) {
	body := map[string]any{
		"media_type": mediaType,
		"review_b64": base64.StdEncoding.EncodeToString(review),
	}
	var resp Atelier
	err := c.do(ctx, http.MethodPost, "v0/ateliers/"+url.PathEscape(id)+"/review", body, &resp)
	return resp, err
}

// ScoreReview rates a delivered review.
func (c *Client) ScoreReview(ctx context.Context, id string, score float64) (Atelier, error) {
	body := map[string]any{"score": score}
	var resp Atelier
	err := c.do(ctx, http.MethodPost, "v0/ateliers/"+url.PathEscape(id)+"/score", body, &resp)
	return resp, err
}

// Balance returns the caller's coin balance.
func (c *Client) Balance(ctx context.Context) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodGet, "v0/ledger/balance", nil, &resp)
	return resp, err
}

// Deposit adds coins to the caller's free balance.
func (c *Client) Deposit(ctx context.Context, amount int64) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodPost, "v0/ledger/deposit", map[string]any{"amount": amount}, &resp)
	return resp, err
}

// History returns recent lifecycle events, optionally scoped to one atelier.
func (c *Client) History(ctx context.Context, atelierID string, limit int) ([]HistoryEntry, error) {
	endpoint := "v0/history"
	var params []string
	if atelierID != "" {
		params = append(params, "atelier_id="+url.QueryEscape(atelierID))
	}
	if limit > 0 {
		params = append(params, fmt.Sprintf("limit=%d", limit))
	}
	if len(params) > 0 {
		endpoint += "?" + strings.Join(params, "&")
	}
	var resp []HistoryEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
