// Package notify delivers best-effort user notifications for lifecycle
// moments (offer received, review delivered, auction cancelled). Delivery
// failures are logged and never fail the operation that triggered them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Notification struct {
	UserID string
	Title  string
	Body   string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Noop discards notifications. Used when no push endpoint is configured.
type Noop struct{}

func (Noop) Notify(ctx context.Context, n Notification) error { return nil }

// Push posts notifications to an ntfy-compatible endpoint, one topic per
// user.
type Push struct {
	BaseURL string
	Client  *http.Client
	Log     *slog.Logger
}

func NewPush(baseURL string, timeout time.Duration, log *slog.Logger) *Push {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Push{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Log:     log,
	}
}

func (p *Push) Notify(ctx context.Context, n Notification) error {
	if p.BaseURL == "" {
		return nil
	}
	endpoint := p.BaseURL + "/" + url.PathEscape("atelier-"+n.UserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(n.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Title", n.Title)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned %s", resp.Status)
	}
	if p.Log != nil {
		p.Log.Debug("notification delivered", "user", n.UserID, "title", n.Title)
	}
	return nil
}
