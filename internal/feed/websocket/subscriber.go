// Package websocket subscribes to the server's change notification stream.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	ws "github.com/coder/websocket"

	"nbbang/internal/feed"
)

const (
	minBackoff   = time.Second
	maxBackoff   = 30 * time.Second
	readLimit    = 64 << 10
	pingInterval = 30 * time.Second
)

// Config for a Subscriber.
type Config struct {
	URL     string
	Token   string
	GroupID string // optional; limits the stream to one group
}

// Subscriber keeps a websocket open and hands every notification to a
// handler, reconnecting with backoff when the connection drops.
type Subscriber struct {
	url    string
	header http.Header
	logger *slog.Logger
}

func NewSubscriber(cfg Config, logger *slog.Logger) (*Subscriber, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("feed url must be ws or wss, got %q", u.Scheme)
	}
	if cfg.GroupID != "" {
		q := u.Query()
		q.Set("group", cfg.GroupID)
		u.RawQuery = q.Encode()
	}
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{url: u.String(), header: header, logger: logger}, nil
}

// Run blocks until ctx is done. Handler errors are logged and do not close
// the connection.
func (s *Subscriber) Run(ctx context.Context, handler feed.Handler) error {
	backoff := minBackoff
	for {
		connected, err := s.session(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = minBackoff
		}
		s.logger.WarnContext(ctx, "Feed connection lost, reconnecting",
			"error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// session runs one connection. connected reports whether the dial succeeded.
func (s *Subscriber) session(ctx context.Context, handler feed.Handler) (connected bool, err error) {
	conn, _, err := ws.Dial(ctx, s.url, &ws.DialOptions{HTTPHeader: s.header})
	if err != nil {
		return false, fmt.Errorf("dial feed: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	s.logger.InfoContext(ctx, "Feed connected", "url", s.url)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.keepalive(ctx, conn)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := ws.CloseStatus(err); status == ws.StatusNormalClosure || status == ws.StatusGoingAway {
				return true, errors.New("feed closed by server")
			}
			return true, err
		}
		if typ != ws.MessageText {
			continue
		}

		msg, err := feed.MessageFromJSON(data)
		if err != nil {
			s.logger.WarnContext(ctx, "Dropping malformed feed message", "error", err)
			continue
		}
		if err := handler(ctx, msg); err != nil {
			s.logger.ErrorContext(ctx, "Failed to handle feed message",
				"type", msg.Type, "id", msg.ID, "error", err)
		}
	}
}

func (s *Subscriber) keepalive(ctx context.Context, conn *ws.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}
