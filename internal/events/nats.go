// Package events publishes build notifications to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitepack/internal/logfields"
)

// TypeBuildFinished is the event type of BuildFinished messages.
const TypeBuildFinished = "build.finished"

const defaultFlushTimeout = 5 * time.Second

// BuildFinished is published once per build, successful or not.
type BuildFinished struct {
	Type              string    `json:"type"`
	BuildID           string    `json:"build_id"`
	Outcome           string    `json:"outcome"`
	Revision          string    `json:"revision,omitempty"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	DurationMS        int64     `json:"duration_ms"`
	AssetsPacked      int       `json:"assets_packed"`
	AssetsSkipped     int       `json:"assets_skipped"`
	TemplatesRendered int       `json:"templates_rendered"`
	FilesCopied       int       `json:"files_copied"`
	ErrorStage        string    `json:"error_stage,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Publisher sends build events to one subject.
type Publisher struct {
	conn    Conn
	subject string
}

// Connect dials the NATS server at url.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("sitepack"),
		nats.Timeout(defaultFlushTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher connected", slog.String("url", url), slog.String("subject", subject))
	return NewPublisher(conn, subject), nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Subject returns the subject events are published to.
func (p *Publisher) Subject() string { return p.subject }

// PublishBuildFinished publishes ev and waits for the server to acknowledge
// the flush, bounded by ctx's deadline or a default timeout.
func (p *Publisher) PublishBuildFinished(ctx context.Context, ev BuildFinished) error {
	ev.Type = TypeBuildFinished
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	timeout := defaultFlushTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if err := p.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	slog.Debug("Published build event",
		logfields.BuildID(ev.BuildID),
		logfields.Outcome(ev.Outcome),
		slog.String("subject", p.subject))
	return nil
}

// Close closes the underlying connection.
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
