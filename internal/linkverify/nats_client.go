package linkverify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
)

// Subject suffixes published below the configured base subject.
const (
	SubjectBrokenLink     = "broken_link"
	SubjectBuildCompleted = "build_completed"
)

const publishTimeout = 5 * time.Second

// BrokenLinkEvent is published once per broken link.
type BrokenLinkEvent struct {
	BrokenLink
	BuildID   string    `json:"build_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSClient publishes build notifications to a JetStream stream.
type NATSClient struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// StreamName derives the JetStream stream name for a base subject.
func StreamName(subject string) string {
	name := strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(subject)
	return strings.ToUpper(name)
}

// NewNATSClient connects to url and ensures a stream captures every subject
// below subject.
func NewNATSClient(ctx context.Context, url, subject string) (*NATSClient, error) {
	if subject == "" {
		return nil, ferrors.NotifyError("notification subject is required").UserAction().Build()
	}
	conn, err := nats.Connect(url, nats.Name("mobsite"))
	if err != nil {
		return nil, ferrors.NotifyError("failed to connect to NATS").WithCause(err).WithContext("url", url).Build()
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.NotifyError("failed to create JetStream context").WithCause(err).Build()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName(subject),
		Description: "mobsite build notifications",
		Subjects:    []string{subject + ".>"},
		MaxAge:      30 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, ferrors.NotifyError("failed to ensure stream").WithCause(err).WithContext("stream", StreamName(subject)).Build()
	}

	slog.Info("NATS client initialized", logfields.URL(url), slog.String("subject", subject))
	return &NATSClient{conn: conn, js: js, subject: subject}, nil
}

// PublishBrokenLinks publishes one event per broken link.
func (c *NATSClient) PublishBrokenLinks(ctx context.Context, buildID string, broken []BrokenLink) error {
	now := time.Now().UTC()
	for _, b := range broken {
		if err := c.publish(ctx, SubjectBrokenLink, BrokenLinkEvent{BrokenLink: b, BuildID: buildID, Timestamp: now}); err != nil {
			return err
		}
	}
	return nil
}

// PublishBuildCompleted publishes a JSON build summary.
func (c *NATSClient) PublishBuildCompleted(ctx context.Context, summary any) error {
	return c.publish(ctx, SubjectBuildCompleted, summary)
}

func (c *NATSClient) publish(ctx context.Context, suffix string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ferrors.NotifyError("failed to marshal event").WithCause(err).Build()
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	subject := c.subject + "." + suffix
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return ferrors.NotifyError("failed to publish event").WithCause(err).WithContext("subject", subject).Build()
	}
	slog.Debug("Published event", slog.String("subject", subject))
	return nil
}

// Close drains and closes the connection.
func (c *NATSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}
