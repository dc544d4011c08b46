package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConfig configures the audit event stream.
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "DISPATCH_EVENTS",
		SubjectPrefix: "dispatch.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		MaxAge:        7 * 24 * time.Hour,
	}
}

// JetStreamTrail publishes audit entries to NATS JetStream so downstream
// consumers (admin console, analytics) can tail dispatch activity.
type JetStreamTrail struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamTrail(cfg JetStreamConfig) (*JetStreamTrail, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	t := &JetStreamTrail{nc: nc, js: js, config: cfg}

	if err := t.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return t, nil
}

func (t *JetStreamTrail) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        t.config.StreamName,
		Description: "Dispatch audit trail",
		Subjects:    []string{fmt.Sprintf("%s.>", t.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      t.config.MaxAge,
		Storage:     jetstream.FileStorage,
	}

	if _, err := t.js.Stream(ctx, t.config.StreamName); err != nil {
		if _, err := t.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", t.config.StreamName).Msg("created JetStream stream")
	}
	return nil
}

func (t *JetStreamTrail) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", t.config.SubjectPrefix, entry.Action)
	if _, err := t.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish audit entry: %w", err)
	}
	return nil
}

// Connected reports NATS connectivity for health checks.
func (t *JetStreamTrail) Connected() bool {
	return t.nc != nil && t.nc.IsConnected()
}

func (t *JetStreamTrail) Close() {
	if t.nc != nil {
		t.nc.Close()
	}
}
