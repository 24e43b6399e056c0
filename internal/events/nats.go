package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	connectWait   = 5 * time.Second
	maxReconnects = -1
	reconnectWait = 2 * time.Second
)

var tracer = otel.Tracer("sunnyapi/events")

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url, name string, log *zap.Logger) (*nats.Conn, error) {
	log = log.With(zap.String("component", "nats"))
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(connectWait),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("nats_error", zap.String("subject", subject), zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats_disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats_reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("nats_closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	log.Info("nats_connected", zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}

// NATSPublisher publishes JSON payloads with trace context in the message headers.
type NATSPublisher struct {
	conn *nats.Conn
	log  *zap.Logger
}

func NewNATSPublisher(conn *nats.Conn, log *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, log: log.Named("nats_publisher")}
}

var _ Publisher = (*NATSPublisher)(nil)

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	ctx, span := tracer.Start(ctx, "nats.publish "+subject, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal event for %s: %w", subject, err)
	}

	msg := buildMsg(ctx, subject, payload)
	if err := p.conn.PublishMsg(msg); err != nil {
		span.RecordError(err)
		p.log.Error("nats_publish_failed", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	p.log.Debug("nats_published", zap.String("subject", subject), zap.Int("bytes", len(payload)))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil || p.conn.IsClosed() {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.log.Error("nats_drain_failed", zap.Error(err))
		p.conn.Close()
	}
}

func buildMsg(ctx context.Context, subject string, payload []byte) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = payload
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier(msg.Header))
	return msg
}

// NATSBroadcaster fans realtime events out through NATS so every API instance relays them to its clients.
type NATSBroadcaster struct {
	pub *NATSPublisher
}

func NewNATSBroadcaster(pub *NATSPublisher) *NATSBroadcaster {
	return &NATSBroadcaster{pub: pub}
}

var _ Broadcaster = (*NATSBroadcaster)(nil)

func (b *NATSBroadcaster) Broadcast(ctx context.Context, room string, ev Event) error {
	return b.pub.Publish(ctx, realtimePrefix+room, ev)
}

// Subscribe relays every realtime.> message to sink.
func Subscribe(conn *nats.Conn, sink Sink, log *zap.Logger) (*nats.Subscription, error) {
	sub, err := conn.Subscribe(realtimePrefix+">", relay(sink, log))
	if err != nil {
		return nil, fmt.Errorf("subscribe realtime: %w", err)
	}
	return sub, nil
}

func relay(sink Sink, log *zap.Logger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		room, ok := strings.CutPrefix(msg.Subject, realtimePrefix)
		if !ok || room == "" {
			log.Warn("nats_unexpected_subject", zap.String("subject", msg.Subject))
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), HeaderCarrier(msg.Header))
		_, span := tracer.Start(ctx, "nats.relay", trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attribute.String("realtime.room", room)))
		defer span.End()

		sink.Deliver(room, msg.Data)
	}
}

// HeaderCarrier adapts nats.Header to the OpenTelemetry propagation carrier.
type HeaderCarrier nats.Header

func (c HeaderCarrier) Get(key string) string { return nats.Header(c).Get(key) }

func (c HeaderCarrier) Set(key, value string) { nats.Header(c).Set(key, value) }

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
