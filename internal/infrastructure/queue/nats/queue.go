package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/resilience"
)

// ingestMessage is the wire format of a queued ingestion request.
type ingestMessage struct {
	FileID     string    `json:"file_id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storage_key"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	group    string
	executor *resilience.Executor
}

// Options tune the connection. Zero values take the defaults below.
type Options struct {
	Name           string
	QueueGroup     string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	// FailFast makes New return an error when the server is unreachable
	// instead of retrying in the background.
	FailFast bool
	Executor *resilience.Executor
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "policy-reviewer"
	}
	if o.QueueGroup == "" {
		o.QueueGroup = "policy-ingest"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	return o
}

// New connects to url. Publishes go to subject and subscribers share the
// configured queue group so each request is handled by one worker.
func New(url, subject string, opts Options) (*Queue, error) {
	opts = opts.withDefaults()
	conn, err := nats.Connect(url,
		nats.Name(opts.Name),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(!opts.FailFast),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{conn: conn, subject: subject, group: opts.QueueGroup, executor: opts.Executor}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishIngest(ctx context.Context, req domain.IngestRequest) error {
	msg, err := newIngestMsg(q.subject, req)
	if err != nil {
		return err
	}
	return q.executor.Do(ctx, "nats_publish", func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish %s: %w", req.FileID, err)
		}
		return nil
	}, classifyNATSError)
}

const headerFileID = "Policy-File-Id"

// newIngestMsg carries the file id as a header as well, so operators can
// trace a message without decoding it. Nats-Msg-Id lets a JetStream
// stream on the subject deduplicate repeated enqueues.
func newIngestMsg(subject string, req domain.IngestRequest) (*nats.Msg, error) {
	payload, err := encodeIngestRequest(req)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(headerFileID, req.FileID)
	msg.Header.Set(nats.MsgIdHdr, req.FileID+"@"+req.EnqueuedAt.UTC().Format(time.RFC3339Nano))
	return msg, nil
}

// SubscribeIngest delivers queued requests to handler until ctx is done. A
// malformed message is logged and dropped.
func (q *Queue) SubscribeIngest(ctx context.Context, handler func(context.Context, domain.IngestRequest) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		req, err := decodeIngestRequest(msg.Data)
		if err != nil {
			slog.Error("ingest_message_invalid", "file_id", msg.Header.Get(headerFileID), "error", err)
			return
		}
		if err := handler(ctx, req); err != nil {
			slog.Error("worker_handler_error", "file_id", req.FileID, "error_kind", domain.KindOf(err), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeIngestRequest(req domain.IngestRequest) ([]byte, error) {
	payload, err := json.Marshal(ingestMessage{
		FileID:     req.FileID,
		Filename:   req.Filename,
		StorageKey: req.StorageKey,
		EnqueuedAt: req.EnqueuedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode ingest request: %w", err)
	}
	return payload, nil
}

func decodeIngestRequest(data []byte) (domain.IngestRequest, error) {
	var msg ingestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.IngestRequest{}, fmt.Errorf("decode ingest request: %w", err)
	}
	if strings.TrimSpace(msg.FileID) == "" || strings.TrimSpace(msg.StorageKey) == "" {
		return domain.IngestRequest{}, errors.New("ingest request without file_id or storage_key")
	}
	return domain.IngestRequest{
		FileID:     msg.FileID,
		Filename:   msg.Filename,
		StorageKey: msg.StorageKey,
		EnqueuedAt: msg.EnqueuedAt,
	}, nil
}
