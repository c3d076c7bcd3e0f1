// Package audit records who changed what. Recording never blocks and never fails the caller.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one append-only audit record
type Entry struct {
	ActorID   string    `json:"actorId" bson:"actorId"`
	Action    string    `json:"action" bson:"action"`
	Module    string    `json:"module" bson:"module"`
	OldData   any       `json:"oldData,omitempty" bson:"oldData,omitempty"`
	NewData   any       `json:"newData,omitempty" bson:"newData,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty" bson:"ipAddress,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Sink persists audit entries
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

const (
	DefaultBufferSize = 256
	writeTimeout      = 5 * time.Second
)

// Recorder hands entries to a sink on a background goroutine.
// Entries recorded after Close, or while the buffer is full, are dropped and logged.
type Recorder struct {
	sink    Sink
	logger  *zap.Logger
	entries chan Entry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder writing to sink
func NewRecorder(sink Sink, logger *zap.Logger, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	r := &Recorder{
		sink:    sink,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

type ipAddressKey struct{}

// WithIPAddress attaches the client address that Record copies into entries
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey{}, ip)
}

// IPAddressFrom returns the client address attached with WithIPAddress
func IPAddressFrom(ctx context.Context) string {
	ip, _ := ctx.Value(ipAddressKey{}).(string)
	return ip
}

// Record queues an entry without waiting for it to be written
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.IPAddress == "" {
		entry.IPAddress = IPAddressFrom(ctx)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("Audit recorder closed, dropping entry",
			zap.String("action", entry.Action),
			zap.String("actor_id", entry.ActorID))
		return
	}

	select {
	case r.entries <- entry:
	default:
		r.logger.Warn("Audit buffer full, dropping entry",
			zap.String("action", entry.Action),
			zap.String("actor_id", entry.ActorID))
	}
}

// Close stops accepting entries and waits until queued entries are written
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.entries {
		r.write(entry)
	}
}

func (r *Recorder) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.sink.Write(ctx, entry); err != nil {
		r.logger.Error("Failed to write audit entry",
			zap.String("action", entry.Action),
			zap.String("module", entry.Module),
			zap.String("actor_id", entry.ActorID),
			zap.Error(err))
	}
}

// LogSink writes audit entries to a zap logger
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Write(_ context.Context, entry Entry) error {
	s.logger.Info(entry.Action,
		zap.String("actor_id", entry.ActorID),
		zap.String("module", entry.Module),
		zap.Any("old_data", entry.OldData),
		zap.Any("new_data", entry.NewData),
		zap.String("ip_address", entry.IPAddress),
		zap.Time("timestamp", entry.Timestamp))
	return nil
}
