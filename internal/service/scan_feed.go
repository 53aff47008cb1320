package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/observability"
)

const scanFeedBufferSize = 32

// ScanFeed fans scan outcomes out to connected scanning stations. When a NATS
// connection is configured events also reach stations attached to other nodes.
type ScanFeed interface {
	Publish(ctx context.Context, event dto.ScanEvent)
	Subscribe() (<-chan dto.ScanEvent, func())
	Start(ctx context.Context)
}

type scanFeed struct {
	mu          sync.RWMutex
	subscribers map[chan dto.ScanEvent]struct{}
	nats        *nats.Conn
	subject     string
	nodeID      string
	logger      zerolog.Logger
}

type scanFeedEnvelope struct {
	Source string        `json:"source"`
	Event  dto.ScanEvent `json:"event"`
	SentAt time.Time     `json:"sent_at"`
}

// NewScanFeed constructs the live feed. natsConn may be nil.
func NewScanFeed(natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ScanFeed {
	subject := ""
	if channelBase != "" {
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".scans"
	}
	return &scanFeed{
		subscribers: make(map[chan dto.ScanEvent]struct{}),
		nats:        natsConn,
		subject:     subject,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "scan_feed").Logger(),
	}
}

func (f *scanFeed) Start(ctx context.Context) {
	if f.nats == nil || f.subject == "" {
		return
	}

	sub, err := f.nats.Subscribe(f.subject, func(msg *nats.Msg) {
		var envelope scanFeedEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			f.logger.Warn().Err(err).Msg("invalid scan feed payload")
			return
		}
		if envelope.Source == f.nodeID {
			return
		}
		f.broadcast(envelope.Event)
	})
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to subscribe to scan feed subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to drain scan feed subscription")
		}
	}()
}

func (f *scanFeed) Publish(ctx context.Context, event dto.ScanEvent) {
	f.broadcast(event)

	if f.nats == nil || f.subject == "" {
		return
	}
	payload, err := json.Marshal(scanFeedEnvelope{Source: f.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		f.logger.Warn().Err(err).Msg("failed to encode scan event")
		return
	}
	if err := f.nats.Publish(f.subject, payload); err != nil {
		f.logger.Warn().Err(err).Msg("failed to publish scan event")
	}
}

func (f *scanFeed) Subscribe() (<-chan dto.ScanEvent, func()) {
	ch := make(chan dto.ScanEvent, scanFeedBufferSize)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()
	observability.LiveFeedClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, ch)
			close(ch)
			f.mu.Unlock()
			observability.LiveFeedClientsActive().Dec()
		})
	}
	return ch, cleanup
}

func (f *scanFeed) broadcast(event dto.ScanEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
