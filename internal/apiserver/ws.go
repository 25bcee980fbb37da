package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/oracle"
)

const (
	channelTopPools     = "pools.top"
	channelRecentSwaps  = "swaps.recent"
	channelAlerts       = "alerts"
	channelPricesPrefix = "prices."
)

type websocketSubscribeRequest struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

type websocketEnvelope struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	TS      int64  `json:"ts"`
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleWebsocket pushes subscribed channels on every tick, skipping a
// channel whose payload hashes the same as the last one sent.
func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	upgrader := websocketUpgrader
	upgrader.CheckOrigin = func(req *http.Request) bool {
		origin := strings.TrimSpace(req.Header.Get("Origin"))
		return s.isOriginAllowed(origin)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newSubscriptionSet()
	readErrCh := make(chan error, 1)
	go s.websocketReadLoop(ctx, conn, subs, readErrCh)

	interval := s.cfg.WebsocketInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErrCh:
			if err != nil {
				s.logger.Debug("websocket read loop ended", "err", err)
			}
			return
		case <-ticker.C:
			write := func(envelope websocketEnvelope) error { return writeWebsocketJSON(conn, envelope) }
			if err := s.pushChannels(ctx, subs, write); err != nil {
				return
			}
		}
	}
}

// pushChannels writes one event per subscribed channel whose payload changed
// since the last push. A channel that can never resolve, like prices.DOGE,
// gets a single error event and is unsubscribed.
func (s *Service) pushChannels(ctx context.Context, subs *subscriptionSet, write func(websocketEnvelope) error) error {
	for _, channel := range subs.List() {
		payload, err := s.getWebsocketPayload(ctx, channel)
		if err != nil {
			envelope := websocketEnvelope{Type: "error", Channel: channel, Error: "failed to fetch channel data", TS: s.now().Unix()}
			if apperr.IsInvalid(err) {
				subs.Remove(channel)
				envelope.Error = "unsupported channel, unsubscribed"
				s.logger.Debug("websocket channel dropped", "channel", channel, "err", err)
			} else {
				s.logger.Warn("websocket channel fetch failed", "channel", channel, "err", err)
			}
			if err := write(envelope); err != nil {
				return err
			}
			continue
		}
		if payload == nil {
			continue
		}
		changed, err := subs.Changed(channel, payload)
		if err != nil {
			s.logger.Error("websocket payload encode failed", "channel", channel, "err", err)
			continue
		}
		if !changed {
			continue
		}
		if err := write(websocketEnvelope{Type: "event", Channel: channel, Data: payload, TS: s.now().Unix()}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) websocketReadLoop(ctx context.Context, conn *websocket.Conn, subs *subscriptionSet, readErrCh chan<- error) {
	conn.SetReadLimit(1024 * 1024)
	if err := conn.SetReadDeadline(time.Now().Add(90 * time.Second)); err == nil {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		})
	}
	for {
		select {
		case <-ctx.Done():
			readErrCh <- nil
			return
		default:
		}
		var message websocketSubscribeRequest
		if err := conn.ReadJSON(&message); err != nil {
			readErrCh <- err
			return
		}
		message.Type = strings.ToLower(strings.TrimSpace(message.Type))
		message.Channel = strings.TrimSpace(message.Channel)
		if message.Channel == "" {
			continue
		}
		switch message.Type {
		case "subscribe":
			subs.Add(message.Channel)
		case "unsubscribe":
			subs.Remove(message.Channel)
		}
	}
}

func (s *Service) getWebsocketPayload(ctx context.Context, channel string) (any, error) {
	switch {
	case channel == channelTopPools:
		pools, err := s.loadPools(ctx)
		if err != nil {
			return nil, err
		}
		return poolViews(analytics.TopPools(pools, analytics.MetricTVL, 10)), nil
	case channel == channelRecentSwaps:
		return s.store.ListSwaps(ctx, "", 20)
	case channel == channelAlerts:
		pools, err := s.loadPools(ctx)
		if err != nil {
			return nil, err
		}
		alerts := analytics.BuildAlerts(pools, analytics.CategoryAll, s.now())
		analytics.SortAlerts(alerts)
		return alertFeed(alerts), nil
	case strings.HasPrefix(channel, channelPricesPrefix):
		symbol := normalizeSymbol(strings.TrimPrefix(channel, channelPricesPrefix))
		if symbol == "" {
			return nil, nil
		}
		if !oracle.Supported(symbol) {
			return nil, apperr.Errorf(apperr.KindInvalid, "websocket channel", "unsupported symbol %s", symbol)
		}
		quote, err := s.oracle.Price(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return quote, nil
	default:
		return nil, nil
	}
}

// fingerprinter lets a payload hash a projection of itself, leaving out
// fields that change on every evaluation.
type fingerprinter interface {
	fingerprint() any
}

// alertFeed is the alerts channel payload. Alerts are stamped with the
// evaluation time, which is left out of the hash.
type alertFeed []analytics.Alert

func (f alertFeed) fingerprint() any {
	stripped := make([]analytics.Alert, len(f))
	for i, alert := range f {
		alert.Timestamp = 0
		stripped[i] = alert
	}
	return stripped
}

func writeWebsocketJSON(conn *websocket.Conn, payload websocketEnvelope) error {
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(payload)
}

// subscriptionSet holds a connection's channels and the hash of the last
// payload sent on each.
type subscriptionSet struct {
	mu    sync.RWMutex
	items map[string]uint64
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{items: map[string]uint64{}}
}

func (s *subscriptionSet) Add(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[channel]; !ok {
		s.items[channel] = 0
	}
}

func (s *subscriptionSet) Remove(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, channel)
}

func (s *subscriptionSet) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.items))
	for channel := range s.items {
		out = append(out, channel)
	}
	return out
}

// Changed records payload's hash for channel and reports whether it differs
// from the previous one. Unsubscribed channels never report a change.
func (s *subscriptionSet) Changed(channel string, payload any) (bool, error) {
	hashed := payload
	if fp, ok := payload.(fingerprinter); ok {
		hashed = fp.fingerprint()
	}
	encoded, err := json.Marshal(hashed)
	if err != nil {
		return false, fmt.Errorf("encode %s payload: %w", channel, err)
	}
	sum := xxhash.Sum64(encoded)

	s.mu.Lock()
	defer s.mu.Unlock()
	previous, ok := s.items[channel]
	if !ok || previous == sum {
		return false, nil
	}
	s.items[channel] = sum
	return true, nil
}
