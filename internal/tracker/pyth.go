package tracker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderadar/backend/internal/store"
)

type pythStreamEnvelope struct {
	Parsed []pythPriceUpdate `json:"parsed"`
}

type pythPriceUpdate struct {
	ID    string            `json:"id"`
	Price pythPriceSnapshot `json:"price"`
}

type pythPriceSnapshot struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

func (s *Service) runPythPriceStream(ctx context.Context) {
	endpoint := strings.TrimSpace(s.cfg.Pyth.StreamURL)
	symbolByFeed := feedSymbols(s.cfg.Pyth.FeedBySymbol)
	if endpoint == "" || len(symbolByFeed) == 0 {
		s.logger.Warn("pyth price stream disabled due to missing endpoint or feeds")
		return
	}

	reconnectDelay := s.cfg.Pyth.ReconnectInterval
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}

	client := &http.Client{}
	s.logger.Info("pyth price stream enabled",
		"endpoint", endpoint,
		"feeds", len(symbolByFeed),
		"reconnect_delay", reconnectDelay.String(),
	)

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		err := s.consumePythPriceStream(ctx, client, endpoint, symbolByFeed)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("pyth price stream disconnected", "err", err, "retry_in", reconnectDelay.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// feedSymbols inverts the configured symbol→feed map into lower-case,
// unprefixed feed ids.
func feedSymbols(feedBySymbol map[string]string) map[string]string {
	out := make(map[string]string, len(feedBySymbol))
	for symbol, feed := range feedBySymbol {
		id := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(feed), "0x"))
		symbol = store.NormalizeSymbol(symbol)
		if id == "" || symbol == "" {
			continue
		}
		out[id] = symbol
	}
	return out
}

func (s *Service) consumePythPriceStream(ctx context.Context, client *http.Client, endpoint string, symbolByFeed map[string]string) error {
	streamURL, err := buildPythStreamURL(endpoint, symbolByFeed)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return fmt.Errorf("build pyth stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("open pyth stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("open pyth stream: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return s.readPythEvents(ctx, resp.Body, symbolByFeed)
}

// readPythEvents consumes server-sent events until the body ends. Each event
// is the concatenation of its data: lines.
func (s *Service) readPythEvents(ctx context.Context, body io.Reader, symbolByFeed map[string]string) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024), 16*1024*1024)

	var eventData strings.Builder
	flush := func() {
		if eventData.Len() == 0 {
			return
		}
		if err := s.processPythStreamEvent(ctx, eventData.String(), symbolByFeed); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("failed to process pyth stream event", "err", err)
		}
		eventData.Reset()
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if eventData.Len() > 0 {
			eventData.WriteByte('\n')
		}
		eventData.WriteString(payload)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read pyth stream: %w", err)
	}
	return io.EOF
}

func (s *Service) processPythStreamEvent(ctx context.Context, rawEvent string, symbolByFeed map[string]string) error {
	payload := strings.TrimSpace(rawEvent)
	if payload == "" || payload == "[DONE]" {
		return nil
	}

	var event pythStreamEnvelope
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return fmt.Errorf("decode pyth stream event: %w", err)
	}

	now := s.now().Unix()
	for _, update := range event.Parsed {
		symbol, ok := symbolByFeed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(update.ID), "0x"))]
		if !ok {
			continue
		}

		price, err := decodePythPrice(update.Price.Price, update.Price.Expo)
		if err != nil || !price.IsPositive() {
			continue
		}
		conf, err := decodePythPrice(update.Price.Conf, update.Price.Expo)
		if err != nil {
			conf = decimal.Zero
		}
		publishTime := update.Price.PublishTime
		if publishTime <= 0 {
			publishTime = now
		}

		inserted, err := s.store.InsertPriceTick(ctx, store.PriceTickInput{
			Symbol:      symbol,
			Source:      sourcePyth,
			Price:       price,
			Conf:        conf,
			PublishTime: publishTime,
			ReceivedAt:  now,
		})
		if err != nil {
			ticksTotal.WithLabelValues(sourcePyth, "error").Inc()
			return fmt.Errorf("store pyth tick for %s: %w", symbol, err)
		}
		if inserted {
			ticksTotal.WithLabelValues(sourcePyth, "stored").Inc()
		} else {
			ticksTotal.WithLabelValues(sourcePyth, "duplicate").Inc()
		}
	}
	return nil
}

func buildPythStreamURL(endpoint string, symbolByFeed map[string]string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("parse pyth endpoint: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid pyth endpoint: %q", endpoint)
	}

	feeds := make([]string, 0, len(symbolByFeed))
	for feed := range symbolByFeed {
		feeds = append(feeds, feed)
	}
	sort.Strings(feeds)

	query := parsedURL.Query()
	query.Del("ids[]")
	for _, feed := range feeds {
		query.Add("ids[]", feed)
	}
	if strings.TrimSpace(query.Get("parsed")) == "" {
		query.Set("parsed", "true")
	}
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

// decodePythPrice applies the feed exponent exactly: "6350000000" with
// expo -8 is 63.5.
func decodePythPrice(raw string, expo int32) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("empty price")
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, err
	}
	return value.Shift(expo), nil
}
