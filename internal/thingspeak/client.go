package thingspeak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/firesense/fire-alert-service/internal/config"
	"github.com/firesense/fire-alert-service/tools/fieldmap"
)

// Reading is one normalized snapshot from the upstream sensor API.
// Flame and PIR are raw string flags with inverted polarity: "0" means
// detected. Timestamp is passed through as reported by the API.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Gas         float64 `json:"gas"`
	Flame       string  `json:"flame"`
	PIR         string  `json:"pir"`
	Timestamp   string  `json:"timestamp"`
}

// Channel identifies one upstream channel: the per-location id and read
// credential plus the display name used in logs.
type Channel struct {
	Name      string `json:"name"`
	ChannelID string `json:"thingspeak_channel_id"`
	ReadKey   string `json:"thingspeak_read_key"`
}

// Client fetches sensor data from the ThingSpeak HTTP API. It is
// stateless; a failed or malformed upstream response is reported as
// absence of data, never as an error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new ThingSpeak client
func NewClient(cfg config.ThingSpeakConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// Latest fetches the most recent reading for a channel. It returns nil if
// the upstream call fails or the response cannot be mapped; callers treat
// nil as "no data", not as a fault.
func (c *Client) Latest(ctx context.Context, ch Channel) *Reading {
	url := fmt.Sprintf("%s/channels/%s/feeds/last.json?api_key=%s", c.baseURL, ch.ChannelID, ch.ReadKey)

	body, ok := c.fetch(ctx, url, ch.Name)
	if !ok {
		return nil
	}

	var feed map[string]interface{}
	if err := json.Unmarshal(body, &feed); err != nil {
		c.logger.Warn("malformed feed response",
			zap.String("location", ch.Name),
			zap.Error(err))
		return nil
	}

	return readingFromFeed(feed)
}

// History fetches up to results readings for a channel, oldest to newest
// as returned by the upstream API. Entries that cannot be mapped are
// skipped; any upstream failure yields an empty slice.
func (c *Client) History(ctx context.Context, ch Channel, results int) []Reading {
	if results <= 0 {
		results = 100
	}
	url := fmt.Sprintf("%s/channels/%s/feeds.json?api_key=%s&results=%d", c.baseURL, ch.ChannelID, ch.ReadKey, results)

	body, ok := c.fetch(ctx, url, ch.Name)
	if !ok {
		return nil
	}

	var payload struct {
		Feeds []map[string]interface{} `json:"feeds"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("malformed feeds response",
			zap.String("location", ch.Name),
			zap.Error(err))
		return nil
	}

	readings := make([]Reading, 0, len(payload.Feeds))
	for _, feed := range payload.Feeds {
		if r := readingFromFeed(feed); r != nil {
			readings = append(readings, *r)
		}
	}
	return readings
}

func (c *Client) fetch(ctx context.Context, url, name string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn("failed to build upstream request",
			zap.String("location", name),
			zap.Error(err))
		return nil, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed",
			zap.String("location", name),
			zap.Error(err))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("upstream returned non-success status",
			zap.String("location", name),
			zap.Int("status_code", resp.StatusCode))
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("failed to read upstream response",
			zap.String("location", name),
			zap.Error(err))
		return nil, false
	}
	return body, true
}

// readingFromFeed maps one field-indexed feed entry to a Reading. All five
// sensor fields must be present and the numeric ones parseable; anything
// less is treated as malformed and dropped.
func readingFromFeed(feed map[string]interface{}) *Reading {
	temperature, ok := floatField(feed, fieldmap.Temperature)
	if !ok {
		return nil
	}
	humidity, ok := floatField(feed, fieldmap.Humidity)
	if !ok {
		return nil
	}
	gas, ok := floatField(feed, fieldmap.Gas)
	if !ok {
		return nil
	}
	flame, ok := stringField(feed, fieldmap.Flame)
	if !ok {
		return nil
	}
	pir, ok := stringField(feed, fieldmap.PIR)
	if !ok {
		return nil
	}

	timestamp, _ := feed["created_at"].(string)

	return &Reading{
		Temperature: temperature,
		Humidity:    humidity,
		Gas:         gas,
		Flame:       flame,
		PIR:         pir,
		Timestamp:   timestamp,
	}
}

func stringField(feed map[string]interface{}, pos int) (string, bool) {
	value, ok := feed[fieldmap.Key(pos)].(string)
	return value, ok
}

func floatField(feed map[string]interface{}, pos int) (float64, bool) {
	raw, ok := stringField(feed, pos)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
