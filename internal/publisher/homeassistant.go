package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/jgoulah/meterscraper/pkg/models"
)

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated"`
}

// StatsResult is the response of the statistics endpoint
type StatsResult struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	TotalHours int `json:"total_hours"`
}

const (
	backfillPath = "/api/appdaemon/backfill_state"
	statsPath    = "/api/appdaemon/generate_statistics"
)

// PublishReading backfills one half-hour reading into the given entity
func (p *Publisher) PublishReading(ctx context.Context, entityID string, reading models.IntervalReading) error {
	if p.ha == nil {
		return fmt.Errorf("Home Assistant publishing is not enabled in config")
	}
	if entityID == "" {
		return fmt.Errorf("no Home Assistant entity_id configured for %s", reading.Portal)
	}

	timestamp := reading.StartTime.Format(time.RFC3339)
	payload := HAPayload{
		EntityID:    entityID,
		State:       fmt.Sprintf("%.2f", reading.KWh),
		LastChanged: timestamp,
		LastUpdated: timestamp,
	}

	resp, err := p.ha.R().
		SetContext(ctx).
		SetBody(payload).
		Post(backfillPath)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// GenerateStatistics asks Home Assistant to compile statistics from backfilled states
func (p *Publisher) GenerateStatistics(ctx context.Context, entityID string) (*StatsResult, error) {
	if p.ha == nil {
		return nil, fmt.Errorf("Home Assistant is not enabled in config")
	}

	var result StatsResult
	resp, err := p.ha.R().
		SetContext(ctx).
		SetBody(map[string]string{"entity_id": entityID}).
		SetResult(&result).
		Post(statsPath)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode(), resp.String())
	}

	return &result, nil
}
