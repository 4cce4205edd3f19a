package publisher

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-resty/resty/v2"

	"github.com/jgoulah/meterscraper/internal/config"
)

// Publisher sends stored usage to Home Assistant (HTTP API) and an MQTT broker
type Publisher struct {
	ha          *resty.Client
	haConfig    config.HAConfig
	client      mqtt.Client
	topicPrefix string
}

// New creates a new publisher. Either side may be disabled in config.
func New(cfg *config.Config) (*Publisher, error) {
	p := &Publisher{haConfig: cfg.HomeAssistant}

	if cfg.HomeAssistant.Enabled {
		if cfg.HomeAssistant.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if cfg.HomeAssistant.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		p.ha = newHAClient(cfg.HomeAssistant)
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}
		client, err := connectMQTT(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		p.client = client
		p.topicPrefix = cfg.GetTopicPrefix()
	}

	return p, nil
}

func newHAClient(cfg config.HAConfig) *resty.Client {
	client := resty.New()
	client.SetBaseURL(cfg.URL)
	client.SetAuthToken(cfg.Token)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)
	return client
}

// HomeAssistantEnabled reports whether HTTP publishing is configured
func (p *Publisher) HomeAssistantEnabled() bool {
	return p.ha != nil
}

// MQTTEnabled reports whether the broker connection is configured
func (p *Publisher) MQTTEnabled() bool {
	return p.client != nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
