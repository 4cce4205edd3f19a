package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jgoulah/meterscraper/internal/config"
	"github.com/jgoulah/meterscraper/pkg/models"
)

func connectMQTT(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID("meterscraper-" + uuid.NewString())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// MonthlyTopic returns the retained topic for one month, e.g. meterscraper/tepco/monthly/2017-10
func MonthlyTopic(prefix, portal string, record models.MonthlyUsage) string {
	period := strings.NewReplacer("/", "-", " ", "", "#", "", "+", "").Replace(record.Period)
	return fmt.Sprintf("%s/%s/monthly/%s", prefix, strings.ToLower(portal), period)
}

// PublishMonthly sends each monthly record as a retained JSON message
func (p *Publisher) PublishMonthly(portal string, records []models.MonthlyUsage) error {
	if p.client == nil {
		return fmt.Errorf("MQTT publishing is not enabled in config")
	}

	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", record.Period, err)
		}

		token := p.client.Publish(MonthlyTopic(p.topicPrefix, portal, record), 1, true, payload)
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("publishing %s: timed out", record.Period)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing %s: %w", record.Period, err)
		}
	}

	return nil
}
