// Package publisher mirrors finished lookups onto an MQTT broker.
package publisher

import (
	"encoding/json"
	"log/slog"
	"strings"

	"weather-insight/models"
)

// DefaultPrefix is the topic prefix used when none is configured
const DefaultPrefix = "weather-insight"

// Publisher writes each terminal snapshot, retained, to <prefix>/snapshot
type Publisher struct {
	client Client
	topic  string
	logger *slog.Logger
}

func New(client Client, prefix string, logger *slog.Logger) *Publisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, topic: prefix + "/snapshot", logger: logger}
}

// Topic returns the topic snapshots are published to
func (p *Publisher) Topic() string { return p.topic }

// Listen publishes snap if the cycle has finished
func (p *Publisher) Listen(snap models.Snapshot) {
	if !snap.State.Phase.Terminal() {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		p.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	if err := p.client.PublishWith(p.topic, payload, true); err != nil {
		p.logger.Error("mqtt publish failed", "topic", p.topic, "query_id", snap.QueryID, "error", err)
		return
	}
	p.logger.Debug("snapshot published", "topic", p.topic, "phase", snap.State.Phase)
}
