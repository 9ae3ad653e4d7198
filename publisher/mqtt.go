package publisher

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Client is the minimal surface the publisher needs from a broker connection.
// It lets the publisher be tested without a live broker.
type Client interface {
	PublishWith(topic string, payload []byte, retain bool) error
}

// MQTTClient is a paho-backed Client
type MQTTClient struct {
	cli mqtt.Client
}

// brokerAddress converts mqtt:// and tls:// style URLs into paho broker addresses
func brokerAddress(brokerURL string) (string, *url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(brokerURL))
	if err != nil {
		return "", nil, fmt.Errorf("invalid broker url: %w", err)
	}
	if u.Host == "" {
		return "", nil, fmt.Errorf("invalid broker url %q: missing host", brokerURL)
	}
	switch u.Scheme {
	case "mqtt", "tcp":
		return "tcp://" + u.Host, u, nil
	case "ssl", "tls", "mqtts":
		return "ssl://" + u.Host, u, nil
	case "ws", "wss":
		return u.Scheme + "://" + u.Host + u.Path, u, nil
	default:
		return "", nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}

// Connect dials the broker and waits up to 15s for the session.
func Connect(brokerURL, clientID string) (*MQTTClient, error) {
	server, u, err := brokerAddress(brokerURL)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(server)
	if strings.TrimSpace(clientID) == "" {
		clientID = "weather-insight-" + time.Now().Format("150405.000")
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}
	if strings.HasPrefix(server, "ssl://") || u.Scheme == "wss" {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.OnConnect = func(_ mqtt.Client) { slog.Info("mqtt connected", "broker", server) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { slog.Warn("mqtt connection lost", "error", err) }

	cli := mqtt.NewClient(opts)
	tok := cli.Connect()
	if !tok.WaitTimeout(15 * time.Second) {
		return nil, errors.New("mqtt connect timed out")
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return &MQTTClient{cli: cli}, nil
}

func (c *MQTTClient) PublishWith(topic string, payload []byte, retain bool) error {
	t := c.cli.Publish(topic, 1, retain, payload)
	if !t.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	return t.Error()
}

func (c *MQTTClient) Close() {
	if c == nil || c.cli == nil {
		return
	}
	c.cli.Disconnect(1000)
}

var _ Client = (*MQTTClient)(nil)
