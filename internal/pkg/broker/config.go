package broker

import (
	"time"

	"github.com/streadway/amqp"

	"github.com/fixmarket/corelink/internal/pkg/env"
)

const heartbeat = 30 * time.Second

// Config carries the broker connection settings. Connections are opened
// per operation and closed on every exit path; no process-wide channel is
// ever reused.
type Config struct {
	Host     string
	Port     int
	Vhost    string
	User     string
	Password string
}

// ConfigFromEnv builds the broker configuration from recognized env options.
func ConfigFromEnv() Config {
	return Config{
		Host:     env.GetEnv("RABBIT_HOST", "rabbitmq"),
		Port:     env.GetEnvInt("RABBIT_PORT", 5672),
		Vhost:    env.GetEnv("RABBIT_VHOST", "marketplace"),
		User:     env.GetEnv("RABBIT_USER", "app"),
		Password: env.GetEnv("RABBIT_PASS", "changeme"),
	}
}

// URL renders the amqp connection string.
func (c Config) URL() string {
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Vhost:    c.Vhost,
	}
	return uri.String()
}

func dial(config Config) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(config.URL(), amqp.Config{Heartbeat: heartbeat})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// ensureDirectExchange verifies the exchange exists without touching its
// type; only when the broker reports 404 is it declared. A passive declare
// failure closes the channel, so a fresh one is opened for the declare.
func ensureDirectExchange(conn *amqp.Connection, ch *amqp.Channel, name string) (*amqp.Channel, error) {
	err := ch.ExchangeDeclarePassive(name, amqp.ExchangeDirect, true, false, false, false, nil)
	if err == nil {
		return ch, nil
	}

	amqpErr, ok := err.(*amqp.Error)
	if !ok || amqpErr.Code != amqp.NotFound {
		return nil, err
	}

	fresh, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := fresh.ExchangeDeclare(name, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return nil, err
	}
	return fresh, nil
}
