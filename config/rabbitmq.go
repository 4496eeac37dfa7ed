package config

import (
	"context"
	"fmt"
	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"net/url"
	"time"
)

const (
	rabbitDialTries   = 5
	rabbitMaxInterval = 10 * time.Second
	rabbitHeartbeat   = 10 * time.Second
	rabbitConnName    = "worker-evaluation"
)

// URL builds the amqp address, escaping credentials.
func (r *RabbitMQ) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(r.User, r.Pass),
		Host:   fmt.Sprintf("%s:%d", r.Host, r.Port),
		Path:   "/",
	}
	return u.String()
}

// NewRabbitMQConn dials the broker with exponential backoff and closes the
// connection once ctx is done.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQ) (*amqp.Connection, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("rabbitmq: host not configured")
	}

	logger := zerolog.Ctx(ctx).With().Str("host", cfg.Host).Int("port", cfg.Port).Logger()
	amqpCfg := amqp.Config{
		Heartbeat:  rabbitHeartbeat,
		Properties: amqp.NewConnectionProperties(),
	}
	amqpCfg.Properties.SetClientConnectionName(rabbitConnName)

	attempt := 0
	operation := func() (*amqp.Connection, error) {
		attempt++
		conn, err := amqp.DialConfig(cfg.URL(), amqpCfg)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("rabbitmq dial failed")
			return nil, err
		}
		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = rabbitMaxInterval
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(rabbitDialTries))
	if err != nil {
		logger.Error().Err(err).Int("attempts", attempt).Msg("giving up on rabbitmq")
		return nil, err
	}

	logger.Info().Msg("connected to rabbitmq")
	go func() {
		<-ctx.Done()
		if conn.IsClosed() {
			return
		}
		if err := conn.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close rabbitmq connection")
			return
		}
		logger.Info().Msg("rabbitmq connection closed")
	}()

	return conn, nil
}
