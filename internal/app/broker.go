package app

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"travel/internal/config"
	"travel/internal/notify"
)

// NewPublisher builds the notification task publisher for the configured broker.
func NewPublisher(cfg config.BrokerConfig, logger *zap.Logger) (notify.Publisher, error) {
	switch cfg.Kind {
	case config.BrokerKafka:
		return notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.BrokerNATS:
		conn, err := connectNATS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return notify.NewNATSPublisher(conn, cfg.NATSSubject), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
	}
}

// NewConsumer builds the notification task consumer used by the worker.
func NewConsumer(cfg config.BrokerConfig, logger *zap.Logger) (notify.Consumer, error) {
	switch cfg.Kind {
	case config.BrokerKafka:
		return notify.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger), nil
	case config.BrokerNATS:
		conn, err := connectNATS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return notify.NewNATSConsumer(conn, cfg.NATSSubject, cfg.NATSQueue, logger), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
	}
}

func connectNATS(cfg config.BrokerConfig, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("travel-notifications"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.NATSURL, err)
	}
	return conn, nil
}
