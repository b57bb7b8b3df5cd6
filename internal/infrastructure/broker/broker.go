package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"marketdata-backfill/internal/application/service/ingestion"
	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/domain/entity/ohlcv"
)

// Loader runs one ingestion. It is satisfied by the ingestion service.
type Loader interface {
	Load(ctx context.Context, class ohlcv.AssetClass, symbol string, from, to time.Time) ([]ohlcv.Record, error)
}

// Consumer reads ingest requests from a durable queue bound to the ingest exchange and runs
// them one by one through the Loader.
type Consumer struct {
	cfg    config.RabbitMQConfig
	loader Loader
	logger logrus.FieldLogger
	now    func() time.Time

	conn    *amqp.Connection
	channel *amqp.Channel
	wg      sync.WaitGroup
}

// NewConsumer prepares a consumer for the given configuration.
func NewConsumer(cfg config.RabbitMQConfig, loader Loader, logger logrus.FieldLogger) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if loader == nil {
		return nil, errors.New("loader is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Consumer{
		cfg:    cfg,
		loader: loader,
		logger: logger.WithField("component", "ingest_consumer"),
		now:    time.Now,
	}, nil
}

// Start establishes the AMQP connection and begins consuming.
func (c *Consumer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	c.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		c.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.channel = ch
	if err := declareTopology(ch, c.cfg); err != nil {
		c.Close()
		return err
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		c.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		c.Close()
		return fmt.Errorf("start consume on %s: %w", c.cfg.Queue, err)
	}

	c.wg.Add(1)
	go c.consumeLoop(ctx, deliveries)
	c.logger.WithFields(logrus.Fields{
		"exchange": c.cfg.Exchange,
		"queue":    c.cfg.Queue,
		"prefetch": prefetch,
	}).Info("rabbitmq consumer started")
	return nil
}

// Wait blocks until the delivery loop exits.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

// Close stops consumption and releases resources.
func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.wg.Wait()
}

// declareTopology declares the fanout exchange and the shared durable job queue bound to it.
func declareTopology(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if cfg.Queue == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(cfg.Queue, "", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", cfg.Queue, cfg.Exchange, err)
	}
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			log := c.logger.WithField("message_id", delivery.MessageId)
			switch c.handle(ctx, delivery.Body) {
			case outcomeAck:
				if err := delivery.Ack(false); err != nil {
					log.WithError(err).Warn("failed to ack delivery")
				}
			case outcomeRequeue:
				_ = delivery.Nack(false, !delivery.Redelivered)
			case outcomeDrop:
				_ = delivery.Nack(false, false)
			}
		}
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDrop
)

// handle runs one job. Malformed requests are dropped, "no data" is acknowledged and
// failures to store are requeued once.
func (c *Consumer) handle(ctx context.Context, body []byte) outcome {
	var req IngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.logger.WithError(err).Warn("failed to decode ingest request")
		return outcomeDrop
	}
	job, err := req.Parse(c.now())
	if err != nil {
		c.logger.WithError(err).WithField("symbol", req.Symbol).Warn("rejected ingest request")
		return outcomeDrop
	}

	log := c.logger.WithFields(logrus.Fields{
		"class":  job.Class.String(),
		"symbol": job.Symbol,
	})
	records, err := c.loader.Load(ctx, job.Class, job.Symbol, job.From, job.To)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeRequeue
		}
		if errors.Is(err, ingestion.ErrInvalidRequest) {
			log.WithError(err).Warn("rejected ingest request")
			return outcomeDrop
		}
		log.WithError(err).Error("ingest job failed")
		return outcomeRequeue
	}
	log.WithField("records", len(records)).Info("ingest job done")
	return outcomeAck
}
