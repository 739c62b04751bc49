package activity

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"healthnexus-portal/internal/config"
)

// AMQPSource records activity that other services publish to a RabbitMQ
// fanout exchange, one JSON object {type, message, ts} per delivery.
type AMQPSource struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	cfg      config.RabbitMqConfig
	recorder *Recorder
	log      *logrus.Entry
}

// NewAMQPSource connects to the broker. It returns nil, nil when RabbitMQ is
// not configured.
func NewAMQPSource(cfg config.RabbitMqConfig, recorder *Recorder, logger *logrus.Logger) (*AMQPSource, error) {
	log := logger.WithField("component", "activity-amqp")
	if !cfg.Enabled {
		log.Info("RabbitMQ is disabled, activity source will not be started")
		return nil, nil
	}

	conn, err := amqp.Dial(cfg.AmqpUri)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	return &AMQPSource{conn: conn, channel: channel, cfg: cfg, recorder: recorder, log: log}, nil
}

// Start declares the exchange and queue and consumes until ctx is done or the
// broker closes the delivery channel.
func (s *AMQPSource) Start(ctx context.Context) error {
	err := s.channel.ExchangeDeclare(
		s.cfg.Exchange, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", s.cfg.Exchange, err)
	}

	// An unnamed queue is private to this process and goes away with it.
	exclusive := s.cfg.Queue == ""
	queue, err := s.channel.QueueDeclare(
		s.cfg.Queue, // name
		!exclusive,  // durable
		exclusive,   // delete when unused
		exclusive,   // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := s.channel.QueueBind(queue.Name, "", s.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}

	deliveries, err := s.channel.Consume(
		queue.Name, // queue
		"",         // consumer
		false,      // auto-ack
		exclusive,  // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.Name, err)
	}

	s.log.WithFields(logrus.Fields{"exchange": s.cfg.Exchange, "queue": queue.Name}).Info("consuming activity events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			s.handle(ctx, d)
		}
	}
}

func (s *AMQPSource) handle(ctx context.Context, d amqp.Delivery) {
	var msg message
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.Message == "" {
		s.log.WithField("body", string(d.Body)).Warn("dropping malformed activity message")
		d.Nack(false, false)
		return
	}
	ts, _ := parseTS(msg.TS)
	s.recorder.RecordAt(ctx, ParseType(msg.Type), ts, msg.Message)
	d.Ack(false)
}

func (s *AMQPSource) Close() error {
	if err := s.channel.Close(); err != nil {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}
