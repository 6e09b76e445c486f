package events

import (
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Forwarder pushes bus events to a durable broker queue so downstream
// consumers (notifications, reporting) can react without querying the
// store. Publishing is fire-and-forget: failures are logged and never
// reach the caller of the primary operation.
type Forwarder struct {
	url    string
	queue  string
	logger *zerolog.Logger
}

// NewForwarder constructs a Forwarder for the given AMQP endpoint.
func NewForwarder(url, queue string, logger *zerolog.Logger) *Forwarder {
	if queue == "" {
		queue = "seatflow.events"
	}
	return &Forwarder{url: url, queue: queue, logger: logger}
}

// Attach subscribes the forwarder to every event on the bus.
func (f *Forwarder) Attach(bus *Bus) {
	bus.Subscribe("", func(e Event) {
		go f.publish(e)
	})
}

func (f *Forwarder) publish(event Event) {
	conn, err := amqp.Dial(f.url)
	if err != nil {
		f.logger.Error().Err(err).Msg("amqp dial failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		f.logger.Error().Err(err).Msg("amqp channel open failed")
		return
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(f.queue, true, false, false, false, nil); err != nil {
		f.logger.Error().Err(err).Str("queue", f.queue).Msg("amqp queue declare failed")
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		f.logger.Error().Err(err).Msg("marshal event failed")
		return
	}

	err = ch.Publish("", f.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		f.logger.Error().Err(err).Str("type", event.Type).Msg("amqp publish failed")
		return
	}
	f.logger.Debug().Str("type", event.Type).Str("queue", f.queue).Msg("event forwarded")
}
