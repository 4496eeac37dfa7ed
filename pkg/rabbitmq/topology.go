package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueSpec names an exchange/queue pair and its dead letter side.
type QueueSpec struct {
	Exchange      string
	Queue         string
	RoutingKey    string
	DLX           string
	DLQ           string
	DLQRoutingKey string
}

var EvaluationQueue = QueueSpec{
	Exchange:      "evaluation_exchange",
	Queue:         "video_evaluation_queue",
	RoutingKey:    "evaluation.request",
	DLX:           "evaluation_exchange_dlx",
	DLQ:           "video_evaluation_queue_dlq",
	DLQRoutingKey: "dlq.evaluation.request",
}

func (s QueueSpec) hasDeadLetter() bool {
	return s.DLX != "" && s.DLQ != ""
}

func declareExchange(ch *amqp.Channel, name, kind string) error {
	return ch.ExchangeDeclare(name, kind, true, false, false, false, nil)
}

// declare creates the exchange, the dead letter pair and the bound work queue.
func declare(ch *amqp.Channel, spec QueueSpec, kind string) error {
	if err := declareExchange(ch, spec.Exchange, kind); err != nil {
		return err
	}

	var args amqp.Table
	if spec.hasDeadLetter() {
		if err := declareExchange(ch, spec.DLX, kind); err != nil {
			return err
		}
		dlq, err := ch.QueueDeclare(spec.DLQ, true, false, false, false, nil)
		if err != nil {
			return err
		}
		if err := ch.QueueBind(dlq.Name, spec.DLQRoutingKey, spec.DLX, false, nil); err != nil {
			return err
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    spec.DLX,
			"x-dead-letter-routing-key": spec.DLQRoutingKey,
		}
	}

	q, err := ch.QueueDeclare(spec.Queue, true, false, false, false, args)
	if err != nil {
		return err
	}
	return ch.QueueBind(q.Name, spec.RoutingKey, spec.Exchange, false, nil)
}
