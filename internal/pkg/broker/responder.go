package broker

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/streadway/amqp"
)

// HandlerFunc processes one RPC request body and returns the reply body.
// The returned bytes are sent verbatim to the caller's reply queue.
type HandlerFunc func(ctx context.Context, body []byte) []byte

// Responder consumes a well-known queue bound to the rpc exchange and
// answers requests one at a time. prefetch=1 keeps a slow handler from
// buffering unbounded in-flight work.
type Responder struct {
	config     Config
	routingKey string
}

// NewResponder creates a responder for the given procedure routing key.
func NewResponder(config Config, routingKey string) *Responder {
	return &Responder{config: config, routingKey: routingKey}
}

// Serve blocks consuming requests until the context is canceled or the
// connection drops. The original message is acknowledged only after the
// reply has been published, so a crash mid-handling redelivers the
// request instead of losing it.
func (r *Responder) Serve(ctx context.Context, handler HandlerFunc) error {
	conn, ch, err := dial(r.config)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err = ensureDirectExchange(conn, ch, RPCExchange)
	if err != nil {
		return err
	}

	queue := RPCExchange + "." + r.routingKey
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(queue, r.routingKey, RPCExchange, false, nil); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Infof("[RPC] Responder listening on %s", queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errReplyChannelClosed
			}
			reply := handler(ctx, d.Body)

			err := ch.Publish("", d.ReplyTo, false, false, amqp.Publishing{
				ContentType:   "application/json",
				CorrelationId: d.CorrelationId,
				Body:          reply,
			})
			if err != nil {
				log.Errorf("[RPC] Could not publish reply for %s: %v", d.CorrelationId, err)
				// Leave the request unacked so the broker redelivers it.
				continue
			}
			if err := d.Ack(false); err != nil {
				log.Errorf("[RPC] Ack failed for %s: %v", d.CorrelationId, err)
			}
		}
	}
}
