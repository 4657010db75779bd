package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

const (
	// RPCExchange is the direct exchange carrying request/reply calls.
	RPCExchange = "rpc"

	// replyToQueue is the broker-provided pseudo-queue for direct
	// replies, scoped to the consuming connection.
	replyToQueue = "amq.rabbitmq.reply-to"
)

// Error kinds reported by Call. Timeout is distinguished from broker
// failures so callers can tell "server too slow" apart from protocol
// problems.
const (
	ErrKindTimeout  = "timeout"
	ErrKindAMQP     = "amqp_error"
	ErrKindBadReply = "bad_reply"
)

var errReplyChannelClosed = errors.New("reply channel closed")

// Response is the outcome of a synchronous broker call.
type Response struct {
	OK        bool            `json:"ok"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorKind string          `json:"errorKind,omitempty"`
	Detail    string          `json:"detail,omitempty"`
}

// RPCClient layers a synchronous call pattern over the asynchronous
// broker. Every call opens its own connection and closes it on every
// exit path; nothing is shared across calls.
type RPCClient struct {
	config Config
}

// NewRPCClient creates an RPC client for the given broker.
func NewRPCClient(config Config) *RPCClient {
	return &RPCClient{config: config}
}

// Call publishes a request to the rpc exchange under the procedure name
// and waits for the matching reply on the connection-scoped reply
// pseudo-queue. It returns within timeout or reports ErrKindTimeout.
func (c *RPCClient) Call(ctx context.Context, procedure string, body any, timeout time.Duration) Response {
	raw, err := json.Marshal(body)
	if err != nil {
		return Response{ErrorKind: ErrKindBadReply, Detail: "request does not serialize: " + err.Error()}
	}

	conn, ch, err := dial(c.config)
	if err != nil {
		return Response{ErrorKind: ErrKindAMQP, Detail: err.Error()}
	}
	defer conn.Close()

	ch, err = ensureDirectExchange(conn, ch, RPCExchange)
	if err != nil {
		return Response{ErrorKind: ErrKindAMQP, Detail: err.Error()}
	}

	// The reply consumer must be registered before the request goes out:
	// direct replies are dropped when nobody consumes the pseudo-queue.
	deliveries, err := ch.Consume(replyToQueue, "", true, false, false, false, nil)
	if err != nil {
		return Response{ErrorKind: ErrKindAMQP, Detail: err.Error()}
	}

	correlationID := uuid.NewString()

	err = ch.Publish(RPCExchange, procedure, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       replyToQueue,
		Body:          raw,
	})
	if err != nil {
		return Response{ErrorKind: ErrKindAMQP, Detail: err.Error()}
	}

	reply, err := awaitReply(ctx, deliveries, correlationID, timeout)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			log.Warnf("[RPC] %s timed out after %s", procedure, timeout)
			return Response{ErrorKind: ErrKindTimeout, Detail: "no reply for " + procedure}
		default:
			return Response{ErrorKind: ErrKindAMQP, Detail: err.Error()}
		}
	}

	if !json.Valid(reply) {
		return Response{ErrorKind: ErrKindBadReply, Detail: "reply is not valid JSON"}
	}
	return Response{OK: true, Result: reply}
}

// awaitReply drains the deliveries channel until a message carrying the
// expected correlation id arrives or the timeout elapses. The pseudo-queue
// is connection-scoped so cross-talk is unlikely, but the library routes
// by queue, not by id, so the check stays explicit.
func awaitReply(ctx context.Context, deliveries <-chan amqp.Delivery, correlationID string, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return nil, errReplyChannelClosed
			}
			if d.CorrelationId != correlationID {
				log.Warnf("[RPC] Ignoring reply with foreign correlation id %s", d.CorrelationId)
				continue
			}
			return d.Body, nil
		case <-timer.C:
			return nil, context.DeadlineExceeded
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// LoginResult is the reply shape of the users.login procedure.
type LoginResult struct {
	OK    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

// VerifyCredentials performs the synchronous credential check against the
// users service. The zero LoginResult with Error set is returned on any
// transport failure, carrying the error kind.
func (c *RPCClient) VerifyCredentials(ctx context.Context, email, password string, timeout time.Duration) LoginResult {
	resp := c.Call(ctx, "users.login", map[string]string{
		"email":    email,
		"password": password,
	}, timeout)

	if !resp.OK {
		return LoginResult{OK: false, Error: resp.ErrorKind}
	}

	var result LoginResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return LoginResult{OK: false, Error: ErrKindBadReply}
	}
	return result
}
