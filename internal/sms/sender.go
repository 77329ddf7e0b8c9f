package sms

import "context"

// Result is the tri-state delivery verdict reported by the gateway.
type Result string

const (
	ResultDelivered Result = "delivered"
	ResultFailed    Result = "failed"
	ResultPending   Result = "pending"
)

// Outcome carries the gateway verdict for one message.
type Outcome struct {
	Result    Result
	MessageID *string
	Raw       string
}

// Sender dispatches one outbound message. Implementations own delivery and
// any retrying; callers only consume the verdict.
type Sender interface {
	Send(ctx context.Context, phone, message string) (Outcome, error)
}

// NopSender reports every message as delivered without sending anything.
// Used when SMS is disabled in config and in tests.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(ctx context.Context, phone, message string) (Outcome, error) {
	return Outcome{Result: ResultDelivered}, nil
}
