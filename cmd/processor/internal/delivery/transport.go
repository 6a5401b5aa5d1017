package delivery

import (
	"context"
	"errors"
)

var (
	ErrTransportTimeout  = errors.New("delivery transport timed out")
	ErrTransportRejected = errors.New("delivery rejected by downstream")
)

// Request is one artifact handed to the downstream ingestion service.
type Request struct {
	CorrelationID string
	Mapper        map[string]string
	WebhookURL    string
	CSV           []byte
}

// Result is the synchronous answer of a transport call. Acceptance only
// means "accepted for processing"; the durable outcome arrives later via
// the confirmation webhook.
type Result struct {
	Accepted     bool
	RejectReason string
}

// Transport is the delivery capability. Implementations are stateless
// across calls; the variant is chosen at construction time.
type Transport interface {
	Deliver(ctx context.Context, req Request) (Result, error)
}
