package delivery

import (
	"context"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/ratelimit"
)

var _ Transport = (*RetryingTransport)(nil)

// RetryingTransport runs an inner transport through the retry executor.
// Used with the buffered HTTP transport; the framed socket transport is
// attempted once per delivery and is not wrapped.
type RetryingTransport struct {
	inner Transport
	exec  *ratelimit.Executor
}

func WithRetry(inner Transport, exec *ratelimit.Executor) *RetryingTransport {
	return &RetryingTransport{inner: inner, exec: exec}
}

func (t *RetryingTransport) Deliver(ctx context.Context, req Request) (Result, error) {
	var res Result
	err := t.exec.Do(ctx, "delivery", func(ctx context.Context) error {
		var derr error
		res, derr = t.inner.Deliver(ctx, req)
		return derr
	})
	return res, err
}
