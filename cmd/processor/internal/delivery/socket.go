package delivery

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

// Frames larger than this are treated as protocol errors.
const maxFrameSize = 64 * 1024 * 1024

var _ Transport = (*SocketTransport)(nil)

// SocketTransport frames the artifact over a raw TCP connection:
// [u32 BE header length][JSON header][raw CSV bytes]. The reply uses the
// same framing. One fresh connection per delivery, attempted once; a retry
// is a new delivery call, never resumption of a half-sent frame.
type SocketTransport struct {
	addr    string
	timeout time.Duration
	logger  *zap.Logger
}

func NewSocketTransport(addr string, timeout time.Duration, logger *zap.Logger) *SocketTransport {
	return &SocketTransport{addr: addr, timeout: timeout, logger: logger}
}

type frameHeader struct {
	RequestID  string            `json:"requestId"`
	Mapper     map[string]string `json:"mapper"`
	WebhookURL string            `json:"webhookUrl"`
}

type frameReply struct {
	Accepted bool   `json:"accepted"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Error    string `json:"error"`
}

func (t *SocketTransport) Deliver(ctx context.Context, req Request) (Result, error) {
	header, err := json.Marshal(frameHeader{
		RequestID:  req.CorrelationID,
		Mapper:     req.Mapper,
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		return Result{}, err
	}

	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return Result{RejectReason: err.Error()}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(t.timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return Result{RejectReason: err.Error()}, err
	}

	if err := writeFrame(conn, header, req.CSV); err != nil {
		return Result{RejectReason: err.Error()}, err
	}
	// Half-close the write side so the peer sees end of request.
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.CloseWrite(); err != nil {
			t.logger.Debug("CloseWrite failed", zap.Error(err))
		}
	}

	replyBody, err := readFrame(conn)
	if err != nil {
		if isTimeout(err) {
			return Result{RejectReason: "response timeout"}, fmt.Errorf("%w: %v", ErrTransportTimeout, err)
		}
		return Result{RejectReason: err.Error()}, err
	}

	var reply frameReply
	if err := json.Unmarshal(replyBody, &reply); err != nil {
		return Result{RejectReason: "unparseable reply frame"}, err
	}

	if !reply.Accepted && !reply.Success {
		reason := reply.Message
		if reason == "" {
			reason = reply.Error
		}
		return Result{RejectReason: reason}, fmt.Errorf("%w: %s", ErrTransportRejected, reason)
	}

	t.logger.Debug("Delivery accepted over socket", zap.String("request_id", req.CorrelationID))
	return Result{Accepted: true}, nil
}

// writeFrame emits [u32 BE len(header)][header][payload].
func writeFrame(w io.Writer, header, payload []byte) error {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(header)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame accumulates bytes until the full declared frame has arrived;
// a single read is not guaranteed to deliver a whole frame.
func readFrame(r io.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(size[:])
	if length == 0 || length > maxFrameSize {
		return nil, fmt.Errorf("invalid frame length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
