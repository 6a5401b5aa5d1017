package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var _ Transport = (*HTTPTransport)(nil)

// HTTPTransport sends the artifact as a multipart form over HTTP.
type HTTPTransport struct {
	uploadURL string
	client    *http.Client
	logger    *zap.Logger
}

func NewHTTPTransport(uploadURL string, timeout time.Duration, logger *zap.Logger) *HTTPTransport {
	return &HTTPTransport{
		uploadURL: uploadURL,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type uploadResponse struct {
	Accepted bool   `json:"accepted"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Error    string `json:"error"`
}

func (t *HTTPTransport) Deliver(ctx context.Context, req Request) (Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	mapperJSON, err := json.Marshal(req.Mapper)
	if err != nil {
		return Result{}, err
	}

	fields := map[string]string{
		"requestId":  req.CorrelationID,
		"mapper":     string(mapperJSON),
		"webhookUrl": req.WebhookURL,
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return Result{}, err
		}
	}

	part, err := mw.CreateFormFile("csv", req.CorrelationID+".csv")
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(req.CSV); err != nil {
		return Result{}, err
	}
	if err := mw.Close(); err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL, &buf)
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return Result{}, fmt.Errorf("%w: %v", ErrTransportTimeout, err)
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))
		return Result{RejectReason: reason}, fmt.Errorf("%w: %s", ErrTransportRejected, reason)
	}

	var decoded uploadResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		reason := "unparseable response body"
		return Result{RejectReason: reason}, fmt.Errorf("%w: %s", ErrTransportRejected, reason)
	}

	// Explicit acceptance marker required even on 2xx.
	if !decoded.Accepted && !decoded.Success {
		reason := decoded.Message
		if reason == "" {
			reason = decoded.Error
		}
		if reason == "" {
			reason = "no acceptance marker in response"
		}
		return Result{RejectReason: reason}, fmt.Errorf("%w: %s", ErrTransportRejected, reason)
	}

	t.logger.Debug("Delivery accepted over HTTP", zap.String("request_id", req.CorrelationID))
	return Result{Accepted: true}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
