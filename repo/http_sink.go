package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"RSVPBot/model"

	"github.com/google/uuid"
)

// The sink is posted as text/plain so browser clients sharing the endpoint avoid a preflight.
const sinkContentType = "text/plain;charset=utf-8"

// maxAckBytes caps how much of a sink reply is read; an acknowledgement is a few fields
const maxAckBytes = 64 << 10

// HTTPSink posts each record as JSON to a collection endpoint
type HTTPSink struct {
	URL    string
	Client *http.Client
}

// NewHTTPSink creates a sink for url; a zero timeout waits as long as the transport does
func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Submit sends state and decodes the acknowledgement. Any response whose body is not a JSON
// acknowledgement is reported as an error, the same as a request that never completed.
func (s *HTTPSink) Submit(ctx context.Context, sessionID uuid.UUID, state model.FormState) (model.SubmissionAck, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return model.SubmissionAck{}, fmt.Errorf("error marshaling submission %s: %w", sessionID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return model.SubmissionAck{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", sinkContentType)

	resp, err := s.Client.Do(req)
	if err != nil {
		return model.SubmissionAck{}, fmt.Errorf("%w: %w", model.ErrSinkUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBytes+1))
	if err != nil {
		return model.SubmissionAck{}, fmt.Errorf("%w: error reading response body: %w", model.ErrSinkUnavailable, err)
	}
	if len(raw) > maxAckBytes {
		return model.SubmissionAck{}, fmt.Errorf("%w: status %d: response larger than %d bytes", model.ErrMalformedAck, resp.StatusCode, maxAckBytes)
	}

	var ack model.SubmissionAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return model.SubmissionAck{}, fmt.Errorf("%w: status %d: %w", model.ErrMalformedAck, resp.StatusCode, err)
	}
	return ack, nil
}
