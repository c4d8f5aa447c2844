package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"go.uber.org/zap"
)

// maxTransportBatch is the maximum number of messages per provider request.
const maxTransportBatch = 100

// PushMessage is one provider-bound message addressed to a device token.
type PushMessage struct {
	Token    string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	ImageURL string         `json:"imageUrl,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Sound    string         `json:"sound,omitempty"`
}

// DeliveryReceipt is the per-token provider verdict for one message.
type DeliveryReceipt struct {
	Token     string `json:"token"`
	OK        bool   `json:"ok"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Transient reports whether the failure is worth retrying. Token-level
// rejections are permanent; capacity and availability failures are not.
func (r DeliveryReceipt) Transient() bool {
	switch r.ErrorCode {
	case "rate_limited", "provider_unavailable", "timeout":
		return true
	}
	return false
}

// PushTransport delivers batches of messages to the platform push provider.
// Implementations must return one receipt per message, in order.
type PushTransport interface {
	Send(ctx context.Context, messages []PushMessage) ([]DeliveryReceipt, error)
}

// providerResponse is the provider's batch response envelope.
type providerResponse struct {
	Data []providerTicket `json:"data"`
}

type providerTicket struct {
	Status    string `json:"status"` // "ok" or "error"
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// httpPushTransport implements PushTransport against an HTTP batch endpoint.
type httpPushTransport struct {
	providerURL string
	httpClient  *http.Client
	logger      *zap.SugaredLogger
}

// NewHTTPPushTransport creates a push transport speaking the provider's
// JSON batch protocol.
func NewHTTPPushTransport(providerURL string, timeout time.Duration) PushTransport {
	return &httpPushTransport{
		providerURL: providerURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.GetLogger().Named("push-transport"),
	}
}

func (t *httpPushTransport) Send(ctx context.Context, messages []PushMessage) ([]DeliveryReceipt, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	receipts := make([]DeliveryReceipt, 0, len(messages))
	for i := 0; i < len(messages); i += maxTransportBatch {
		end := i + maxTransportBatch
		if end > len(messages) {
			end = len(messages)
		}
		batch, err := t.sendBatch(ctx, messages[i:end])
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, batch...)
	}
	return receipts, nil
}

func (t *httpPushTransport) sendBatch(ctx context.Context, messages []PushMessage) ([]DeliveryReceipt, error) {
	body, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.providerURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.TransportFailed(err, "push provider request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.logger.Errorw("Push provider returned non-OK status",
			"statusCode", resp.StatusCode,
			"response", string(respBody))
		return nil, apperrors.TransportFailed(nil,
			fmt.Sprintf("push provider returned status %d", resp.StatusCode))
	}

	var providerResp providerResponse
	if err := json.Unmarshal(respBody, &providerResp); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}

	receipts := make([]DeliveryReceipt, len(messages))
	var okCount, errCount int
	for i := range messages {
		receipts[i].Token = messages[i].Token
		if i >= len(providerResp.Data) {
			// Provider returned fewer tickets than messages sent.
			receipts[i].ErrorCode = "missing_ticket"
			errCount++
			continue
		}
		ticket := providerResp.Data[i]
		if ticket.Status == "ok" {
			receipts[i].OK = true
			okCount++
			continue
		}
		receipts[i].ErrorCode = ticket.ErrorCode
		receipts[i].Message = ticket.Message
		if receipts[i].ErrorCode == "" {
			receipts[i].ErrorCode = "provider_error"
		}
		errCount++
		t.logger.Warnw("Push delivery rejected by provider",
			"token", logger.MaskToken(messages[i].Token),
			"errorCode", receipts[i].ErrorCode,
			"message", ticket.Message)
	}

	t.logger.Infow("Push batch processed",
		"total", len(messages),
		"ok", okCount,
		"errors", errCount)
	return receipts, nil
}
