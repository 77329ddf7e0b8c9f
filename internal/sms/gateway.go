package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/vidyahq/fees-api/pkg/config"
)

// GatewayClient talks to an MSG91-style transactional SMS HTTP gateway.
type GatewayClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	senderID   string
	logger     *zap.Logger
}

// NewGatewayClient constructs a gateway client from config.
func NewGatewayClient(cfg config.SMSConfig, logger *zap.Logger) *GatewayClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		senderID:   cfg.SenderID,
		logger:     logger,
	}
}

type gatewayRequest struct {
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Message string `json:"message"`
}

type gatewayResponse struct {
	Status    string  `json:"status"`
	MessageID *string `json:"message_id"`
	Error     string  `json:"error,omitempty"`
}

// Send posts one message to the gateway and maps its verdict. Transport and
// non-2xx failures return an error; a 2xx body with status "failed" is a
// gateway-confirmed failure and comes back as a non-error Outcome.
func (c *GatewayClient) Send(ctx context.Context, phone, message string) (Outcome, error) {
	payload, err := json.Marshal(gatewayRequest{Sender: c.senderID, To: phone, Message: message})
	if err != nil {
		return Outcome{Result: ResultFailed}, fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sms/send", bytes.NewReader(payload))
	if err != nil {
		return Outcome{Result: ResultFailed}, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{Result: ResultFailed}, fmt.Errorf("sms gateway unreachable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Outcome{Result: ResultFailed}, fmt.Errorf("read sms response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{Result: ResultFailed, Raw: string(body)},
			fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Outcome{Result: ResultFailed, Raw: string(body)}, fmt.Errorf("decode sms response: %w", err)
	}

	outcome := Outcome{MessageID: parsed.MessageID, Raw: string(body)}
	switch parsed.Status {
	case "delivered", "sent", "success":
		outcome.Result = ResultDelivered
	case "pending", "queued":
		outcome.Result = ResultPending
	default:
		outcome.Result = ResultFailed
	}
	return outcome, nil
}
