package provider

import (
	"context"
	"fmt"
	"time"

	"loyalty-topup/config"
	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"
)

type qrRequest struct {
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	OrderID       string `json:"orderId"`
	ExpiryMinutes int    `json:"expiryMinutes"`
}

type qrResponse struct {
	TransactionID string `json:"transactionId"`
	QRPayload     string `json:"qrPayload"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
}

// QRClient implements ports.QRIssuer against the payment provider's REST API.
type QRClient struct {
	api      jsonClient
	exponent int32
}

// NewQRClient creates a QR client. Amounts go on the wire in major units.
func NewQRClient(cfg config.HTTPCollaboratorConfig, exponent int32, client HTTPClient) *QRClient {
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	return &QRClient{api: newJSONClient("qr provider", cfg.BaseURL, cfg.APIKey, client), exponent: exponent}
}

// IssueQR asks the provider for a payable QR.
func (c *QRClient) IssueQR(ctx context.Context, req ports.QRRequest) (*ports.QRResult, error) {
	var resp qrResponse
	err := c.api.post(ctx, "/v1/qr", qrRequest{
		Amount:        domain.FormatMinor(req.AmountMinor, c.exponent),
		Currency:      req.Currency,
		OrderID:       req.OrderID,
		ExpiryMinutes: req.ExpiryMinutes,
	}, &resp)
	if err != nil {
		return nil, err
	}

	res := &ports.QRResult{ProviderTransactionID: resp.TransactionID, QRPayload: resp.QRPayload}
	if resp.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, resp.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("qr provider: bad expiresAt %q: %w", resp.ExpiresAt, err)
		}
		res.ExpiresAt = t
	}
	return res, nil
}
