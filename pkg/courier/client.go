package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/bazaarlabs/bazaar-backend/pkg/config"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
)

// ShipmentItem is one line of a vendor-grouped shipment request.
type ShipmentItem struct {
	LineItemID  string `json:"line_item_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
}

// CreateShipmentRequest asks the courier to pick up one vendor's portion of
// an order.
type CreateShipmentRequest struct {
	OrderID         string         `json:"order_id"`
	VendorID        string         `json:"vendor_id"`
	RecipientName   string         `json:"recipient_name"`
	RecipientPhone  string         `json:"recipient_phone"`
	DeliveryAddress string         `json:"delivery_address"`
	Items           []ShipmentItem `json:"items"`
}

// ShipmentResult carries the courier's per-group response.
type ShipmentResult struct {
	Success      bool   `json:"success"`
	ConsignmentRef string `json:"consignment_ref"`
	Message      string `json:"message"`
}

// Client talks to the courier's REST API with bounded retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	logg       *logger.Logger
}

// NewClient builds a courier client from configuration.
func NewClient(cfg config.CourierConfig, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("courier base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("courier api key is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: uint64(retries),
		logg:       logg,
	}, nil
}

// CreateShipment requests a shipment for one vendor group. Transport and
// 5xx failures are retried with fibonacci backoff; 4xx responses fail fast.
func (c *Client) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*ShipmentResult, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment requires at least one item")
	}
	var result *ShipmentResult
	err := c.withRetry(ctx, func(ctx context.Context) error {
		res, err := c.post(ctx, "/api/v1/shipments", req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.Success || result.ConsignmentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("courier rejected shipment: %s", result.Message))
	}
	return result, nil
}

// CancelShipment asks the courier to cancel the consignment reference.
func (c *Client) CancelShipment(ctx context.Context, consignmentRef string) error {
	if strings.TrimSpace(consignmentRef) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "consignment ref is required")
	}
	return c.withRetry(ctx, func(ctx context.Context) error {
		_, err := c.post(ctx, fmt.Sprintf("/api/v1/shipments/%s/cancel", consignmentRef), nil)
		return err
	})
}

func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if pkgerrors.IsRetryable(err) {
			if c.logg != nil {
				c.logg.Warn(ctx, fmt.Sprintf("courier call failed, retrying: %v", err))
			}
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) (*ShipmentResult, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode courier request")
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build courier request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "courier unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read courier response")
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("courier returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("courier rejected request (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var result ShipmentResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode courier response")
		}
	}
	return &result, nil
}
