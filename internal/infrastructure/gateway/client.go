// Package gateway implements the HTTP client for the external payment
// gateway. The contract is small: create a payment session, verify a
// completed one, refund. Result code 100 means success; everything else is
// failure and the core does not interpret it further.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/soukmarket/settlement/internal/application"
	"github.com/soukmarket/settlement/internal/config"
)

type HTTPGatewayClient struct {
	baseURL     string
	merchantKey string
	httpClient  *http.Client
}

func NewGatewayClient(cfg config.GatewayConfig) application.GatewayClient {
	return &HTTPGatewayClient{
		baseURL:     cfg.BaseURL,
		merchantKey: cfg.MerchantKey,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

func (c *HTTPGatewayClient) CreatePayment(ctx context.Context, req application.CreatePaymentRequest) (*application.CreatePaymentResponse, error) {
	url := fmt.Sprintf("%s/v1/request", c.baseURL)
	return sendRequest[application.CreatePaymentRequest, application.CreatePaymentResponse](c, ctx, url, &req)
}

type verifyRequest struct {
	TrackID string `json:"trackId"`
}

func (c *HTTPGatewayClient) VerifyPayment(ctx context.Context, trackID string) (*application.VerifyPaymentResponse, error) {
	url := fmt.Sprintf("%s/v1/verify", c.baseURL)
	req := verifyRequest{TrackID: trackID}
	return sendRequest[verifyRequest, application.VerifyPaymentResponse](c, ctx, url, &req)
}

func (c *HTTPGatewayClient) Refund(ctx context.Context, req application.RefundRequest) (*application.RefundResponse, error) {
	url := fmt.Sprintf("%s/v1/refund", c.baseURL)
	return sendRequest[application.RefundRequest, application.RefundResponse](c, ctx, url, &req)
}

func sendRequest[Req any, Resp any](c *HTTPGatewayClient, ctx context.Context, url string, reqBody *Req) (*Resp, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.merchantKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var gwErr gatewayErrorResponse
		if err := json.Unmarshal(body, &gwErr); err != nil {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, &GatewayError{
			Result:     gwErr.Result,
			Message:    gwErr.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var gwResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&gwResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &gwResp, nil
}
