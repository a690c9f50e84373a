package iyzico

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Base URLs for the two gateway environments.
const (
	SandboxBaseURL    = "https://sandbox-api.iyzipay.com"
	ProductionBaseURL = "https://api.iyzipay.com"
)

// API endpoints.
const (
	endpointInitThreeDS     = "/payment/3dsecure/initialize"
	endpointCompleteThreeDS = "/payment/3dsecure/auth"
	endpointRetrieve        = "/payment/detail"
	endpointRetrieveByToken = "/payment/iyzipos/checkoutform/auth/ecom/detail"
	endpointInstallmentInfo = "/payment/iyzipos/installment"
)

const defaultTimeout = 30 * time.Second

// maxResponseSize is the maximum allowed response body size (10MB).
const maxResponseSize = 10 * 1024 * 1024

// Config holds iyzico client configuration.
type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	Debug     bool
}

// Client is the HTTP client for the iyzico payment gateway. Every call is
// signed per request; there is no session state and no retry loop, as payment
// calls must not be replayed blindly.
type Client struct {
	httpClient *http.Client
	apiKey     string
	secretKey  string
	baseURL    string
	debug      bool
}

// NewClient constructs an iyzico client with sane defaults.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		baseURL:    baseURL,
		debug:      cfg.Debug,
	}
}

// InitThreeDS starts a 3D Secure payment and returns the redirect artifact.
func (c *Client) InitThreeDS(ctx context.Context, req *InitThreeDSRequest) (*InitThreeDSResponse, error) {
	var resp InitThreeDSResponse
	if err := c.doRequest(ctx, endpointInitThreeDS, req, &resp); err != nil {
		return nil, err
	}
	if IsSuccess(resp.Status) && resp.PaymentID == "" && resp.ThreeDSHTMLContent == "" {
		return nil, &ProtocolError{Op: endpointInitThreeDS, Reason: "success response missing paymentId and redirect content"}
	}
	return &resp, nil
}

// CompleteThreeDS finishes a 3DS payment server-to-server after the browser
// callback. This is the authoritative confirmation call.
func (c *Client) CompleteThreeDS(ctx context.Context, req *CompleteThreeDSRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := c.doRequest(ctx, endpointCompleteThreeDS, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetrievePayment queries the payment detail endpoint.
func (c *Client) RetrievePayment(ctx context.Context, req *RetrievePaymentRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := c.doRequest(ctx, endpointRetrieve, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetrieveByToken completes a flow through the browser-supplied token.
func (c *Client) RetrieveByToken(ctx context.Context, req *RetrieveByTokenRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := c.doRequest(ctx, endpointRetrieveByToken, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InstallmentInfo runs a harmless installment lookup. Useful as a credential
// and signing probe since it never charges anything.
func (c *Client) InstallmentInfo(ctx context.Context, req *InstallmentInfoRequest) (*InstallmentInfoResponse, error) {
	var resp InstallmentInfoResponse
	if err := c.doRequest(ctx, endpointInstallmentInfo, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doRequest performs the signed HTTP POST and decodes the JSON response into
// result. The gateway returns embedded status even on non-2xx answers, so the
// body is decoded regardless of the HTTP status code.
func (c *Client) doRequest(ctx context.Context, uriPath string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// The signature covers the exact payload bytes sent on the wire.
	randomKey := NewRandomKey(time.Now())
	authorization, err := BuildAuthorizationHeader(c.apiKey, c.secretKey, randomKey, uriPath, payload)
	if err != nil {
		return err
	}

	if c.debug {
		log.Debug().
			Str("endpoint", c.baseURL+uriPath).
			RawJSON("request", maskForLog(payload)).
			Msg("[IYZICO] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uriPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)
	req.Header.Set("x-iyzi-rnd", randomKey)
	req.Header.Set("x-iyzi-client-version", clientVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: uriPath, Err: err}
	}
	defer resp.Body.Close()

	limitedReader := io.LimitReader(resp.Body, maxResponseSize)
	respBody, err := io.ReadAll(limitedReader)
	if err != nil {
		return &TransportError{Op: uriPath, Err: err}
	}

	if c.debug {
		log.Debug().
			Str("endpoint", uriPath).
			Int("status_code", resp.StatusCode).
			RawJSON("response", maskForLog(respBody)).
			Msg("[IYZICO] Incoming response")
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &ProtocolError{Op: uriPath, Reason: fmt.Sprintf("undecodable response (http %d): %v", resp.StatusCode, err)}
	}
	return nil
}

// maskForLog redacts card data from a JSON payload before it reaches the
// debug log. The wire payload is never modified.
func maskForLog(data []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return []byte(`{"_error": "failed to parse for masking"}`)
	}

	maskMap(obj)

	masked, err := json.Marshal(obj)
	if err != nil {
		return []byte(`{"_error": "failed to marshal masked data"}`)
	}
	return masked
}

// maskMap recursively redacts sensitive card fields in place.
func maskMap(obj map[string]any) {
	for key, value := range obj {
		switch strings.ToLower(key) {
		case "cardnumber":
			if s, ok := value.(string); ok {
				obj[key] = MaskPAN(s)
			}
		case "cvc", "cvv":
			obj[key] = "***"
		}
		if nested, ok := value.(map[string]any); ok {
			maskMap(nested)
		}
	}
}

// MaskPAN keeps only the last 4 digits of a card number.
func MaskPAN(pan string) string {
	if len(pan) <= 4 {
		return strings.Repeat("*", len(pan))
	}
	return strings.Repeat("*", len(pan)-4) + pan[len(pan)-4:]
}
