package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// HTTPConfig points the client at the processor's REST API.
type HTTPConfig struct {
	BaseURL    string
	MerchantID string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
}

// HTTPGateway talks JSON to the processor. Any transport failure, timeout or 5xx is reported
// as payment.ErrUnavailable because the charge may or may not have happened.
type HTTPGateway struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPGateway(cfg HTTPConfig, client *http.Client) (*HTTPGateway, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gateway: base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("gateway: base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPGateway{cfg: cfg, client: client}, nil
}

type clientTokenResponse struct {
	ClientToken string `json:"client_token"`
}

type saleRequest struct {
	Amount             string      `json:"amount"`
	PaymentMethodNonce string      `json:"payment_method_nonce"`
	OrderID            string      `json:"order_id,omitempty"`
	Options            saleOptions `json:"options"`
}

type saleOptions struct {
	SubmitForSettlement bool `json:"submit_for_settlement"`
}

type transaction struct {
	ID                     string `json:"id"`
	Status                 string `json:"status"`
	Amount                 string `json:"amount"`
	OrderID                string `json:"order_id"`
	ProcessorResponseText  string `json:"processor_response_text"`
	GatewayRejectionReason string `json:"gateway_rejection_reason"`
}

type saleResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Transaction *transaction `json:"transaction"`
}

type searchResponse struct {
	Transactions []transaction `json:"transactions"`
}

func (g *HTTPGateway) ClientToken(ctx context.Context) (string, error) {
	var out clientTokenResponse
	if _, err := g.do(ctx, http.MethodPost, "/merchants/"+url.PathEscape(g.cfg.MerchantID)+"/client_token", struct{}{}, &out); err != nil {
		return "", err
	}
	if out.ClientToken == "" {
		return "", fmt.Errorf("%w: empty client token", payment.ErrUnavailable)
	}
	return out.ClientToken, nil
}

func (g *HTTPGateway) Authorize(ctx context.Context, req payment.AuthorizeRequest) (payment.Authorization, error) {
	if err := req.Validate(); err != nil {
		return payment.Authorization{}, err
	}
	body := saleRequest{
		Amount:             payment.FormatAmount(req.Amount),
		PaymentMethodNonce: req.Nonce,
		OrderID:            req.Reference,
		Options:            saleOptions{SubmitForSettlement: true},
	}

	var out saleResponse
	status, err := g.do(ctx, http.MethodPost, "/merchants/"+url.PathEscape(g.cfg.MerchantID)+"/transactions/sale", body, &out)
	if err != nil && status < 400 {
		return payment.Authorization{}, err
	}
	if status >= 400 && status != http.StatusUnprocessableEntity && status != http.StatusPaymentRequired {
		return payment.Authorization{}, err
	}

	auth := payment.Authorization{Success: out.Success && out.Transaction != nil}
	if out.Transaction != nil {
		auth.TransactionID = out.Transaction.ID
		auth.Status = out.Transaction.Status
		auth.Amount, _ = decimal.NewFromString(out.Transaction.Amount)
	}
	if !auth.Success {
		auth.DeclineReason = declineReason(out)
		return auth, &payment.DeclineError{Reason: auth.DeclineReason, TransactionID: auth.TransactionID}
	}
	return auth, nil
}

func (g *HTTPGateway) FindByReference(ctx context.Context, reference string) (payment.Authorization, error) {
	var out searchResponse
	path := "/merchants/" + url.PathEscape(g.cfg.MerchantID) + "/transactions?order_id=" + url.QueryEscape(reference)
	if _, err := g.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return payment.Authorization{}, err
	}
	for _, tx := range out.Transactions {
		if !settledOrAuthorized(tx.Status) {
			continue
		}
		amount, _ := decimal.NewFromString(tx.Amount)
		return payment.Authorization{TransactionID: tx.ID, Success: true, Status: tx.Status, Amount: amount}, nil
	}
	return payment.Authorization{}, payment.ErrNotFound
}

// do sends one request. The returned status is 0 when no response arrived.
func (g *HTTPGateway) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("gateway: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(g.cfg.PublicKey, g.cfg.PrivateKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", payment.ErrUnavailable, method, path, unwrapTimeout(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("%w: %s %s: status %d", payment.ErrUnavailable, method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("%w: decode response: %w", payment.ErrUnavailable, err)
		}
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("gateway: %s %s: status %d", method, path, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func declineReason(out saleResponse) string {
	if out.Transaction != nil {
		if out.Transaction.ProcessorResponseText != "" {
			return out.Transaction.ProcessorResponseText
		}
		if out.Transaction.GatewayRejectionReason != "" {
			return out.Transaction.GatewayRejectionReason
		}
	}
	if out.Message != "" {
		return out.Message
	}
	return "declined"
}

func settledOrAuthorized(status string) bool {
	switch status {
	case "authorized", "submitted_for_settlement", "settling", "settled":
		return true
	}
	return false
}

func unwrapTimeout(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return context.DeadlineExceeded
	}
	return err
}
