package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderBankGate is the bank-mediated STK push provider: the bank
// forwards the push to the mobile-money network and reports the result on
// the flat transaction-status callback shape.
const ProviderBankGate = "bankgate"

type BankGateConfig struct {
	BaseURL      string
	APIKey       string
	MerchantCode string
	SigningKey   string
	CallbackURL  string
}

type BankGateClient struct {
	cfg     BankGateConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*STKAck]
}

func NewBankGateClient(cfg BankGateConfig, client *http.Client) *BankGateClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker[*STKAck](gobreaker.Settings{
		Name:    "bankgate-stk",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &BankGateClient{cfg: cfg, client: client, breaker: cb}
}

func (c *BankGateClient) Name() string {
	return ProviderBankGate
}

type bankGatePushRequest struct {
	MerchantCode         string `json:"merchantCode"`
	TransactionReference string `json:"transactionReference"`
	Amount               int64  `json:"amount"`
	Currency             string `json:"currency"`
	PhoneNumber          string `json:"phoneNumber"`
	Description          string `json:"description"`
	CallbackURL          string `json:"callbackUrl"`
}

type bankGatePushResponse struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
}

func (c *BankGateClient) InitiateSTKPush(ctx context.Context, req STKRequest) (*STKAck, error) {
	return c.breaker.Execute(func() (*STKAck, error) {
		return c.push(ctx, req)
	})
}

func (c *BankGateClient) push(ctx context.Context, req STKRequest) (*STKAck, error) {
	body := bankGatePushRequest{
		MerchantCode:         c.cfg.MerchantCode,
		TransactionReference: req.Reference,
		Amount:               wholeUnits(req.Amount),
		Currency:             "KES",
		PhoneNumber:          req.Phone,
		Description:          req.Description,
		CallbackURL:          c.cfg.CallbackURL,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/v1/payments/stk", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.cfg.APIKey)
	httpReq.Header.Set("X-Signature", c.sign(payload))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var pushResp bankGatePushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}

	accepted := pushResp.ResponseCode == "00" || pushResp.ResponseCode == "0"
	return &STKAck{
		Accepted:     accepted,
		ProviderCode: pushResp.ResponseCode,
		Detail:       pushResp.ResponseMessage,
	}, nil
}

func (c *BankGateClient) sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SigningKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
