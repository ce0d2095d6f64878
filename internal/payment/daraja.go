package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderDaraja is the direct STK push provider: the push request goes
// straight to the mobile-money API and the result arrives later on the
// nested result-code callback shape.
const ProviderDaraja = "daraja"

type DarajaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

type DarajaClient struct {
	cfg     DarajaConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*STKAck]

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewDarajaClient(cfg DarajaConfig, client *http.Client) *DarajaClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker[*STKAck](gobreaker.Settings{
		Name:    "daraja-stk",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &DarajaClient{cfg: cfg, client: client, breaker: cb}
}

func (c *DarajaClient) Name() string {
	return ProviderDaraja
}

type darajaPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type darajaPushResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorMessage        string `json:"errorMessage"`
}

func (c *DarajaClient) InitiateSTKPush(ctx context.Context, req STKRequest) (*STKAck, error) {
	return c.breaker.Execute(func() (*STKAck, error) {
		return c.push(ctx, req)
	})
}

func (c *DarajaClient) push(ctx context.Context, req STKRequest) (*STKAck, error) {
	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	now := time.Now()
	timestamp := now.Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))

	body := darajaPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            fmt.Sprintf("%d", wholeUnits(req.Amount)),
		PartyA:            req.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var pushResp darajaPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}

	if pushResp.ResponseCode != "0" {
		detail := pushResp.ResponseDescription
		if detail == "" {
			detail = pushResp.ErrorMessage
		}
		return &STKAck{
			Accepted:     false,
			ProviderCode: pushResp.ResponseCode,
			Detail:       detail,
			ProviderRef:  pushResp.CheckoutRequestID,
		}, nil
	}

	return &STKAck{
		Accepted:     true,
		ProviderCode: pushResp.ResponseCode,
		Detail:       pushResp.CustomerMessage,
		ProviderRef:  pushResp.CheckoutRequestID,
	}, nil
}

type darajaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (c *DarajaClient) accessTokenFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tokenResp darajaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	c.accessToken = tokenResp.AccessToken
	// Tokens last ~an hour; refresh a minute early.
	c.tokenExpiry = time.Now().Add(58 * time.Minute)
	return c.accessToken, nil
}

// wholeUnits converts minor units to the whole-shilling amounts the
// provider expects, rounding up so we never undercharge.
func wholeUnits(minor int64) int64 {
	return (minor + 99) / 100
}
