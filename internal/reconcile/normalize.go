package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/payment"
)

var (
	ErrNoReference  = errors.New("callback carries no extractable reference")
	ErrUnknownShape = errors.New("callback payload shape not recognised")
)

// Normalized is the provider-independent view of a callback: which
// payment it talks about, whether it reports success, and the receipt if
// one was issued.
type Normalized struct {
	Reference string
	IsSuccess bool
	ReceiptID string
	RawStatus string
}

// Normalizer maps one provider's raw payload into the common tuple.
type Normalizer func(payload []byte) (*Normalized, error)

var normalizers = map[string]Normalizer{
	payment.ProviderDaraja:   normalizeResultCodeShape,
	payment.ProviderBankGate: normalizeTransactionStatusShape,
}

// Normalize picks the normalizer registered for the provider slug. An
// unknown slug falls back to shape detection so a misrouted but
// well-formed callback is still processed.
func Normalize(provider string, payload []byte) (*Normalized, error) {
	if n, ok := normalizers[provider]; ok {
		return n(payload)
	}
	return detectAndNormalize(payload)
}

func detectAndNormalize(payload []byte) (*Normalized, error) {
	var probe struct {
		Body *json.RawMessage `json:"Body"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownShape, err)
	}
	if probe.Body != nil {
		return normalizeResultCodeShape(payload)
	}
	return normalizeTransactionStatusShape(payload)
}

var successTokens = []string{"success", "completed", "paid", "settled"}

var failureTokens = []string{"failed", "failure", "cancelled", "canceled",
	"declined", "insufficient", "timeout", "error"}

// isSuccess applies the shared success policy: an explicit success token,
// a zero response code, or (as a fallback) a receipt with no explicit
// failure signal.
func isSuccess(rawStatus, code, receiptID string) bool {
	status := strings.ToLower(rawStatus)
	for _, token := range successTokens {
		if strings.Contains(status, token) {
			return true
		}
	}
	if code == "0" || code == "00" {
		return true
	}
	if receiptID == "" {
		return false
	}
	for _, token := range failureTokens {
		if strings.Contains(status, token) {
			return false
		}
	}
	return true
}

// resultCodeShape is the nested callback the direct STK provider sends:
// status lives in Body.stkCallback.ResultCode and the receipt in the
// callback metadata items.
type resultCodeShape struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string          `json:"MerchantRequestID"`
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        json.RawMessage `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func normalizeResultCodeShape(payload []byte) (*Normalized, error) {
	var shape resultCodeShape
	if err := json.Unmarshal(payload, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownShape, err)
	}

	cb := shape.Body.StkCallback
	code := rawToString(cb.ResultCode)

	var reference, receipt string
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "AccountReference", "BillRefNumber":
			reference = rawToString(item.Value)
		case "MpesaReceiptNumber":
			receipt = rawToString(item.Value)
		}
	}
	// Older callbacks carry no account reference in the metadata; the
	// checkout request ID was logged on the order at initiation time and
	// resolves through the notes tier.
	if reference == "" {
		reference = cb.CheckoutRequestID
	}
	if reference == "" {
		return nil, ErrNoReference
	}

	return &Normalized{
		Reference: reference,
		IsSuccess: isSuccess(cb.ResultDesc, code, receipt),
		ReceiptID: receipt,
		RawStatus: fmt.Sprintf("code=%s desc=%s", code, cb.ResultDesc),
	}, nil
}

// transactionStatusShape is the flat callback the bank-mediated provider
// sends.
type transactionStatusShape struct {
	TransactionReference string          `json:"transactionReference"`
	Reference            string          `json:"reference"`
	TransactionStatus    string          `json:"transactionStatus"`
	Status               string          `json:"status"`
	ResponseCode         json.RawMessage `json:"responseCode"`
	MpesaReference       string          `json:"mpesaReference"`
	Receipt              string          `json:"receipt"`
}

func normalizeTransactionStatusShape(payload []byte) (*Normalized, error) {
	var shape transactionStatusShape
	if err := json.Unmarshal(payload, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownShape, err)
	}

	reference := shape.TransactionReference
	if reference == "" {
		reference = shape.Reference
	}
	if reference == "" {
		return nil, ErrNoReference
	}

	rawStatus := shape.TransactionStatus
	if rawStatus == "" {
		rawStatus = shape.Status
	}
	receipt := shape.MpesaReference
	if receipt == "" {
		receipt = shape.Receipt
	}
	code := rawToString(shape.ResponseCode)

	return &Normalized{
		Reference: reference,
		IsSuccess: isSuccess(rawStatus, code, receipt),
		ReceiptID: receipt,
		RawStatus: fmt.Sprintf("status=%s code=%s", rawStatus, code),
	}, nil
}

// rawToString renders a JSON scalar that providers send inconsistently as
// either a string or a number.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
