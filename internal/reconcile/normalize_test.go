package reconcile

import (
	"testing"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ResultCodeShape_Success(t *testing.T) {
	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 2500.00},
						{"Name": "MpesaReceiptNumber", "Value": "XYZ999"},
						{"Name": "AccountReference", "Value": "FL-876543-1700000000"}
					]
				}
			}
		}
	}`)

	n, err := Normalize(payment.ProviderDaraja, payload)

	require.NoError(t, err)
	assert.Equal(t, "FL-876543-1700000000", n.Reference)
	assert.True(t, n.IsSuccess)
	assert.Equal(t, "XYZ999", n.ReceiptID)
}

func TestNormalize_ResultCodeShape_Failure(t *testing.T) {
	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`)

	n, err := Normalize(payment.ProviderDaraja, payload)

	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", n.Reference,
		"falls back to the checkout request id when metadata has no reference")
	assert.False(t, n.IsSuccess)
	assert.Empty(t, n.ReceiptID)
}

func TestNormalize_ResultCodeShape_StringCode(t *testing.T) {
	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": "0",
				"ResultDesc": "Processed"
			}
		}
	}`)

	n, err := Normalize(payment.ProviderDaraja, payload)

	require.NoError(t, err)
	assert.True(t, n.IsSuccess, "a string zero code still signals success")
}

func TestNormalize_TransactionStatusShape_Success(t *testing.T) {
	payload := []byte(`{
		"transactionReference": "FL-87654321",
		"transactionStatus": "SUCCESS",
		"responseCode": "00",
		"mpesaReference": "XYZ999"
	}`)

	n, err := Normalize(payment.ProviderBankGate, payload)

	require.NoError(t, err)
	assert.Equal(t, "FL-87654321", n.Reference)
	assert.True(t, n.IsSuccess)
	assert.Equal(t, "XYZ999", n.ReceiptID)
}

func TestNormalize_TransactionStatusShape_Failed(t *testing.T) {
	payload := []byte(`{
		"transactionReference": "FL-87654321",
		"transactionStatus": "Failed",
		"responseCode": "05"
	}`)

	n, err := Normalize(payment.ProviderBankGate, payload)

	require.NoError(t, err)
	assert.False(t, n.IsSuccess)
}

func TestNormalize_ReceiptWithoutFailureTokenIsSuccess(t *testing.T) {
	// Some historical bank callbacks carried neither a status string nor
	// a response code, only the receipt.
	payload := []byte(`{
		"reference": "FL-87654321",
		"receipt": "QWE111"
	}`)

	n, err := Normalize(payment.ProviderBankGate, payload)

	require.NoError(t, err)
	assert.True(t, n.IsSuccess)
	assert.Equal(t, "QWE111", n.ReceiptID)
}

func TestNormalize_ReceiptWithFailureTokenIsNotSuccess(t *testing.T) {
	payload := []byte(`{
		"reference": "FL-87654321",
		"transactionStatus": "Declined by customer",
		"receipt": "QWE111"
	}`)

	n, err := Normalize(payment.ProviderBankGate, payload)

	require.NoError(t, err)
	assert.False(t, n.IsSuccess, "an explicit failure token beats receipt presence")
}

func TestNormalize_NoReference(t *testing.T) {
	_, err := Normalize(payment.ProviderBankGate, []byte(`{"transactionStatus": "SUCCESS"}`))
	assert.ErrorIs(t, err, ErrNoReference)

	_, err = Normalize(payment.ProviderDaraja, []byte(`{"Body": {"stkCallback": {"ResultCode": 0}}}`))
	assert.ErrorIs(t, err, ErrNoReference)
}

func TestNormalize_InvalidJSON(t *testing.T) {
	_, err := Normalize(payment.ProviderDaraja, []byte(`not json at all`))
	assert.ErrorIs(t, err, ErrUnknownShape)
}

func TestNormalize_UnknownProviderDetectsShape(t *testing.T) {
	nested := []byte(`{
		"Body": {
			"stkCallback": {
				"CheckoutRequestID": "ws_CO_2",
				"ResultCode": 0,
				"ResultDesc": "ok"
			}
		}
	}`)
	n, err := Normalize("someslug", nested)
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_2", n.Reference)

	flat := []byte(`{"transactionReference": "FL-1", "transactionStatus": "SUCCESS"}`)
	n, err = Normalize("someslug", flat)
	require.NoError(t, err)
	assert.Equal(t, "FL-1", n.Reference)
}

func TestIsSuccess_CaseInsensitiveTokens(t *testing.T) {
	assert.True(t, isSuccess("Completed", "", ""))
	assert.True(t, isSuccess("PAID", "", ""))
	assert.True(t, isSuccess("payment settled", "", ""))
	assert.False(t, isSuccess("FAILED", "", ""))
	assert.False(t, isSuccess("", "", ""))
}
