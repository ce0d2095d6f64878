package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/payment"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRepository implements repository.OrderRepository for testing.
type MockRepository struct {
	mu sync.Mutex

	Orders  []*domain.Order
	ListErr error

	UpdateErr     error
	UpdatedID     uuid.UUID
	UpdatedStatus domain.OrderStatus
	UpdatedCalls  int
	Receipt       *string

	Notes []string
}

func (m *MockRepository) CreateOrder(context.Context, *domain.Order) error { return nil }

func (m *MockRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	for _, o := range m.Orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockRepository) ListOrders(context.Context, repository.ListFilter) ([]*domain.Order, error) {
	return m.Orders, m.ListErr
}

func (m *MockRepository) SetPaymentReference(context.Context, uuid.UUID, string) error {
	return nil
}

func (m *MockRepository) UpdatePayment(_ context.Context, id uuid.UUID, status domain.OrderStatus, receiptID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.UpdatedID = id
	m.UpdatedStatus = status
	m.Receipt = receiptID
	m.UpdatedCalls++
	return nil
}

func (m *MockRepository) AppendNote(_ context.Context, _ uuid.UUID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notes = append(m.Notes, note)
	return nil
}

func (m *MockRepository) ListStalePending(context.Context, time.Time) ([]*domain.Order, error) {
	return nil, nil
}

func (m *MockRepository) Close() error { return nil }

// MockNotifier records sends on a channel so async dispatch can be awaited.
type MockNotifier struct {
	sent chan string
	err  error
}

func newMockNotifier() *MockNotifier {
	return &MockNotifier{sent: make(chan string, 1)}
}

func (m *MockNotifier) Send(_ context.Context, _, _, recipient string) error {
	m.sent <- recipient
	return m.err
}

func successCallback(reference string) []byte {
	return []byte(`{
		"transactionReference": "` + reference + `",
		"transactionStatus": "SUCCESS",
		"responseCode": "00",
		"mpesaReference": "XYZ999"
	}`)
}

func failedCallback(reference string) []byte {
	return []byte(`{
		"transactionReference": "` + reference + `",
		"transactionStatus": "Failed"
	}`)
}

func TestProcess_SuccessMarksPaidAndNotifies(t *testing.T) {
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusPending,
		PaymentReference: "FL-87654321",
		CustomerEmail:    "jane@example.com",
	}
	repo := &MockRepository{Orders: []*domain.Order{order}}
	notifier := newMockNotifier()
	r := NewReconciler(repo, NewCorrelator(), notifier, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		successCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, order.ID, repo.UpdatedID)
	assert.Equal(t, domain.OrderStatusPaid, repo.UpdatedStatus)
	require.NotNil(t, repo.Receipt)
	assert.Equal(t, "XYZ999", *repo.Receipt)

	select {
	case recipient := <-notifier.sent:
		assert.Equal(t, "jane@example.com", recipient)
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never invoked")
	}
}

func TestProcess_FailedAfterPaid_NoDowngrade(t *testing.T) {
	receipt := "XYZ999"
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusPaid,
		PaymentReference: "FL-87654321",
		PaymentReceiptID: &receipt,
	}
	repo := &MockRepository{Orders: []*domain.Order{order}}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		failedCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Zero(t, repo.UpdatedCalls, "a paid order must not be touched by a failed callback")
	require.Len(t, repo.Notes, 1)
	assert.Contains(t, repo.Notes[0], "already paid")
}

func TestProcess_FailedAfterShipped_NoReopen(t *testing.T) {
	receipt := "XYZ999"
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusShipped,
		PaymentReference: "FL-87654321",
		PaymentReceiptID: &receipt,
	}
	repo := &MockRepository{Orders: []*domain.Order{order}}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		failedCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Zero(t, repo.UpdatedCalls, "a shipped order must not reopen on a late failure")
	require.Len(t, repo.Notes, 1)
	assert.Contains(t, repo.Notes[0], "already shipped")
}

func TestProcess_FailedAfterCancelled_NoReopen(t *testing.T) {
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusCancelled,
		PaymentReference: "FL-87654321",
	}
	repo := &MockRepository{Orders: []*domain.Order{order}}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		failedCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Zero(t, repo.UpdatedCalls, "a cancelled order must not reopen on a late failure")
}

func TestProcess_SuccessAfterShipped_Ignored(t *testing.T) {
	receipt := "XYZ999"
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusShipped,
		PaymentReference: "FL-87654321",
		PaymentReceiptID: &receipt,
		CustomerEmail:    "jane@example.com",
	}
	repo := &MockRepository{Orders: []*domain.Order{order}}
	notifier := newMockNotifier()
	r := NewReconciler(repo, NewCorrelator(), notifier, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		successCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Zero(t, repo.UpdatedCalls)
	select {
	case <-notifier.sent:
		t.Fatal("no confirmation should be sent for an ignored callback")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProcess_SuccessAfterCancelled_Ignored(t *testing.T) {
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusCancelled,
		PaymentReference: "FL-87654321",
	}
	repo := &MockRepository{Orders: []*domain.Order{order}}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		successCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Zero(t, repo.UpdatedCalls)
	require.Len(t, repo.Notes, 1)
	assert.Contains(t, repo.Notes[0], "already cancelled")
}

func TestProcess_NonSuccessKeepsOrderPending(t *testing.T) {
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusPending,
		PaymentReference: "FL-87654321",
	}
	repo := &MockRepository{Orders: []*domain.Order{order}}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		failedCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, domain.OrderStatusPending, repo.UpdatedStatus,
		"non-success keeps the order retryable, not failed")
}

func TestProcess_ConcurrentPaidRace_Ignored(t *testing.T) {
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusPending, // stale read: row is already paid
		PaymentReference: "FL-87654321",
	}
	repo := &MockRepository{
		Orders:    []*domain.Order{order},
		UpdateErr: repository.ErrPaidDowngrade,
	}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		failedCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
}

func TestProcess_MalformedCallback(t *testing.T) {
	repo := &MockRepository{}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		[]byte(`{"transactionStatus": "SUCCESS"}`))

	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformed, result.Outcome)
	assert.Zero(t, repo.UpdatedCalls)
	assert.Empty(t, repo.Notes)
}

func TestProcess_UnmatchedReference(t *testing.T) {
	repo := &MockRepository{Orders: []*domain.Order{
		{ID: uuid.New(), Status: domain.OrderStatusPending, PaymentReference: "FL-other"},
	}}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		successCallback("FL-never-seen"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, result.Outcome)
	assert.Zero(t, repo.UpdatedCalls, "unmatched callbacks must not mutate any order")
}

func TestProcess_NotesTierResolution(t *testing.T) {
	// Neither order stores the reference; one logged it at initiation.
	noted := &domain.Order{
		ID:     uuid.New(),
		Status: domain.OrderStatusPending,
		Notes:  "payment initiated via bankgate, reference FL-87654321",
	}
	other := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusPending,
		PaymentReference: "FL-different",
	}
	repo := &MockRepository{Orders: []*domain.Order{other, noted}}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		successCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, noted.ID, repo.UpdatedID)
}

func TestProcess_StoreErrorSurfaces(t *testing.T) {
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusPending,
		PaymentReference: "FL-87654321",
	}
	repo := &MockRepository{
		Orders:    []*domain.Order{order},
		UpdateErr: errors.New("connection reset"),
	}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		successCallback("FL-87654321"))

	require.Error(t, err)
	assert.Equal(t, OutcomeStoreError, result.Outcome)
}

func TestProcess_NotifierFailureDoesNotAffectOutcome(t *testing.T) {
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusPending,
		PaymentReference: "FL-87654321",
		CustomerEmail:    "jane@example.com",
	}
	repo := &MockRepository{Orders: []*domain.Order{order}}
	notifier := newMockNotifier()
	notifier.err = errors.New("smtp down")
	r := NewReconciler(repo, NewCorrelator(), notifier, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		successCallback("FL-87654321"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, domain.OrderStatusPaid, repo.UpdatedStatus)
}

func TestProcess_EndToEndScenario(t *testing.T) {
	// Order created pending, initiator stored FL-87654321, success callback
	// arrives, then a late failure for the same reference.
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusPending,
		PaymentReference: "FL-87654321",
	}
	repo := &MockRepository{Orders: []*domain.Order{order}}
	r := NewReconciler(repo, NewCorrelator(), nil, nil)

	result, err := r.Process(context.Background(), payment.ProviderBankGate,
		successCallback("FL-87654321"))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)
	require.NotNil(t, repo.Receipt)
	assert.Equal(t, "XYZ999", *repo.Receipt)

	// Reflect the mutation the way a reload from the store would.
	order.Status = domain.OrderStatusPaid
	order.PaymentReceiptID = repo.Receipt

	result, err = r.Process(context.Background(), payment.ProviderBankGate,
		failedCallback("FL-87654321"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Equal(t, domain.OrderStatusPaid, repo.UpdatedStatus, "status update untouched by the late failure")
	assert.Equal(t, 1, repo.UpdatedCalls)
}
