package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneylend/pkg/models"
	"moneylend/pkg/store"
)

// mockStore is a simple in-memory implementation of the Storage interface for
// testing.
type mockStore struct {
	users     map[int64]*models.User
	borrowers map[int64]*models.Borrower
	loans     map[int64]*models.Loan
	payments  []*models.Payment
	nextID    int64

	paymentsErr error // forced failure for GetPaymentsForLoan
}

func newMockStore() *mockStore {
	return &mockStore{
		users:     make(map[int64]*models.User),
		borrowers: make(map[int64]*models.Borrower),
		loans:     make(map[int64]*models.Loan),
	}
}

func (m *mockStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *mockStore) CreateUser(u *models.User) error {
	u.ID = m.id()
	m.users[u.ID] = u
	return nil
}

func (m *mockStore) GetUserByEmail(email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) GetUserByID(id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (m *mockStore) CreateBorrower(b *models.Borrower) error {
	b.ID = m.id()
	m.borrowers[b.ID] = b
	return nil
}

func (m *mockStore) GetBorrowerByName(name string) (*models.Borrower, error) {
	for _, b := range m.borrowers {
		if b.Name == name {
			return b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) GetBorrowerByID(id int64) (*models.Borrower, error) {
	b, ok := m.borrowers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return b, nil
}

func (m *mockStore) CreateLoan(l *models.Loan) error {
	l.ID = m.id()
	m.loans[l.ID] = l
	return nil
}

func (m *mockStore) GetLoan(id int64) (*models.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return l, nil
}

func (m *mockStore) GetAllLoans() ([]*models.Loan, error) {
	loans := []*models.Loan{}
	for _, l := range m.loans {
		loans = append(loans, l)
	}
	return loans, nil
}

func (m *mockStore) GetActiveLoans() ([]*models.Loan, error) {
	loans := []*models.Loan{}
	for _, l := range m.loans {
		if l.Status == models.LoanActive {
			loans = append(loans, l)
		}
	}
	return loans, nil
}

func (m *mockStore) UpdateLoanStatus(id int64, status models.LoanStatus) error {
	l, ok := m.loans[id]
	if !ok {
		return store.ErrNotFound
	}
	l.Status = status
	return nil
}

func (m *mockStore) CreatePayment(p *models.Payment) error {
	p.ID = m.id()
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}
	m.payments = append(m.payments, p)
	return nil
}

func (m *mockStore) GetPaymentsForLoan(loanID int64) ([]*models.Payment, error) {
	if m.paymentsErr != nil {
		return nil, m.paymentsErr
	}
	payments := []*models.Payment{}
	for _, p := range m.payments {
		if p.LoanID == loanID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

func (m *mockStore) GetAllPayments() ([]*models.Payment, error) {
	return m.payments, nil
}

func (m *mockStore) Close() error { return nil }

func seedAgent(t *testing.T, s *mockStore, name string) *models.User {
	t.Helper()
	agent := &models.User{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: models.RoleAgent}
	require.NoError(t, s.CreateUser(agent))
	return agent
}

func issueTestLoan(t *testing.T, l *Ledger, agentID int64, amount, rate float64) *models.Loan {
	t.Helper()
	loan, err := l.IssueLoan(IssueLoanRequest{
		BorrowerName:    "Test Borrower",
		Amount:          decimal.NewFromFloat(amount),
		InterestRate:    decimal.NewFromFloat(rate),
		RepaymentMethod: models.RepaymentFull,
		AgentID:         agentID,
	})
	require.NoError(t, err)
	return loan
}

func TestIssueLoan(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	agent := seedAgent(t, s, "Agent One")

	loan, err := l.IssueLoan(IssueLoanRequest{
		BorrowerName:     "New Borrower",
		BorrowerContact:  "555-0100",
		Amount:           decimal.NewFromInt(1000),
		InterestRate:     decimal.NewFromFloat(2.5),
		RepaymentMethod:  models.RepaymentInterest,
		PaymentFrequency: models.FrequencyMonthly,
		AgentID:          agent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, loan.Status)
	assert.NotZero(t, loan.ID)
	assert.NotZero(t, loan.BorrowerID)

	borrower, err := s.GetBorrowerByName("New Borrower")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, borrower.AssignedAgentID)

	// A second loan for the same borrower reuses the record.
	second, err := l.IssueLoan(IssueLoanRequest{
		BorrowerName:    "New Borrower",
		Amount:          decimal.NewFromInt(500),
		InterestRate:    decimal.Zero,
		RepaymentMethod: models.RepaymentFull,
		AgentID:         agent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, borrower.ID, second.BorrowerID)
	assert.Len(t, s.borrowers, 1)
}

func TestIssueLoanValidation(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	agent := seedAgent(t, s, "Agent One")

	tests := []struct {
		name string
		req  IssueLoanRequest
	}{
		{
			name: "empty borrower name",
			req: IssueLoanRequest{
				Amount:          decimal.NewFromInt(100),
				RepaymentMethod: models.RepaymentFull,
				AgentID:         agent.ID,
			},
		},
		{
			name: "zero amount",
			req: IssueLoanRequest{
				BorrowerName:    "B",
				Amount:          decimal.Zero,
				RepaymentMethod: models.RepaymentFull,
				AgentID:         agent.ID,
			},
		},
		{
			name: "negative rate",
			req: IssueLoanRequest{
				BorrowerName:    "B",
				Amount:          decimal.NewFromInt(100),
				InterestRate:    decimal.NewFromInt(-1),
				RepaymentMethod: models.RepaymentFull,
				AgentID:         agent.ID,
			},
		},
		{
			name: "frequency on full-method loan",
			req: IssueLoanRequest{
				BorrowerName:     "B",
				Amount:           decimal.NewFromInt(100),
				RepaymentMethod:  models.RepaymentFull,
				PaymentFrequency: models.FrequencyDaily,
				AgentID:          agent.ID,
			},
		},
		{
			name: "interest-method loan without frequency",
			req: IssueLoanRequest{
				BorrowerName:    "B",
				Amount:          decimal.NewFromInt(100),
				RepaymentMethod: models.RepaymentInterest,
				AgentID:         agent.ID,
			},
		},
		{
			name: "unknown repayment method",
			req: IssueLoanRequest{
				BorrowerName:    "B",
				Amount:          decimal.NewFromInt(100),
				RepaymentMethod: "balloon",
				AgentID:         agent.ID,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.IssueLoan(tt.req)
			assert.ErrorIs(t, err, ErrInvalidLoan)
		})
	}
}

func TestRecordPayment_RejectsOverpayment(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	agent := seedAgent(t, s, "Agent One")
	loan := issueTestLoan(t, l, agent.ID, 1000, 0)

	_, err := l.RecordPayment(loan.ID, decimal.NewFromInt(1500))
	assert.ErrorIs(t, err, ErrPaymentExceedsBalance)
	assert.Empty(t, s.payments, "rejected payment must not be persisted")
}

func TestRecordPayment_ExactSettlement(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	agent := seedAgent(t, s, "Agent One")
	loan := issueTestLoan(t, l, agent.ID, 1000, 0)

	remaining, err := l.RecordPayment(loan.ID, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.Zero), "expected 0, got %s", remaining)

	_, err = l.RecordPayment(loan.ID, decimal.NewFromFloat(0.01))
	assert.ErrorIs(t, err, ErrLoanSettled)
	assert.Len(t, s.payments, 1)
}

func TestRecordPayment_PartialThenBalanceCheck(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	agent := seedAgent(t, s, "Agent One")
	loan := issueTestLoan(t, l, agent.ID, 1000, 0)

	remaining, err := l.RecordPayment(loan.ID, decimal.NewFromInt(400))
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.NewFromInt(600)), "expected 600, got %s", remaining)

	// An independent read must agree with the returned balance.
	fromRead, err := l.RemainingBalance(loan.ID)
	require.NoError(t, err)
	assert.True(t, fromRead.Equal(decimal.NewFromInt(600)), "expected 600, got %s", fromRead)
}

func TestRecordPayment_LoanNotFound(t *testing.T) {
	l := NewLedger(newMockStore())

	_, err := l.RecordPayment(42, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestRecordPayment_AccruedInterest(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	agent := seedAgent(t, s, "Agent One")

	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	loan, err := l.IssueLoan(IssueLoanRequest{
		BorrowerName:    "B",
		Amount:          decimal.NewFromInt(1000),
		InterestRate:    decimal.NewFromInt(2),
		RepaymentMethod: models.RepaymentFull,
		AgentID:         agent.ID,
		LoanDate:        &issued,
	})
	require.NoError(t, err)

	// 30 days later one month of simple interest is due: 1020.
	l.now = func() time.Time { return issued.AddDate(0, 0, 30) }

	remaining, err := l.RemainingBalance(loan.ID)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.NewFromInt(1020)), "expected 1020, got %s", remaining)

	after, err := l.RecordPayment(loan.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.True(t, after.Equal(decimal.NewFromInt(1000)), "expected 1000, got %s", after)
}

func TestRecordPayment_CalculationError(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	agent := seedAgent(t, s, "Agent One")
	loan := issueTestLoan(t, l, agent.ID, 1000, 0)

	s.paymentsErr = errors.New("disk on fire")

	_, err := l.RecordPayment(loan.ID, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrBalanceCalculation)
	assert.Empty(t, s.payments)
}

func TestGetLoanDetails(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	agent := seedAgent(t, s, "Agent One")
	loan := issueTestLoan(t, l, agent.ID, 1000, 0)

	details, err := l.GetLoanDetails(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Agent One", details.AgentName)
	assert.Equal(t, "Test Borrower", details.BorrowerName)
	assert.True(t, details.RemainingBalance.Equal(decimal.NewFromInt(1000)))

	_, err = l.GetLoanDetails(9999)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestSummary(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	first := seedAgent(t, s, "Agent One")
	second := seedAgent(t, s, "Agent Two")

	issueTestLoan(t, l, first.ID, 1000, 0)
	issueTestLoan(t, l, first.ID, 500, 0)
	loan, err := l.IssueLoan(IssueLoanRequest{
		BorrowerName:    "Other Borrower",
		Amount:          decimal.NewFromInt(800),
		InterestRate:    decimal.Zero,
		RepaymentMethod: models.RepaymentFull,
		AgentID:         second.ID,
	})
	require.NoError(t, err)

	// Completed loans are excluded from the summary.
	require.NoError(t, s.UpdateLoanStatus(loan.ID, models.LoanCompleted))

	summary, err := l.Summary()
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, "Agent One", summary[0].AgentName)
	assert.True(t, summary[0].TotalOutstanding.Equal(decimal.NewFromInt(1500)),
		"expected 1500, got %s", summary[0].TotalOutstanding)
}

func TestListPayments(t *testing.T) {
	s := newMockStore()
	l := NewLedger(s)
	agent := seedAgent(t, s, "Agent One")
	loan := issueTestLoan(t, l, agent.ID, 1000, 0)

	_, err := l.RecordPayment(loan.ID, decimal.NewFromInt(250))
	require.NoError(t, err)

	records, err := l.ListPayments()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, loan.ID, records[0].LoanID)
	assert.True(t, records[0].AmountPaid.Equal(decimal.NewFromInt(250)))
	assert.True(t, records[0].LoanAmount.Equal(decimal.NewFromInt(1000)))
}
