package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"moneylend/pkg/balance"
	"moneylend/pkg/models"
	"moneylend/pkg/store"
)

var (
	// ErrLoanNotFound means the requested loan does not exist.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrLoanSettled means the loan's remaining balance is already zero.
	ErrLoanSettled = errors.New("loan is already fully repaid")
	// ErrPaymentExceedsBalance means the proposed amount is larger than the
	// current remaining balance; the payment is rejected whole.
	ErrPaymentExceedsBalance = errors.New("payment exceeds remaining balance")
	// ErrBalanceCalculation means the remaining balance could not be computed
	// for a loan that was confirmed to exist.
	ErrBalanceCalculation = errors.New("error calculating remaining balance")
	// ErrInvalidLoan means a loan request violates the loan invariants.
	ErrInvalidLoan = errors.New("invalid loan")
)

// Ledger handles the business logic for issuing loans and applying payments.
// Balances are derived on every read via the balance package, never stored.
type Ledger struct {
	storage store.Storage
	now     func() time.Time

	mu        sync.Mutex
	loanLocks map[int64]*sync.Mutex
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{
		storage:   s,
		now:       time.Now,
		loanLocks: make(map[int64]*sync.Mutex),
	}
}

// lockLoan serializes payment application per loan so two concurrent payments
// cannot both pass the balance check against the same stale reading. The lock
// is in-process only; a multi-instance deployment would swap this for a row
// lock without changing the RecordPayment contract.
func (l *Ledger) lockLoan(id int64) func() {
	l.mu.Lock()
	lk, ok := l.loanLocks[id]
	if !ok {
		lk = &sync.Mutex{}
		l.loanLocks[id] = lk
	}
	l.mu.Unlock()

	lk.Lock()
	return lk.Unlock
}

// IssueLoanRequest carries the data needed to create a borrower (if new) and
// issue a loan to them.
type IssueLoanRequest struct {
	BorrowerName     string
	BorrowerContact  string
	Amount           decimal.Decimal
	InterestRate     decimal.Decimal
	RepaymentMethod  models.RepaymentMethod
	PaymentFrequency models.PaymentFrequency
	AgentID          int64
	LoanDate         *time.Time
}

func (r *IssueLoanRequest) validate() error {
	if r.BorrowerName == "" {
		return fmt.Errorf("%w: borrower name is required", ErrInvalidLoan)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidLoan)
	}
	if r.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate must not be negative", ErrInvalidLoan)
	}
	switch r.RepaymentMethod {
	case models.RepaymentFull:
		if r.PaymentFrequency != models.FrequencyNone {
			return fmt.Errorf("%w: payment frequency only applies to interest-method loans", ErrInvalidLoan)
		}
	case models.RepaymentInterest:
		if r.PaymentFrequency != models.FrequencyDaily && r.PaymentFrequency != models.FrequencyMonthly {
			return fmt.Errorf("%w: interest-method loans require a daily or monthly payment frequency", ErrInvalidLoan)
		}
	default:
		return fmt.Errorf("%w: unknown repayment method %q", ErrInvalidLoan, r.RepaymentMethod)
	}
	return nil
}

// IssueLoan creates the borrower if they do not already exist (matched by
// name) and records a new active loan.
func (l *Ledger) IssueLoan(req IssueLoanRequest) (*models.Loan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	borrower, err := l.storage.GetBorrowerByName(req.BorrowerName)
	if errors.Is(err, store.ErrNotFound) {
		borrower = &models.Borrower{
			Name:            req.BorrowerName,
			ContactInfo:     req.BorrowerContact,
			AssignedAgentID: req.AgentID,
		}
		if err := l.storage.CreateBorrower(borrower); err != nil {
			return nil, fmt.Errorf("failed to create borrower: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up borrower: %w", err)
	}

	loanDate := l.now().UTC()
	if req.LoanDate != nil {
		loanDate = req.LoanDate.UTC()
	}

	loan := &models.Loan{
		BorrowerID:       borrower.ID,
		AgentID:          req.AgentID,
		Amount:           req.Amount,
		LoanDate:         loanDate,
		InterestRate:     req.InterestRate,
		RepaymentMethod:  req.RepaymentMethod,
		PaymentFrequency: req.PaymentFrequency,
		Status:           models.LoanActive,
	}
	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return loan, nil
}

// RecordPayment applies a payment against a loan. The proposed amount is
// validated against the remaining balance computed as of today; a rejected
// payment is never persisted. Returns the remaining balance after the payment
// is applied, re-read from storage.
func (l *Ledger) RecordPayment(loanID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	unlock := l.lockLoan(loanID)
	defer unlock()

	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return decimal.Zero, ErrLoanNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to load loan %d: %w", loanID, err)
	}

	remainingBefore, err := l.remainingBalance(loan)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrBalanceCalculation, err)
	}
	if remainingBefore.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrLoanSettled
	}
	if amount.GreaterThan(remainingBefore) {
		return decimal.Zero, ErrPaymentExceedsBalance
	}

	payment := &models.Payment{
		LoanID:      loanID,
		AmountPaid:  amount,
		PaymentDate: l.now().UTC(),
	}
	if err := l.storage.CreatePayment(payment); err != nil {
		return decimal.Zero, fmt.Errorf("failed to store payment: %w", err)
	}

	// Re-read the payment set so the returned balance reflects the write.
	remainingAfter, err := l.remainingBalance(loan)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrBalanceCalculation, err)
	}
	return remainingAfter, nil
}

// RemainingBalance computes the outstanding balance of a loan as of today.
func (l *Ledger) RemainingBalance(loanID int64) (decimal.Decimal, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return decimal.Zero, ErrLoanNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to load loan %d: %w", loanID, err)
	}
	remaining, err := l.remainingBalance(loan)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrBalanceCalculation, err)
	}
	return remaining, nil
}

func (l *Ledger) remainingBalance(loan *models.Loan) (decimal.Decimal, error) {
	payments, err := l.storage.GetPaymentsForLoan(loan.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.RemainingBalance(loan, payments, l.now()), nil
}

// LoanDetails is a loan enriched with its derived balance and the names of
// the agent and borrower attached to it.
type LoanDetails struct {
	models.Loan
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	AgentName        string          `json:"agent_name,omitempty"`
	BorrowerName     string          `json:"borrower_name,omitempty"`
}

func (l *Ledger) loanDetails(loan *models.Loan) (*LoanDetails, error) {
	remaining, err := l.remainingBalance(loan)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalanceCalculation, err)
	}

	details := &LoanDetails{Loan: *loan, RemainingBalance: remaining}
	if agent, err := l.storage.GetUserByID(loan.AgentID); err == nil {
		details.AgentName = agent.Name
	}
	if borrower, err := l.storage.GetBorrowerByID(loan.BorrowerID); err == nil {
		details.BorrowerName = borrower.Name
	}
	return details, nil
}

// GetLoanDetails returns a single loan with its derived balance and names.
func (l *Ledger) GetLoanDetails(loanID int64) (*LoanDetails, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to load loan %d: %w", loanID, err)
	}
	return l.loanDetails(loan)
}

// ListLoans returns every loan with its derived balance and names.
func (l *Ledger) ListLoans() ([]*LoanDetails, error) {
	loans, err := l.storage.GetAllLoans()
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	details := make([]*LoanDetails, 0, len(loans))
	for _, loan := range loans {
		d, err := l.loanDetails(loan)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

// AgentOutstanding is the total outstanding balance across one agent's active
// loans.
type AgentOutstanding struct {
	AgentName        string          `json:"agent_name"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

// Summary aggregates remaining balances of active loans per agent name.
func (l *Ledger) Summary() ([]*AgentOutstanding, error) {
	loans, err := l.storage.GetActiveLoans()
	if err != nil {
		return nil, fmt.Errorf("failed to list active loans: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	order := []string{}
	for _, loan := range loans {
		remaining, err := l.remainingBalance(loan)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBalanceCalculation, err)
		}

		agentName := "Unknown"
		if agent, err := l.storage.GetUserByID(loan.AgentID); err == nil {
			agentName = agent.Name
		}
		if _, seen := totals[agentName]; !seen {
			order = append(order, agentName)
		}
		totals[agentName] = totals[agentName].Add(remaining)
	}

	summary := make([]*AgentOutstanding, 0, len(order))
	for _, name := range order {
		summary = append(summary, &AgentOutstanding{
			AgentName:        name,
			TotalOutstanding: totals[name].Round(2),
		})
	}
	return summary, nil
}

// PaymentRecord is a payment joined with the owning loan's principal amount.
type PaymentRecord struct {
	models.Payment
	LoanAmount decimal.Decimal `json:"loan_amount"`
}

// ListPayments returns every recorded payment with basic loan information.
func (l *Ledger) ListPayments() ([]*PaymentRecord, error) {
	payments, err := l.storage.GetAllPayments()
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	records := make([]*PaymentRecord, 0, len(payments))
	for _, p := range payments {
		record := &PaymentRecord{Payment: *p}
		if loan, err := l.storage.GetLoan(p.LoanID); err == nil {
			record.LoanAmount = loan.Amount
		}
		records = append(records, record)
	}
	return records, nil
}
