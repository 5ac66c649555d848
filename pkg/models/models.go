package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

type Borrower struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	ContactInfo     string `json:"contact_info,omitempty"`
	AssignedAgentID int64  `json:"assigned_agent_id"`
}

type RepaymentMethod string

const (
	RepaymentFull     RepaymentMethod = "full"     // single lump-sum settlement
	RepaymentInterest RepaymentMethod = "interest" // recurring interest-only payments
)

type PaymentFrequency string

const (
	FrequencyNone    PaymentFrequency = ""
	FrequencyDaily   PaymentFrequency = "daily"
	FrequencyMonthly PaymentFrequency = "monthly"
)

type LoanStatus string

const (
	LoanActive    LoanStatus = "active"
	LoanCompleted LoanStatus = "completed"
)

type Loan struct {
	ID               int64            `json:"id"`
	BorrowerID       int64            `json:"borrower_id"`
	AgentID          int64            `json:"agent_id"`
	Amount           decimal.Decimal  `json:"amount"`
	LoanDate         time.Time        `json:"loan_date"`
	InterestRate     decimal.Decimal  `json:"interest_rate"` // percent per month, e.g. 2.0 means 2%/month
	RepaymentMethod  RepaymentMethod  `json:"repayment_method"`
	PaymentFrequency PaymentFrequency `json:"payment_frequency,omitempty"` // set only for interest-method loans
	Status           LoanStatus       `json:"status"`
}

type Payment struct {
	ID          int64           `json:"id"`
	LoanID      int64           `json:"loan_id"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	PaymentDate time.Time       `json:"payment_date"`
}
