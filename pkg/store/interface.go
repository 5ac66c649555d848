package store

import (
	"errors"

	"moneylend/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the interface for database operations related to users,
// borrowers, loans and payments.
type Storage interface {
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id int64) (*models.User, error)

	CreateBorrower(borrower *models.Borrower) error
	GetBorrowerByName(name string) (*models.Borrower, error)
	GetBorrowerByID(id int64) (*models.Borrower, error)

	CreateLoan(loan *models.Loan) error
	GetLoan(id int64) (*models.Loan, error)
	GetAllLoans() ([]*models.Loan, error)
	GetActiveLoans() ([]*models.Loan, error)
	UpdateLoanStatus(id int64, status models.LoanStatus) error

	CreatePayment(payment *models.Payment) error
	GetPaymentsForLoan(loanID int64) ([]*models.Payment, error)
	GetAllPayments() ([]*models.Payment, error)

	Close() error
}
