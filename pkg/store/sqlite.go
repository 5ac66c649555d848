package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"moneylend/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Println("Database connection established and schema initialized.")
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'agent'
	);
	CREATE TABLE IF NOT EXISTS borrowers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		contact_info TEXT NOT NULL DEFAULT '',
		assigned_agent_id INTEGER NOT NULL,
		FOREIGN KEY(assigned_agent_id) REFERENCES users(id)
	);
	CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		borrower_id INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		loan_date DATETIME NOT NULL,
		interest_rate TEXT NOT NULL,
		repayment_method TEXT NOT NULL DEFAULT 'full',
		payment_frequency TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		FOREIGN KEY(borrower_id) REFERENCES borrowers(id),
		FOREIGN KEY(agent_id) REFERENCES users(id)
	);
	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_id INTEGER NOT NULL,
		amount_paid TEXT NOT NULL,
		payment_date DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateUser inserts a new user and assigns its generated id.
func (s *SQLiteStore) CreateUser(user *models.User) error {
	result, err := s.db.Exec(
		`INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash, user.Role,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(email string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, name, email, password_hash, role FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUserByID retrieves a user by id.
func (s *SQLiteStore) GetUserByID(id int64) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, name, email, password_hash, role FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateBorrower inserts a new borrower and assigns its generated id.
func (s *SQLiteStore) CreateBorrower(borrower *models.Borrower) error {
	result, err := s.db.Exec(
		`INSERT INTO borrowers (name, contact_info, assigned_agent_id) VALUES (?, ?, ?)`,
		borrower.Name, borrower.ContactInfo, borrower.AssignedAgentID,
	)
	if err != nil {
		return fmt.Errorf("failed to create borrower: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read borrower id: %w", err)
	}
	borrower.ID = id
	return nil
}

// GetBorrowerByName retrieves a borrower by exact name.
func (s *SQLiteStore) GetBorrowerByName(name string) (*models.Borrower, error) {
	row := s.db.QueryRow(`SELECT id, name, contact_info, assigned_agent_id FROM borrowers WHERE name = ?`, name)
	return scanBorrower(row)
}

// GetBorrowerByID retrieves a borrower by id.
func (s *SQLiteStore) GetBorrowerByID(id int64) (*models.Borrower, error) {
	row := s.db.QueryRow(`SELECT id, name, contact_info, assigned_agent_id FROM borrowers WHERE id = ?`, id)
	return scanBorrower(row)
}

func scanBorrower(row *sql.Row) (*models.Borrower, error) {
	var borrower models.Borrower
	err := row.Scan(&borrower.ID, &borrower.Name, &borrower.ContactInfo, &borrower.AssignedAgentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}
	return &borrower, nil
}

// CreateLoan inserts a new loan and assigns its generated id.
func (s *SQLiteStore) CreateLoan(loan *models.Loan) error {
	result, err := s.db.Exec(
		`INSERT INTO loans (borrower_id, agent_id, amount, loan_date, interest_rate, repayment_method, payment_frequency, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.BorrowerID, loan.AgentID, loan.Amount, loan.LoanDate, loan.InterestRate, loan.RepaymentMethod, loan.PaymentFrequency, loan.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read loan id: %w", err)
	}
	loan.ID = id
	return nil
}

// GetLoan retrieves a loan by its id.
func (s *SQLiteStore) GetLoan(id int64) (*models.Loan, error) {
	var loan models.Loan
	var loanDate time.Time

	row := s.db.QueryRow(`SELECT id, borrower_id, agent_id, amount, loan_date, interest_rate, repayment_method, payment_frequency, status FROM loans WHERE id = ?`, id)
	err := row.Scan(&loan.ID, &loan.BorrowerID, &loan.AgentID, &loan.Amount, &loanDate, &loan.InterestRate, &loan.RepaymentMethod, &loan.PaymentFrequency, &loan.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	loan.LoanDate = loanDate
	return &loan, nil
}

// GetAllLoans retrieves all loans.
func (s *SQLiteStore) GetAllLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT id, borrower_id, agent_id, amount, loan_date, interest_rate, repayment_method, payment_frequency, status FROM loans`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()

	return s.scanLoans(rows)
}

// GetActiveLoans retrieves all loans with active status.
func (s *SQLiteStore) GetActiveLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT id, borrower_id, agent_id, amount, loan_date, interest_rate, repayment_method, payment_frequency, status FROM loans WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active loans: %w", err)
	}
	defer rows.Close()

	return s.scanLoans(rows)
}

func (s *SQLiteStore) scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		var loan models.Loan
		var loanDate time.Time
		if err := rows.Scan(&loan.ID, &loan.BorrowerID, &loan.AgentID, &loan.Amount, &loanDate, &loan.InterestRate, &loan.RepaymentMethod, &loan.PaymentFrequency, &loan.Status); err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loan.LoanDate = loanDate
		loans = append(loans, &loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// UpdateLoanStatus sets the status of an existing loan. The payment engine
// never calls this; it exists for external settlement processes.
func (s *SQLiteStore) UpdateLoanStatus(id int64, status models.LoanStatus) error {
	result, err := s.db.Exec(`UPDATE loans SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update loan status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePayment inserts a new payment and assigns its generated id. A zero
// PaymentDate defaults to the current time.
func (s *SQLiteStore) CreatePayment(payment *models.Payment) error {
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	result, err := s.db.Exec(
		`INSERT INTO payments (loan_id, amount_paid, payment_date) VALUES (?, ?, ?)`,
		payment.LoanID, payment.AmountPaid, payment.PaymentDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read payment id: %w", err)
	}
	payment.ID = id
	return nil
}

// GetPaymentsForLoan retrieves all payments for a given loan id.
func (s *SQLiteStore) GetPaymentsForLoan(loanID int64) ([]*models.Payment, error) {
	rows, err := s.db.Query(`SELECT id, loan_id, amount_paid, payment_date FROM payments WHERE loan_id = ? ORDER BY payment_date ASC`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %d: %w", loanID, err)
	}
	defer rows.Close()

	return s.scanPayments(rows)
}

// GetAllPayments retrieves every recorded payment.
func (s *SQLiteStore) GetAllPayments() ([]*models.Payment, error) {
	rows, err := s.db.Query(`SELECT id, loan_id, amount_paid, payment_date FROM payments ORDER BY payment_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	return s.scanPayments(rows)
}

func (s *SQLiteStore) scanPayments(rows *sql.Rows) ([]*models.Payment, error) {
	var payments []*models.Payment
	for rows.Next() {
		var payment models.Payment
		var paymentDate time.Time
		if err := rows.Scan(&payment.ID, &payment.LoanID, &payment.AmountPaid, &paymentDate); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payment.PaymentDate = paymentDate
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return payments, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
