package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"moneylend/pkg/ledger"
	"moneylend/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes the error body shape used across the API.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Money Lending App is running"})
}

// loanResponse is the wire form of a loan: monetary fields as JSON numbers
// rounded to two decimals, dates as YYYY-MM-DD.
type loanResponse struct {
	ID               int64                   `json:"id"`
	BorrowerID       int64                   `json:"borrower_id"`
	AgentID          int64                   `json:"agent_id"`
	Amount           float64                 `json:"amount"`
	LoanDate         string                  `json:"loan_date"`
	InterestRate     float64                 `json:"interest_rate"`
	RepaymentMethod  models.RepaymentMethod  `json:"repayment_method"`
	PaymentFrequency models.PaymentFrequency `json:"payment_frequency,omitempty"`
	Status           models.LoanStatus       `json:"status"`
	RemainingBalance float64                 `json:"remaining_balance"`
	AgentName        string                  `json:"agent_name,omitempty"`
	BorrowerName     string                  `json:"borrower_name,omitempty"`
}

func toLoanResponse(d *ledger.LoanDetails) loanResponse {
	return loanResponse{
		ID:               d.ID,
		BorrowerID:       d.BorrowerID,
		AgentID:          d.AgentID,
		Amount:           d.Amount.Round(2).InexactFloat64(),
		LoanDate:         d.LoanDate.Format(time.DateOnly),
		InterestRate:     d.InterestRate.InexactFloat64(),
		RepaymentMethod:  d.RepaymentMethod,
		PaymentFrequency: d.PaymentFrequency,
		Status:           d.Status,
		RemainingBalance: d.RemainingBalance.InexactFloat64(),
		AgentName:        d.AgentName,
		BorrowerName:     d.BorrowerName,
	}
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	details, err := s.ledger.ListLoans()
	if err != nil {
		log.Printf("Error listing loans: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	loans := make([]loanResponse, 0, len(details))
	for _, d := range details {
		loans = append(loans, toLoanResponse(d))
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) loanDetailsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid loan ID")
		return
	}

	details, err := s.ledger.GetLoanDetails(loanID)
	if err != nil {
		if errors.Is(err, ledger.ErrLoanNotFound) {
			writeDetail(w, http.StatusNotFound, "Loan not found")
			return
		}
		log.Printf("Error fetching loan %d: %v", loanID, err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(details))
}

func (s *Server) loanSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.Summary()
	if err != nil {
		log.Printf("Error generating summary: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Error generating summary")
		return
	}

	type agentTotal struct {
		AgentName        string  `json:"agent_name"`
		TotalOutstanding float64 `json:"total_outstanding"`
	}
	result := make([]agentTotal, 0, len(summary))
	for _, entry := range summary {
		result = append(result, agentTotal{
			AgentName:        entry.AgentName,
			TotalOutstanding: entry.TotalOutstanding.InexactFloat64(),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

type issueLoanRequest struct {
	BorrowerName     string                  `json:"borrower_name"`
	BorrowerContact  string                  `json:"borrower_contact"`
	Amount           decimal.Decimal         `json:"amount"`
	InterestRate     decimal.Decimal         `json:"interest_rate"`
	RepaymentMethod  models.RepaymentMethod  `json:"repayment_method"`
	PaymentFrequency models.PaymentFrequency `json:"payment_frequency"`
	AgentID          int64                   `json:"agent_id"`
	LoanDate         string                  `json:"loan_date"` // optional, YYYY-MM-DD
}

func (s *Server) issueLoanHandler(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if caller == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate token")
		return
	}

	var req issueLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.AgentID != caller.ID {
		writeDetail(w, http.StatusForbidden, "Cannot issue loan on behalf of another agent.")
		return
	}

	issueReq := ledger.IssueLoanRequest{
		BorrowerName:     req.BorrowerName,
		BorrowerContact:  req.BorrowerContact,
		Amount:           req.Amount,
		InterestRate:     req.InterestRate,
		RepaymentMethod:  req.RepaymentMethod,
		PaymentFrequency: req.PaymentFrequency,
		AgentID:          req.AgentID,
	}
	if req.LoanDate != "" {
		loanDate, err := time.Parse(time.DateOnly, req.LoanDate)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid loan date")
			return
		}
		issueReq.LoanDate = &loanDate
	}

	loan, err := s.ledger.IssueLoan(issueReq)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidLoan) {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error issuing loan: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":           "Loan issued successfully",
		"loan_id":           loan.ID,
		"borrower_id":       loan.BorrowerID,
		"agent_id":          loan.AgentID,
		"amount":            loan.Amount.Round(2).InexactFloat64(),
		"interest_rate":     loan.InterestRate.InexactFloat64(),
		"repayment_method":  loan.RepaymentMethod,
		"payment_frequency": loan.PaymentFrequency,
		"status":            loan.Status,
	})
}

func (s *Server) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.ListPayments()
	if err != nil {
		log.Printf("Error in listPaymentsHandler: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	type paymentResponse struct {
		ID          int64   `json:"id"`
		LoanID      int64   `json:"loan_id"`
		AmountPaid  float64 `json:"amount_paid"`
		PaymentDate string  `json:"payment_date"`
		LoanAmount  float64 `json:"loan_amount"`
	}
	result := make([]paymentResponse, 0, len(records))
	for _, rec := range records {
		result = append(result, paymentResponse{
			ID:          rec.ID,
			LoanID:      rec.LoanID,
			AmountPaid:  rec.AmountPaid.Round(2).InexactFloat64(),
			PaymentDate: rec.PaymentDate.Format(time.DateOnly),
			LoanAmount:  rec.LoanAmount.Round(2).InexactFloat64(),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

type payRequest struct {
	LoanID     int64           `json:"loan_id"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

func (s *Server) payHandler(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.AmountPaid.IsPositive() {
		writeDetail(w, http.StatusBadRequest, "Payment amount must be positive.")
		return
	}

	remaining, err := s.ledger.RecordPayment(req.LoanID, req.AmountPaid)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrLoanNotFound):
			writeDetail(w, http.StatusNotFound, "Loan not found")
		case errors.Is(err, ledger.ErrLoanSettled):
			writeDetail(w, http.StatusBadRequest, "Loan is already fully repaid.")
		case errors.Is(err, ledger.ErrPaymentExceedsBalance):
			writeDetail(w, http.StatusBadRequest, "Payment exceeds remaining balance.")
		default:
			log.Printf("Error recording payment for loan %d: %v", req.LoanID, err)
			writeDetail(w, http.StatusInternalServerError, "Error calculating remaining balance.")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":           "Payment recorded successfully",
		"remaining_balance": remaining.InexactFloat64(),
	})
}
