// Package balance computes loan balances from first principles: total due,
// period interest, and the outstanding remainder. Balances are always derived
// from (loan terms, payment history, as-of date) on every call, never stored.
package balance

import (
	"time"

	"github.com/shopspring/decimal"

	"moneylend/pkg/models"
)

var (
	one          = decimal.NewFromInt(1)
	hundred      = decimal.NewFromInt(100)
	daysPerMonth = decimal.NewFromInt(30) // fixed 30-day month approximation
)

// dateOnly drops the time-of-day component so elapsed days count whole
// calendar days in UTC.
func dateOnly(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

func daysBetween(start, end time.Time) int64 {
	return int64(dateOnly(end).Sub(dateOnly(start)) / (24 * time.Hour))
}

// TotalDue returns the cumulative amount owed on the loan as of the given
// date using simple interest over 30-day months:
//
//	amount * (1 + rate/100 * days/30)
//
// Dates before the loan date count as zero elapsed time. The formula does not
// branch on the repayment method; a method-aware calculation would replace
// this function's body without touching callers.
func TotalDue(loan *models.Loan, asOf time.Time) decimal.Decimal {
	days := daysBetween(loan.LoanDate, asOf)
	if days < 0 {
		days = 0
	}
	months := decimal.NewFromInt(days).Div(daysPerMonth)
	rate := loan.InterestRate.Div(hundred)
	return loan.Amount.Mul(one.Add(rate.Mul(months)))
}

// InterestForPeriod returns the interest accrued on the loan strictly between
// start and end, according to the loan's payment frequency. Loans without a
// frequency accrue nothing here. This is a standalone reporting calculation;
// it is not part of the remaining-balance path.
func InterestForPeriod(loan *models.Loan, start, end time.Time) decimal.Decimal {
	days := decimal.NewFromInt(daysBetween(start, end))
	switch loan.PaymentFrequency {
	case models.FrequencyDaily:
		dailyRate := loan.InterestRate.Div(hundred).Div(daysPerMonth)
		return loan.Amount.Mul(dailyRate).Mul(days)
	case models.FrequencyMonthly:
		months := days.Div(daysPerMonth)
		return loan.Amount.Mul(loan.InterestRate.Div(hundred)).Mul(months)
	default:
		return decimal.Zero
	}
}

// RemainingBalance returns the outstanding balance as of the given date:
// total due minus the sum of all payments, floored at zero and rounded to
// two decimal places.
func RemainingBalance(loan *models.Loan, payments []*models.Payment, asOf time.Time) decimal.Decimal {
	totalPaid := decimal.Zero
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.AmountPaid)
	}
	remaining := TotalDue(loan, asOf).Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return remaining.Round(2)
}
