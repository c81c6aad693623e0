package ledger

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
)

// DateLayout is the calendar date format of transaction and reminder dates.
const DateLayout = "2006-01-02"

// Validate checks the domain fields of a record before it is written.
func Validate(rec models.Record) error {
	switch r := rec.(type) {
	case *models.Transaction:
		return validateTransaction(r)
	case *models.Customer:
		return validateParty(&r.Party)
	case *models.Supplier:
		return validateParty(&r.Party)
	case *models.Reminder:
		return validateReminder(r)
	case nil:
		return invalid("record is required")
	}
	return invalid(fmt.Sprintf("unsupported record type %T", rec))
}

func validateTransaction(t *models.Transaction) error {
	if t.Type != models.TransactionPayment && t.Type != models.TransactionReceipt {
		return invalid(fmt.Sprintf("unknown transaction type %q", t.Type))
	}
	if t.PartyID == "" {
		return invalid("transaction party is required")
	}
	if !t.Amount.IsPositive() {
		return invalid("transaction amount must be positive")
	}
	return validateDate("date", t.Date)
}

func validateParty(p *models.Party) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name is required")
	}
	return nil
}

func validateReminder(r *models.Reminder) error {
	if r.PartyID == "" {
		return invalid("reminder party is required")
	}
	if r.PartyType != models.PartyCustomer && r.PartyType != models.PartySupplier {
		return invalid(fmt.Sprintf("unknown party type %q", r.PartyType))
	}
	if r.Amount.IsNegative() {
		return invalid("reminder amount must not be negative")
	}
	return validateDate("due_date", r.DueDate)
}

func validateDate(field, value string) error {
	if _, err := time.Parse(DateLayout, value); err != nil {
		return invalid(fmt.Sprintf("%s must be a YYYY-MM-DD date", field))
	}
	return nil
}

func invalid(msg string) error {
	return apperrors.New(apperrors.ErrInvalid, msg)
}
