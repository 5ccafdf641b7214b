package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Pending   TransactionStatus = "pending"
	Confirmed TransactionStatus = "confirmed"
)

type (
	TransactionType   string
	TransactionStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is the central entity: one income or expense record,
	// optionally tied to a card, optionally one slice of an installment batch.
	Transaction struct {
		ID                 int64
		Type               TransactionType
		Description        string
		Amount             Money
		Category           string
		Date               Date
		Status             TransactionStatus
		IsRecurring        bool // advisory only, never expanded into future periods
		IsInstallment      bool
		Installments       int
		CurrentInstallment int
		CardID             *int64 // nil = no card; dangling references are tolerated
	}

	// Card is a billing instrument a transaction may reference. Deleting a
	// card clears CardID on referencing transactions (the store's job).
	Card struct {
		ID     int64
		Name   string
		DueDay int // day of month the bill is due, 1-31
		Color  string
	}
)

var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidStatus       = errors.New("invalid transaction status")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrMalformedAmount     = errors.New("malformed amount")
	ErrInvalidDueDay       = errors.New("invalid due day")
	ErrEmptyDescription    = errors.New("empty description")
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidInstallments = errors.New("invalid installment count")
)

// NewDate creates a Date from year, month, day. Out-of-range values
// normalize per the calendar (time.Date semantics).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// AddMonths returns the date n calendar months later. Day overflow rolls
// into the next month (Jan 31 + 1 month = Mar 2/3), the same rule the
// standard library applies in AddDate.
func (d Date) AddMonths(n int) Date {
	return Date{Time: d.AddDate(0, n, 0)}
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month, 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// InMonth reports whether the date falls inside the given calendar month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && d.Month() == month
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidType
}

func (s TransactionStatus) Validate() error {
	switch s {
	case Pending, Confirmed:
		return nil
	}
	return ErrInvalidStatus
}

// Toggle flips pending to confirmed and back.
func (s TransactionStatus) Toggle() TransactionStatus {
	if s == Confirmed {
		return Pending
	}
	return Confirmed
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Status.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Installments < 1 {
		return ErrInvalidInstallments
	}
	if t.CurrentInstallment < 1 || t.CurrentInstallment > t.Installments {
		return ErrInvalidInstallments
	}
	return nil
}

func (c Card) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
