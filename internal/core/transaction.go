package core

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the ISO layout used for transaction dates everywhere.
const DateLayout = "2006-01-02"

const maxDescriptionLength = 200

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind tags which variant a Transaction is.
	Kind string

	Date struct {
		time.Time
	}

	// Transaction is an immutable income or expense entry. Source is only
	// meaningful for Income, PaymentMethod only for Expense.
	Transaction struct {
		ID            string          `json:"id"`
		Description   string          `json:"description"`
		Amount        decimal.Decimal `json:"amount"`
		Date          Date            `json:"date"`
		CategoryID    string          `json:"category_id"`
		UserID        string          `json:"user_id"`
		Kind          Kind            `json:"kind"`
		Source        string          `json:"source,omitempty"`
		PaymentMethod string          `json:"payment_method,omitempty"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON shadows the promoted time.Time method so dates stay YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	return d.UnmarshalText([]byte(s))
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// NewID returns a fresh transaction id.
func NewID() string {
	return uuid.NewString()
}

// NewIncome builds an income transaction. An empty id is replaced by a new one.
func NewIncome(id, description string, amount decimal.Decimal, date Date, categoryID, userID, source string) Transaction {
	if id == "" {
		id = NewID()
	}
	return Transaction{
		ID:          id,
		Description: description,
		Amount:      amount,
		Date:        date,
		CategoryID:  categoryID,
		UserID:      userID,
		Kind:        Income,
		Source:      source,
	}
}

// NewExpense builds an expense transaction. An empty id is replaced by a new one.
func NewExpense(id, description string, amount decimal.Decimal, date Date, categoryID, userID, paymentMethod string) Transaction {
	if id == "" {
		id = NewID()
	}
	return Transaction{
		ID:            id,
		Description:   description,
		Amount:        amount,
		Date:          date,
		CategoryID:    categoryID,
		UserID:        userID,
		Kind:          Expense,
		PaymentMethod: paymentMethod,
	}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLength {
		return ErrDescriptionLength
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	return nil
}

// Signed returns the amount with expenses negated.
func (t Transaction) Signed() decimal.Decimal {
	switch t.Kind {
	case Expense:
		return t.Amount.Neg()
	default:
		return t.Amount
	}
}

// Detail returns the variant-specific field: the income source or the
// expense payment method.
func (t Transaction) Detail() string {
	switch t.Kind {
	case Income:
		return t.Source
	case Expense:
		return t.PaymentMethod
	default:
		return ""
	}
}

// Equal reports whether two transactions carry the same values. Amounts are
// compared numerically so 1.0 equals 1.
func (t Transaction) Equal(o Transaction) bool {
	return t.ID == o.ID &&
		t.Description == o.Description &&
		t.Amount.Equal(o.Amount) &&
		t.Date.Equal(o.Date.Time) &&
		t.CategoryID == o.CategoryID &&
		t.UserID == o.UserID &&
		t.Kind == o.Kind &&
		t.Source == o.Source &&
		t.PaymentMethod == o.PaymentMethod
}
