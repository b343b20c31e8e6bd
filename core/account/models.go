package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/darasahub/darasa/core"
)

// FeeRecord is a fee charged to a student within a school.
// Amounts are exact decimals; Paid never exceeds Amount.
type FeeRecord struct {
	ID          string          `json:"id"`
	SchoolID    string          `json:"school_id"`
	StudentID   string          `json:"student_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Paid        decimal.Decimal `json:"paid"`
	DueDate     time.Time       `json:"due_date"`   // UTC
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC
}

func (f FeeRecord) Outstanding() decimal.Decimal {
	return f.Amount.Sub(f.Paid)
}

func (f FeeRecord) IsSettled() bool {
	return f.Paid.GreaterThanOrEqual(f.Amount)
}

type NewFee struct {
	StudentID   string          `json:"student_id" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	DueDate     time.Time       `json:"due_date"`
}

func (nf *NewFee) Validate(validate *validator.Validate) error {
	nf.Description = core.CleanString(nf.Description)
	if err := validate.Struct(nf); err != nil {
		return err
	}
	if nf.Amount.LessThanOrEqual(decimal.Zero) {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be positive"})
	}
	return nil
}

type Payment struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

func (p Payment) Validate(validate *validator.Validate) error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be positive"})
	}
	return nil
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	Unsettled bool   `query:"unsettled"`
}
