package account

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/darasahub/darasa/core"
)

var (
	ErrNotFound    = errors.New("fee record not found")
	ErrOverpayment = errors.New("payment exceeds the outstanding amount")
)

type (
	Repository interface {
		CreateFee(ctx context.Context, fee FeeRecord, exec ...core.DBExecutor) (FeeRecord, error)
		// QueryFees lists a single school's fee records.
		QueryFees(ctx context.Context, schoolID string, filter *QueryFilter, exec ...core.DBExecutor) ([]FeeRecord, error)
		GetFeeByID(ctx context.Context, id string, exec ...core.DBExecutor) (FeeRecord, error)
		UpdateFee(ctx context.Context, fee FeeRecord, exec ...core.DBExecutor) (FeeRecord, error)
		DeleteFeesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Charge(ctx context.Context, schoolID string, nf NewFee) (FeeRecord, error) {
	now := time.Now().UTC()
	fee := FeeRecord{
		SchoolID:    schoolID,
		StudentID:   nf.StudentID,
		Description: nf.Description,
		Amount:      nf.Amount,
		Paid:        decimal.Zero,
		DueDate:     nf.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateFee(ctx, fee)
}

func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter) ([]FeeRecord, error) {
	return svc.repo.QueryFees(ctx, schoolID, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (FeeRecord, error) {
	return svc.repo.GetFeeByID(ctx, id)
}

// Pay applies a payment to a fee record; partial payments accumulate and an
// overpayment is refused.
func (svc *Service) Pay(ctx context.Context, id string, p Payment) (FeeRecord, error) {
	fee, err := svc.repo.GetFeeByID(ctx, id)
	if err != nil {
		return FeeRecord{}, err
	}
	if p.Amount.GreaterThan(fee.Outstanding()) {
		return FeeRecord{}, ErrOverpayment
	}
	fee.Paid = fee.Paid.Add(p.Amount)
	fee.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateFee(ctx, fee)
}

// OutstandingFor sums a student's unsettled balance within a school.
func (svc *Service) OutstandingFor(ctx context.Context, schoolID, studentID string) (decimal.Decimal, error) {
	fees, err := svc.repo.QueryFees(ctx, schoolID, &QueryFilter{StudentID: studentID})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, fee := range fees {
		total = total.Add(fee.Outstanding())
	}
	return total, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteFeesByID(ctx, ids)
}
