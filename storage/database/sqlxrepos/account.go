package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/account"
)

type feeRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) account.Repository {
	return &feeRepository{db: db}
}

type feeRow struct {
	ID          string          `db:"id"`
	SchoolID    string          `db:"school_id"`
	StudentID   string          `db:"student_id"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	Paid        decimal.Decimal `db:"paid"`
	DueDate     null.Time       `db:"due_date"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

const feeCols = `id, school_id, student_id, description, amount, paid, due_date, created_at, updated_at`

func (r feeRow) toFee() account.FeeRecord {
	return account.FeeRecord{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		StudentID:   r.StudentID,
		Description: r.Description,
		Amount:      r.Amount,
		Paid:        r.Paid,
		DueDate:     r.DueDate.Time.UTC(),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (repo *feeRepository) CreateFee(ctx context.Context, fee account.FeeRecord, exec ...core.DBExecutor) (account.FeeRecord, error) {
	query := `
		INSERT INTO fee_record (school_id, student_id, description, amount, paid, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + feeCols

	var row feeRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query,
		fee.SchoolID, fee.StudentID, fee.Description, fee.Amount, fee.Paid,
		nullTime(fee.DueDate), fee.CreatedAt, fee.UpdatedAt)
	if err != nil {
		return account.FeeRecord{}, errors.Wrap(err, "inserting fee record")
	}
	return row.toFee(), nil
}

func (repo *feeRepository) QueryFees(
	ctx context.Context,
	schoolID string,
	filter *account.QueryFilter,
	exec ...core.DBExecutor,
) ([]account.FeeRecord, error) {
	conds := []string{"school_id = $1"}
	args := []interface{}{schoolID}

	if filter != nil {
		if filter.StudentID != "" {
			args = append(args, filter.StudentID)
			conds = append(conds, fmt.Sprintf("student_id = $%d", len(args)))
		}
		if filter.Unsettled {
			conds = append(conds, "paid < amount")
		}
	}

	query := `SELECT ` + feeCols + ` FROM fee_record WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY created_at ASC`

	var rows []feeRow
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying fee records")
	}
	if rows == nil {
		return nil, nil
	}
	fees := make([]account.FeeRecord, 0, len(rows))
	for _, r := range rows {
		fees = append(fees, r.toFee())
	}
	return fees, nil
}

func (repo *feeRepository) GetFeeByID(ctx context.Context, id string, exec ...core.DBExecutor) (account.FeeRecord, error) {
	query := `SELECT ` + feeCols + ` FROM fee_record WHERE id = $1`
	var row feeRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return account.FeeRecord{}, account.ErrNotFound
		}
		return account.FeeRecord{}, errors.Wrap(err, "getting fee record")
	}
	return row.toFee(), nil
}

func (repo *feeRepository) UpdateFee(ctx context.Context, fee account.FeeRecord, exec ...core.DBExecutor) (account.FeeRecord, error) {
	query := `UPDATE fee_record SET paid = $1, updated_at = $2 WHERE id = $3 RETURNING ` + feeCols

	var row feeRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, fee.Paid, fee.UpdatedAt, fee.ID); err != nil {
		if err == sql.ErrNoRows {
			return account.FeeRecord{}, account.ErrNotFound
		}
		return account.FeeRecord{}, errors.Wrap(err, "updating fee record")
	}
	return row.toFee(), nil
}

func (repo *feeRepository) DeleteFeesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := ext(repo.db, exec...).ExecContext(ctx, `DELETE FROM fee_record WHERE id = ANY($1)`, pqStringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting fee records")
	}
	return nil
}
