package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/account"
)

type feeRepository struct {
	db *feeTable
}

var _ account.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) account.Repository {
	return &feeRepository{db: db.fee}
}

func (repo *feeRepository) CreateFee(_ context.Context, fee account.FeeRecord, _ ...core.DBExecutor) (account.FeeRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	fee.ID = uuid.New().String()
	repo.db.table[fee.ID] = &fee
	return fee, nil
}

func (repo *feeRepository) QueryFees(
	_ context.Context,
	schoolID string,
	filter *account.QueryFilter,
	_ ...core.DBExecutor,
) ([]account.FeeRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var fees []account.FeeRecord
	for _, fee := range repo.db.table {
		if fee.SchoolID != schoolID {
			continue
		}
		if filter != nil {
			if filter.StudentID != "" && fee.StudentID != filter.StudentID {
				continue
			}
			if filter.Unsettled && fee.IsSettled() {
				continue
			}
		}
		fees = append(fees, *fee)
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i].CreatedAt.Before(fees[j].CreatedAt) })
	return fees, nil
}

func (repo *feeRepository) GetFeeByID(_ context.Context, id string, _ ...core.DBExecutor) (account.FeeRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fee, ok := repo.db.table[id]; ok {
		return *fee, nil
	}
	return account.FeeRecord{}, account.ErrNotFound
}

func (repo *feeRepository) UpdateFee(_ context.Context, fee account.FeeRecord, _ ...core.DBExecutor) (account.FeeRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[fee.ID]
	if !ok {
		return account.FeeRecord{}, account.ErrNotFound
	}
	orig.Paid = fee.Paid
	if !fee.UpdatedAt.IsZero() {
		orig.UpdatedAt = fee.UpdatedAt
	}

	repo.db.table[fee.ID] = orig
	return *orig, nil
}

func (repo *feeRepository) DeleteFeesByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
