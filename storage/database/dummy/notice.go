package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/notice"
)

type noticeRepository struct {
	db *noticeTable
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(db *DB) notice.Repository {
	return &noticeRepository{db: db.notice}
}

func (repo *noticeRepository) CreateNotice(_ context.Context, n notice.Notice, _ ...core.DBExecutor) (notice.Notice, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.ID = uuid.New().String()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *noticeRepository) QueryNotices(_ context.Context, schoolID string, _ ...core.DBExecutor) ([]notice.Notice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var notices []notice.Notice
	for _, n := range repo.db.table {
		if n.SchoolID == schoolID {
			notices = append(notices, *n)
		}
	}
	sort.Slice(notices, func(i, j int) bool { return notices[i].PublishedAt.After(notices[j].PublishedAt) })
	return notices, nil
}

func (repo *noticeRepository) GetNoticeByID(_ context.Context, id string, _ ...core.DBExecutor) (notice.Notice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notice.Notice{}, notice.ErrNotFound
}

func (repo *noticeRepository) UpdateNotice(_ context.Context, n notice.Notice, _ ...core.DBExecutor) (notice.Notice, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[n.ID]
	if !ok {
		return notice.Notice{}, notice.ErrNotFound
	}
	if n.Title != "" {
		orig.Title = n.Title
	}
	if n.Body != "" {
		orig.Body = n.Body
	}
	if n.Audience != nil {
		orig.Audience = n.Audience
	}
	if !n.ExpiresAt.IsZero() {
		orig.ExpiresAt = n.ExpiresAt
	}
	if !n.UpdatedAt.IsZero() {
		orig.UpdatedAt = n.UpdatedAt
	}

	repo.db.table[n.ID] = orig
	return *orig, nil
}

func (repo *noticeRepository) DeleteNoticesByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
