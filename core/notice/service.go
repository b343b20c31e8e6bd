package notice

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
)

var ErrNotFound = errors.New("notice not found")

type (
	Repository interface {
		CreateNotice(ctx context.Context, n Notice, exec ...core.DBExecutor) (Notice, error)
		// QueryNotices lists a single school's notices, newest first.
		QueryNotices(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]Notice, error)
		GetNoticeByID(ctx context.Context, id string, exec ...core.DBExecutor) (Notice, error)
		UpdateNotice(ctx context.Context, n Notice, exec ...core.DBExecutor) (Notice, error)
		DeleteNoticesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, schoolID, createdBy string, nn NewNotice) (Notice, error) {
	now := time.Now().UTC()
	n := Notice{
		SchoolID:    schoolID,
		BranchID:    nn.BranchID,
		Title:       nn.Title,
		Body:        nn.Body,
		Audience:    nn.Audience,
		PublishedAt: nn.PublishedAt,
		ExpiresAt:   nn.ExpiresAt,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if n.PublishedAt.IsZero() {
		n.PublishedAt = now
	}
	return svc.repo.CreateNotice(ctx, n)
}

// Query lists a school's notices matching the filter; the result never
// contains another school's notices.
func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter) ([]Notice, error) {
	notices, err := svc.repo.QueryNotices(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return notices, nil
	}

	at := filter.ActiveAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	filtered := make([]Notice, 0, len(notices))
	for _, n := range notices {
		if filter.Role != 0 || filter.BranchID != "" {
			if !n.VisibleTo(filter.Role, filter.BranchID, at) {
				continue
			}
		}
		filtered = append(filtered, n)
	}
	return filtered, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Notice, error) {
	return svc.repo.GetNoticeByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, un UpdateNotice) (Notice, error) {
	n := Notice{
		ID:        id,
		Title:     un.Title,
		Body:      un.Body,
		Audience:  un.Audience,
		ExpiresAt: un.ExpiresAt,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateNotice(ctx, n)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteNoticesByID(ctx, ids)
}
