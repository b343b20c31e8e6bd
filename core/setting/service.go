package setting

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
)

var ErrNotFound = errors.New("setting not found")

// Setting is a per-school configuration entry.
type Setting struct {
	SchoolID  string    `json:"school_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type (
	Repository interface {
		// UpsertSetting creates or replaces the value for (schoolID, key).
		UpsertSetting(ctx context.Context, s Setting, exec ...core.DBExecutor) (Setting, error)
		GetSetting(ctx context.Context, schoolID, key string, exec ...core.DBExecutor) (Setting, error)
		QuerySettings(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]Setting, error)
		DeleteSetting(ctx context.Context, schoolID, key string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Set(ctx context.Context, schoolID, key, value string) (Setting, error) {
	key = core.CleanString(key, true /* lower */)
	if key == "" {
		return Setting{}, core.NewValidationError(nil, core.FieldError{Field: "key", Error: "this field is required"})
	}
	return svc.repo.UpsertSetting(ctx, Setting{
		SchoolID:  schoolID,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	})
}

func (svc *Service) Get(ctx context.Context, schoolID, key string) (Setting, error) {
	return svc.repo.GetSetting(ctx, schoolID, core.CleanString(key, true /* lower */))
}

func (svc *Service) All(ctx context.Context, schoolID string) ([]Setting, error) {
	return svc.repo.QuerySettings(ctx, schoolID)
}

func (svc *Service) Delete(ctx context.Context, schoolID, key string) error {
	return svc.repo.DeleteSetting(ctx, schoolID, core.CleanString(key, true /* lower */))
}
