package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/setting"
)

type settingRepository struct {
	db *sqlx.DB
}

var _ setting.Repository = (*settingRepository)(nil) // interface compliance check

func NewSettingRepository(db *sqlx.DB) setting.Repository {
	return &settingRepository{db: db}
}

type settingRow struct {
	SchoolID  string    `db:"school_id"`
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r settingRow) toSetting() setting.Setting {
	return setting.Setting{
		SchoolID:  r.SchoolID,
		Key:       r.Key,
		Value:     r.Value,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (repo *settingRepository) UpsertSetting(ctx context.Context, s setting.Setting, exec ...core.DBExecutor) (setting.Setting, error) {
	query := `
		INSERT INTO setting (school_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (school_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		RETURNING school_id, key, value, updated_at`

	var row settingRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, s.SchoolID, s.Key, s.Value, s.UpdatedAt); err != nil {
		return setting.Setting{}, errors.Wrap(err, "upserting setting")
	}
	return row.toSetting(), nil
}

func (repo *settingRepository) GetSetting(ctx context.Context, schoolID, key string, exec ...core.DBExecutor) (setting.Setting, error) {
	query := `SELECT school_id, key, value, updated_at FROM setting WHERE school_id = $1 AND key = $2`
	var row settingRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, schoolID, key); err != nil {
		if err == sql.ErrNoRows {
			return setting.Setting{}, setting.ErrNotFound
		}
		return setting.Setting{}, errors.Wrap(err, "getting setting")
	}
	return row.toSetting(), nil
}

func (repo *settingRepository) QuerySettings(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]setting.Setting, error) {
	var rows []settingRow
	query := `SELECT school_id, key, value, updated_at FROM setting WHERE school_id = $1 ORDER BY key ASC`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, query, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying settings")
	}
	if rows == nil {
		return nil, nil
	}
	settings := make([]setting.Setting, 0, len(rows))
	for _, r := range rows {
		settings = append(settings, r.toSetting())
	}
	return settings, nil
}

func (repo *settingRepository) DeleteSetting(ctx context.Context, schoolID, key string, exec ...core.DBExecutor) error {
	query := `DELETE FROM setting WHERE school_id = $1 AND key = $2`
	if _, err := ext(repo.db, exec...).ExecContext(ctx, query, schoolID, key); err != nil {
		return errors.Wrap(err, "deleting setting")
	}
	return nil
}
