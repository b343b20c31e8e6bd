package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/notice"
	"github.com/darasahub/darasa/core/user"
)

type noticeRepository struct {
	db *sqlx.DB
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(db *sqlx.DB) notice.Repository {
	return &noticeRepository{db: db}
}

type noticeRow struct {
	ID          string        `db:"id"`
	SchoolID    string        `db:"school_id"`
	BranchID    null.String   `db:"branch_id"`
	Title       string        `db:"title"`
	Body        string        `db:"body"`
	Audience    pq.Int64Array `db:"audience"`
	PublishedAt time.Time     `db:"published_at"`
	ExpiresAt   null.Time     `db:"expires_at"`
	CreatedBy   string        `db:"created_by"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

const noticeCols = `id, school_id, branch_id, title, body, audience, published_at, expires_at, created_by, created_at, updated_at`

func (r noticeRow) toNotice() notice.Notice {
	var audience []user.Role
	for _, id := range r.Audience {
		if role, err := user.ParseRole(int(id)); err == nil {
			audience = append(audience, role)
		}
	}
	return notice.Notice{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		BranchID:    r.BranchID.String,
		Title:       r.Title,
		Body:        r.Body,
		Audience:    audience,
		PublishedAt: r.PublishedAt.UTC(),
		ExpiresAt:   r.ExpiresAt.Time.UTC(),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func audienceArray(audience []user.Role) pq.Int64Array {
	if audience == nil {
		return nil
	}
	ids := make(pq.Int64Array, 0, len(audience))
	for _, role := range audience {
		ids = append(ids, int64(role))
	}
	return ids
}

func nullString(s string) null.String {
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

func (repo *noticeRepository) CreateNotice(ctx context.Context, n notice.Notice, exec ...core.DBExecutor) (notice.Notice, error) {
	query := `
		INSERT INTO notice (school_id, branch_id, title, body, audience, published_at, expires_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + noticeCols

	var row noticeRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query,
		n.SchoolID, nullString(n.BranchID), n.Title, n.Body, audienceArray(n.Audience),
		n.PublishedAt, nullTime(n.ExpiresAt), n.CreatedBy, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return notice.Notice{}, errors.Wrap(err, "inserting notice")
	}
	return row.toNotice(), nil
}

func (repo *noticeRepository) QueryNotices(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]notice.Notice, error) {
	var rows []noticeRow
	query := `SELECT ` + noticeCols + ` FROM notice WHERE school_id = $1 ORDER BY published_at DESC`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, query, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying notices")
	}
	if rows == nil {
		return nil, nil
	}
	notices := make([]notice.Notice, 0, len(rows))
	for _, r := range rows {
		notices = append(notices, r.toNotice())
	}
	return notices, nil
}

func (repo *noticeRepository) GetNoticeByID(ctx context.Context, id string, exec ...core.DBExecutor) (notice.Notice, error) {
	query := `SELECT ` + noticeCols + ` FROM notice WHERE id = $1`
	var row noticeRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return notice.Notice{}, notice.ErrNotFound
		}
		return notice.Notice{}, errors.Wrap(err, "getting notice")
	}
	return row.toNotice(), nil
}

func (repo *noticeRepository) UpdateNotice(ctx context.Context, n notice.Notice, exec ...core.DBExecutor) (notice.Notice, error) {
	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if n.Title != "" {
		set("title", n.Title)
	}
	if n.Body != "" {
		set("body", n.Body)
	}
	if n.Audience != nil {
		set("audience", audienceArray(n.Audience))
	}
	if !n.ExpiresAt.IsZero() {
		set("expires_at", nullTime(n.ExpiresAt))
	}
	if !n.UpdatedAt.IsZero() {
		set("updated_at", n.UpdatedAt)
	}
	if len(sets) == 0 {
		return repo.GetNoticeByID(ctx, n.ID, exec...)
	}

	args = append(args, n.ID)
	query := fmt.Sprintf(`UPDATE notice SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), noticeCols)

	var row noticeRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return notice.Notice{}, notice.ErrNotFound
		}
		return notice.Notice{}, errors.Wrap(err, "updating notice")
	}
	return row.toNotice(), nil
}

func (repo *noticeRepository) DeleteNoticesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := ext(repo.db, exec...).ExecContext(ctx, `DELETE FROM notice WHERE id = ANY($1)`, pqStringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting notices")
	}
	return nil
}
