package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

type (
	schoolRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		Slug      string    `db:"slug"`
		IsActive  bool      `db:"is_active"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	branchRow struct {
		ID             string    `db:"id"`
		SchoolID       string    `db:"school_id"`
		Name           string    `db:"name"`
		Code           string    `db:"code"`
		IsHeadquarters bool      `db:"is_headquarters"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}

	membershipRow struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		SchoolID  string    `db:"school_id"`
		IsDefault bool      `db:"is_default"`
		CreatedAt time.Time `db:"created_at"`
	}
)

const (
	schoolCols = `id, name, slug, is_active, created_at, updated_at`
	branchCols = `id, school_id, name, code, is_headquarters, created_at, updated_at`
)

func (r schoolRow) toSchool() school.School {
	return school.School{
		ID:        r.ID,
		Name:      r.Name,
		Slug:      r.Slug,
		IsActive:  &r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r branchRow) toBranch() school.Branch {
	return school.Branch{
		ID:             r.ID,
		SchoolID:       r.SchoolID,
		Name:           r.Name,
		Code:           r.Code,
		IsHeadquarters: r.IsHeadquarters,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func toSchools(rows []schoolRow) []school.School {
	if rows == nil {
		return nil
	}
	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, r.toSchool())
	}
	return schools
}

func (repo *schoolRepository) CheckSlugUniqueness(
	ctx context.Context,
	slug string,
	excludedSchools []school.School,
	exec ...core.DBExecutor,
) error {
	excluded := make([]string, 0, len(excludedSchools))
	for _, sch := range excludedSchools {
		excluded = append(excluded, sch.ID)
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM school WHERE slug = $1 AND id <> ALL($2))`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &exists, query, slug, pqStringArray(excluded)); err != nil {
		return errors.Wrap(err, "checking slug uniqueness")
	}
	if exists {
		return school.ErrSlugExists
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	query := `
		INSERT INTO school (name, slug, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + schoolCols

	isActive := sch.IsActive == nil || *sch.IsActive
	var row schoolRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query,
		sch.Name, sch.Slug, isActive, sch.CreatedAt, sch.UpdatedAt)
	if err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) QueryAllSchools(ctx context.Context, exec ...core.DBExecutor) ([]school.School, error) {
	var rows []schoolRow
	query := `SELECT ` + schoolCols + ` FROM school ORDER BY name ASC`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	return toSchools(rows), nil
}

func (repo *schoolRepository) getSchoolBy(ctx context.Context, cond string, val interface{}, exec ...core.DBExecutor) (school.School, error) {
	query := `SELECT ` + schoolCols + ` FROM school WHERE ` + cond
	var row schoolRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, val); err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "getting school")
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error) {
	return repo.getSchoolBy(ctx, "id = $1", id, exec...)
}

func (repo *schoolRepository) GetSchoolBySlug(ctx context.Context, slug string, exec ...core.DBExecutor) (school.School, error) {
	return repo.getSchoolBy(ctx, "slug = $1", slug, exec...)
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School, isActive *bool, exec ...core.DBExecutor) (school.School, error) {
	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if sch.Name != "" {
		set("name", sch.Name)
	}
	if sch.Slug != "" {
		set("slug", sch.Slug)
	}
	if isActive != nil {
		set("is_active", *isActive)
	}
	if !sch.UpdatedAt.IsZero() {
		set("updated_at", sch.UpdatedAt)
	}
	if len(sets) == 0 {
		return repo.GetSchoolByID(ctx, sch.ID, exec...)
	}

	args = append(args, sch.ID)
	query := fmt.Sprintf(`UPDATE school SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), schoolCols)

	var row schoolRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "updating school")
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) DeleteSchoolsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := ext(repo.db, exec...).ExecContext(ctx, `DELETE FROM school WHERE id = ANY($1)`, pqStringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting schools")
	}
	return nil
}

func (repo *schoolRepository) CheckBranchCodeUniqueness(
	ctx context.Context,
	schoolID, code string,
	excludedBranches []school.Branch,
	exec ...core.DBExecutor,
) error {
	excluded := make([]string, 0, len(excludedBranches))
	for _, br := range excludedBranches {
		excluded = append(excluded, br.ID)
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM branch WHERE school_id = $1 AND code = $2 AND id <> ALL($3))`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &exists, query, schoolID, code, pqStringArray(excluded)); err != nil {
		return errors.Wrap(err, "checking branch code uniqueness")
	}
	if exists {
		return school.ErrCodeExists
	}
	return nil
}

func (repo *schoolRepository) CreateBranch(ctx context.Context, br school.Branch, exec ...core.DBExecutor) (school.Branch, error) {
	query := `
		INSERT INTO branch (school_id, name, code, is_headquarters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + branchCols

	var row branchRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query,
		br.SchoolID, br.Name, br.Code, br.IsHeadquarters, br.CreatedAt, br.UpdatedAt)
	if err != nil {
		return school.Branch{}, errors.Wrap(err, "inserting branch")
	}
	return row.toBranch(), nil
}

func (repo *schoolRepository) QueryBranches(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]school.Branch, error) {
	var rows []branchRow
	query := `SELECT ` + branchCols + ` FROM branch WHERE school_id = $1 ORDER BY name ASC`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, query, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying branches")
	}
	if rows == nil {
		return nil, nil
	}
	branches := make([]school.Branch, 0, len(rows))
	for _, r := range rows {
		branches = append(branches, r.toBranch())
	}
	return branches, nil
}

func (repo *schoolRepository) GetBranchByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.Branch, error) {
	query := `SELECT ` + branchCols + ` FROM branch WHERE id = $1`
	var row branchRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Branch{}, school.ErrBranchNotFound
		}
		return school.Branch{}, errors.Wrap(err, "getting branch")
	}
	return row.toBranch(), nil
}

func (repo *schoolRepository) UpdateBranch(ctx context.Context, br school.Branch, isHeadquarters *bool, exec ...core.DBExecutor) (school.Branch, error) {
	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if br.Name != "" {
		set("name", br.Name)
	}
	if br.Code != "" {
		set("code", br.Code)
	}
	if isHeadquarters != nil {
		set("is_headquarters", *isHeadquarters)
	}
	if !br.UpdatedAt.IsZero() {
		set("updated_at", br.UpdatedAt)
	}
	if len(sets) == 0 {
		return repo.GetBranchByID(ctx, br.ID, exec...)
	}

	args = append(args, br.ID)
	query := fmt.Sprintf(`UPDATE branch SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), branchCols)

	var row branchRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return school.Branch{}, school.ErrBranchNotFound
		}
		return school.Branch{}, errors.Wrap(err, "updating branch")
	}
	return row.toBranch(), nil
}

func (repo *schoolRepository) DeleteBranchesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := ext(repo.db, exec...).ExecContext(ctx, `DELETE FROM branch WHERE id = ANY($1)`, pqStringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting branches")
	}
	return nil
}

func (repo *schoolRepository) CreateMembership(ctx context.Context, m school.Membership, exec ...core.DBExecutor) (school.Membership, error) {
	query := `
		INSERT INTO membership (user_id, school_id, is_default, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, school_id) DO UPDATE SET is_default = EXCLUDED.is_default
		RETURNING id, user_id, school_id, is_default, created_at`

	var row membershipRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, m.UserID, m.SchoolID, m.IsDefault, m.CreatedAt)
	if err != nil {
		return school.Membership{}, errors.Wrap(err, "inserting membership")
	}
	return school.Membership{
		ID:        row.ID,
		UserID:    row.UserID,
		SchoolID:  row.SchoolID,
		IsDefault: row.IsDefault,
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}

func (repo *schoolRepository) DeleteMembership(ctx context.Context, userID, schoolID string, exec ...core.DBExecutor) error {
	query := `DELETE FROM membership WHERE user_id = $1 AND school_id = $2`
	if _, err := ext(repo.db, exec...).ExecContext(ctx, query, userID, schoolID); err != nil {
		return errors.Wrap(err, "deleting membership")
	}
	return nil
}

func (repo *schoolRepository) QueryMemberSchools(ctx context.Context, userID string, exec ...core.DBExecutor) ([]school.School, error) {
	var rows []schoolRow
	query := `
		SELECT s.id, s.name, s.slug, s.is_active, s.created_at, s.updated_at
		FROM school s
		         JOIN membership m ON m.school_id = s.id
		WHERE m.user_id = $1
		ORDER BY s.name ASC`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying member schools")
	}
	return toSchools(rows), nil
}

func (repo *schoolRepository) IsMember(ctx context.Context, userID, schoolID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM membership WHERE user_id = $1 AND school_id = $2)`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &exists, query, userID, schoolID); err != nil {
		return false, errors.Wrap(err, "checking membership")
	}
	return exists, nil
}
