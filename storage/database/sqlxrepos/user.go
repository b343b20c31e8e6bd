package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

type userRow struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Username       string    `db:"username"`
	Email          string    `db:"email"`
	EmailConfirmed bool      `db:"email_confirmed"`
	IsActive       bool      `db:"is_active"`
	RoleID         int       `db:"role_id"`
	PasswordHash   []byte    `db:"password_hash"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	LastLogin      null.Time `db:"last_login"`
}

const userCols = `id, name, username, email, email_confirmed, is_active, role_id, password_hash, created_at, updated_at, last_login`

func (r userRow) toUser() user.User {
	role, _ := user.ParseRole(r.RoleID)
	return user.User{
		ID:             r.ID,
		Name:           r.Name,
		Username:       r.Username,
		Email:          r.Email,
		EmailConfirmed: r.EmailConfirmed,
		IsActive:       &r.IsActive,
		Role:           role,
		PasswordHash:   r.PasswordHash,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		LastLogin:      r.LastLogin.Time.UTC(),
	}
}

func toUsers(rows []userRow) []user.User {
	if rows == nil {
		return nil
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

func nullTime(t time.Time) null.Time {
	if t.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(t)
}

func (repo *userRepository) CheckUsernameUniqueness(
	ctx context.Context,
	username, email string,
	excludedUsers []user.User,
	exec ...core.DBExecutor,
) error {
	excluded := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	check := func(col, val string, matchErr error) error {
		if val == "" {
			return nil
		}
		query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM "user" WHERE %s = $1 AND id <> ALL($2))`, col)
		var exists bool
		if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &exists, query, val, pqStringArray(excluded)); err != nil {
			return errors.Wrapf(err, "checking %s uniqueness", col)
		}
		if exists {
			return matchErr
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	query := `
		INSERT INTO "user" (name, username, email, email_confirmed, is_active, role_id, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userCols

	isActive := usr.IsActive == nil || *usr.IsActive
	var row userRow
	err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query,
		usr.Name, usr.Username, usr.Email, usr.EmailConfirmed, isActive, int(usr.Role),
		usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.toUser(), nil
}

// userOrderCols whitelists the sortable columns.
var userOrderCols = map[string]bool{
	"name": true, "username": true, "email": true, "role_id": true,
	"created_at": true, "updated_at": true, "last_login": true,
}

func (repo *userRepository) QueryUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]user.User, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", p))
		}
		if len(filter.Roles) > 0 {
			ids := make([]int64, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				ids = append(ids, int64(role))
			}
			conds = append(conds, fmt.Sprintf("role_id = ANY(%s)", arg(pqInt64Array(ids))))
		}
		if filter.IsActive != nil {
			conds = append(conds, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, fmt.Sprintf("created_at >= %s", arg(filter.CreatedFrom.UTC())))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, fmt.Sprintf("created_at <= %s", arg(filter.CreatedTo.UTC())))
		}
	}

	query := `SELECT ` + userCols + ` FROM "user"`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var orderings []string
	for _, ord := range ordering {
		if userOrderCols[ord.Field] {
			orderings = append(orderings, ord.String())
		}
	}
	if len(orderings) == 0 {
		orderings = []string{"created_at ASC"}
	}
	query += " ORDER BY " + strings.Join(orderings, ", ")

	var rows []userRow
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) getBy(ctx context.Context, cond string, val interface{}, exec ...core.DBExecutor) (user.User, error) {
	query := `SELECT ` + userCols + ` FROM "user" WHERE ` + cond
	var row userRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, val); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getBy(ctx, "id = $1", id, exec...)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getBy(ctx, "username = $1 AND username <> ''", username, exec...)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getBy(ctx, "email = $1 AND email <> ''", email, exec...)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getBy(ctx, "(username = $1 OR email = $1) AND $1 <> ''", username, exec...)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool, exec ...core.DBExecutor) (user.User, error) {
	// only save set fields
	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if usr.Name != "" {
		set("name", usr.Name)
	}
	if usr.Username != "" {
		set("username", usr.Username)
	}
	if usr.Email != "" {
		set("email", usr.Email)
	}
	if usr.EmailConfirmed {
		set("email_confirmed", true)
	}
	if usr.Role != 0 {
		set("role_id", int(usr.Role))
	}
	if usr.PasswordHash != nil {
		set("password_hash", usr.PasswordHash)
	}
	if isActive != nil {
		set("is_active", *isActive)
	}
	if !usr.LastLogin.IsZero() {
		set("last_login", nullTime(usr.LastLogin))
	}
	if !usr.UpdatedAt.IsZero() {
		set("updated_at", usr.UpdatedAt)
	}
	if len(sets) == 0 {
		return repo.GetUserByID(ctx, usr.ID, exec...)
	}

	args = append(args, usr.ID)
	query := fmt.Sprintf(`UPDATE "user" SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userCols)

	var row userRow
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM "user" WHERE id = ANY($1)`
	if _, err := ext(repo.db, exec...).ExecContext(ctx, query, pqStringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
