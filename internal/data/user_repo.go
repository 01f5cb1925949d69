package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-auth-api/internal/core"
	"github.com/target/mmk-auth-api/internal/data/pgxutil"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
)

var _ core.UserRepository = (*UserRepo)(nil)

const (
	defaultUserListLimit = 50
	maxUserListLimit     = 500
)

// UserRepo is the Postgres credential store.
// Uniqueness of username and email is enforced by table constraints; a losing concurrent
// insert surfaces as a conflict error naming the column.
type UserRepo struct {
	DB  *sql.DB
	now func() time.Time
}

// NewUserRepo creates a new UserRepo stamping rows with the system clock.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, now: time.Now}
}

// NewUserRepoWithClock creates a new UserRepo with a custom clock for created_at/updated_at.
func NewUserRepoWithClock(db *sql.DB, now func() time.Time) *UserRepo {
	if now == nil {
		now = time.Now
	}
	return &UserRepo{DB: db, now: now}
}

// Create inserts a fully-resolved user record in a single statement.
func (r *UserRepo) Create(ctx context.Context, req *domainauth.CreateUserRequest) (*domainauth.User, error) {
	if req == nil {
		return nil, errors.New("create user request is required")
	}
	if !req.Role.Valid() {
		return nil, apperrors.ValidationField("role", "role must be one of USER, ADMIN")
	}
	source := req.AuthSource
	if source == "" {
		source = domainauth.AuthSourceLocal
	}

	out, err := pgxutil.QueryOne[domainauth.User](ctx, r.DB, userInsertQuery,
		uuid.NewString(),
		req.Username,
		domainauth.NormalizeEmail(req.Email),
		req.PasswordHash,
		req.FirstName,
		req.LastName,
		string(req.Role),
		string(source),
		r.now().UTC(),
	)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domainauth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFound("user not found")
	}
	return r.getByQuery(ctx, userGetByIDQuery, id)
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domainauth.User, error) {
	return r.getByQuery(ctx, userGetByUsernameQuery, username)
}

// GetByEmail retrieves a user by email; the lookup is case-insensitive because emails are stored lower-cased.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domainauth.User, error) {
	return r.getByQuery(ctx, userGetByEmailQuery, domainauth.NormalizeEmail(email))
}

// List retrieves users newest first with pagination.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*domainauth.User, error) {
	if limit <= 0 {
		limit = defaultUserListLimit
	}
	if limit > maxUserListLimit {
		limit = maxUserListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rowsOut, err := pgxutil.QueryAll[domainauth.User](ctx, r.DB, userListQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", apperrors.MapDBError(err))
	}

	res := make([]*domainauth.User, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Count returns the total number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", apperrors.MapDBError(err))
	}
	return n, nil
}

// Delete removes a user by ID and reports whether a row was deleted.
func (r *UserRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	affected, err := pgxutil.Exec(ctx, r.DB, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", apperrors.MapDBError(err))
	}
	return affected > 0, nil
}

// --- helpers ---

const (
	userColumns = `id, username, email, password_hash, first_name, last_name, role, auth_source, created_at, updated_at`

	userInsertQuery = `
		INSERT INTO users (
			id, username, email, password_hash, first_name, last_name, role, auth_source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + userColumns

	userGetByIDQuery       = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	userGetByUsernameQuery = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	userGetByEmailQuery    = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	userListQuery = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`
)

func (r *UserRepo) getByQuery(ctx context.Context, q string, arg string) (*domainauth.User, error) {
	u, err := pgxutil.QueryOne[domainauth.User](ctx, r.DB, q, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", apperrors.MapDBError(err))
	}
	return &u, nil
}
