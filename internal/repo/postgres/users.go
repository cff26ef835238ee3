package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/geocoder89/shiftreports/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, full_name, password_hash, role, is_active, submissions_count, batches_sent, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.Role,
		&u.IsActive,
		&u.SubmissionsCount,
		&u.BatchesSent,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (r *UsersRepo) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, full_name, password_hash, role, is_active, submissions_count, batches_sent, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			u.ID, u.Email, u.FullName, u.PasswordHash, string(u.Role), u.IsActive, u.SubmissionsCount, u.BatchesSent, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if isConstraint(err, "users_email_uniq") {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	if uuid.Validate(id) != nil {
		return user.User{}, user.ErrNotFound
	}

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {

			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) ListUsers(ctx context.Context) ([]user.User, error) {
	var rows pgx.Rows

	err := r.observe("users.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, email ASC`)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}

	return out, rows.Err()
}

func (r *UsersRepo) UserStats(ctx context.Context) ([]user.Stats, error) {
	var rows pgx.Rows

	err := r.observe("users.stats", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
			SELECT id, email, full_name, submissions_count, batches_sent
			FROM users
			ORDER BY created_at ASC, email ASC
		`)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]user.Stats, 0)
	for rows.Next() {
		var s user.Stats
		if err := rows.Scan(&s.ID, &s.Email, &s.FullName, &s.SubmissionsCount, &s.BatchesSent); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func (r *UsersRepo) SetActive(ctx context.Context, id string, active bool) error {
	var tag pgconn.CommandTag

	err := r.observe("users.set_active", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
		return err
	})
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
