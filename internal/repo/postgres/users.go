package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	"github.com/geocoder89/tripdesk/internal/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound     = user.ErrNotFound
	ErrEmailAlreadyUsed = user.ErrEmailTaken
	// ErrNotAdmin is returned when an active role write targets a non-admin account.
	ErrNotAdmin = user.ErrNotAdmin
)

// DBObserver times a logical DB operation. observability.Prom implements it.
type DBObserver interface {
	ObserveDB(op string, fn func() error) error
}

type UsersRepo struct {
	pool *pgxpool.Pool
	obs  DBObserver
}

func NewUsersRepo(pool *pgxpool.Pool, obs DBObserver) *UsersRepo {
	return &UsersRepo{pool: pool, obs: obs}
}

const userColumns = `id, email, password_hash, name, role, active_role, created_at, updated_at`

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.obs == nil {
		return fn()
	}
	return r.obs.ObserveDB(op, fn)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, ErrUserNotFound
	}

	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
		return err
	})

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name string, base role.Base) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         base,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role), u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, ErrEmailAlreadyUsed
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	var out []user.User

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2`,
			limit, offset,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})

	return out, err
}

// SwitchActiveRole sets active_role for an admin and records the switch, in one
// transaction. The returned user is read after the write inside that transaction.
func (r *UsersRepo) SwitchActiveRole(ctx context.Context, userID string, target role.Role) (user.User, error) {
	var updated user.User

	err := r.observe("users.switch_active_role", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		// lock the row so concurrent switches are serialized
		var from *string
		err = tx.QueryRow(ctx,
			`SELECT active_role FROM users WHERE id = $1 AND role = 'admin' FOR UPDATE`,
			userID,
		).Scan(&from)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotAdmin
			}
			return err
		}

		updated, err = scanUser(tx.QueryRow(ctx,
			`UPDATE users SET active_role = $2, updated_at = NOW()
			WHERE id = $1 AND role = 'admin'
			RETURNING `+userColumns,
			userID, string(target),
		))
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return ErrNotAdmin
			}
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO role_switches (id, user_id, from_role, to_role, created_at)
			VALUES ($1,$2,$3,$4,NOW())`,
			uuid.NewString(), userID, from, string(target),
		)
		if err != nil {
			return fmt.Errorf("record role switch: %w", err)
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return user.User{}, err
	}

	return updated, nil
}

// ListRoleSwitches pages the audit trail newest first, keyset on (created_at, id).
func (r *UsersRepo) ListRoleSwitches(
	ctx context.Context,
	limit int,
	afterCreatedAt time.Time,
	afterID string,
) (items []user.RoleSwitch, nextCursor *string, hasMore bool, err error) {
	var rows pgx.Rows

	err = r.observe("role_switches.list_cursor", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx,
			`SELECT id, user_id, from_role, to_role, created_at
			FROM role_switches
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3`,
			afterCreatedAt, afterID, limit+1,
		)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]user.RoleSwitch, 0, limit)

	for rows.Next() {
		var (
			s    user.RoleSwitch
			from *string
			to   string
		)

		if scanErr := rows.Scan(&s.ID, &s.UserID, &from, &to, &s.CreatedAt); scanErr != nil {
			return nil, nil, false, scanErr
		}

		s.FromRole = parseActiveRole(from)
		s.ToRole = role.Role(to)
		out = append(out, s)
	}

	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]

		cur, encErr := utils.EncodeSwitchCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (user.User, error) {
	var (
		u      user.User
		base   string
		active *string
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&base,
		&active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}

	u.Role = role.Base(base)
	u.ActiveRole = parseActiveRole(active)

	return u, nil
}

func parseActiveRole(s *string) *role.Role {
	if s == nil {
		return nil
	}

	r, err := role.ParseRole(*s)
	if err != nil {
		return nil
	}

	return &r
}
