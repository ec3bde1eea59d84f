package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	"github.com/geocoder89/tripdesk/internal/utils"
	"github.com/google/uuid"
)

var (
	ErrNotFound         = user.ErrNotFound
	ErrEmailAlreadyUsed = user.ErrEmailTaken
	ErrNotAdmin         = user.ErrNotAdmin
)

// UsersRepo is an in-process user store with the same contract as the postgres one.
type UsersRepo struct {
	mu       sync.RWMutex
	items    map[string]user.User
	switches []user.RoleSwitch
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	u, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, ErrNotFound
	}

	return clone(u), nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}

	return user.User{}, ErrNotFound
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

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if strings.EqualFold(existing.Email, email) {
			return user.User{}, ErrEmailAlreadyUsed
		}
	}

	r.items[u.ID] = u

	return clone(u), nil
}

func (r *UsersRepo) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	r.mu.RLock()
	all := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		all = append(all, clone(u))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []user.User{}, nil
	}

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	return all[offset:end], nil
}

func (r *UsersRepo) SwitchActiveRole(ctx context.Context, userID string, target role.Role) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[userID]
	if !ok || !u.Role.IsAdmin() {
		return user.User{}, ErrNotAdmin
	}

	from := u.ActiveRole
	to := target

	now := time.Now().UTC()
	// keep the audit trail strictly ordered by time
	if n := len(r.switches); n > 0 && !now.After(r.switches[n-1].CreatedAt) {
		now = r.switches[n-1].CreatedAt.Add(time.Nanosecond)
	}

	u.ActiveRole = &to
	u.UpdatedAt = now
	r.items[userID] = u

	r.switches = append(r.switches, user.RoleSwitch{
		ID:        uuid.NewString(),
		UserID:    userID,
		FromRole:  from,
		ToRole:    target,
		CreatedAt: u.UpdatedAt,
	})

	return clone(u), nil
}

func (r *UsersRepo) ListRoleSwitches(
	ctx context.Context,
	limit int,
	afterCreatedAt time.Time,
	afterID string,
) (items []user.RoleSwitch, nextCursor *string, hasMore bool, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]user.RoleSwitch, 0, limit+1)

	// switches are appended in time order, so walk backwards for DESC
	for i := len(r.switches) - 1; i >= 0 && len(out) <= limit; i-- {
		s := r.switches[i]

		if s.CreatedAt.After(afterCreatedAt) || (s.CreatedAt.Equal(afterCreatedAt) && s.ID >= afterID) {
			continue
		}
		out = append(out, cloneSwitch(s))
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

func cloneSwitch(s user.RoleSwitch) user.RoleSwitch {
	if s.FromRole != nil {
		from := *s.FromRole
		s.FromRole = &from
	}
	return s
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return nil
}

// clone detaches the ActiveRole pointer so callers never share state with the store.
func clone(u user.User) user.User {
	if u.ActiveRole != nil {
		r := *u.ActiveRole
		u.ActiveRole = &r
	}
	return u
}
