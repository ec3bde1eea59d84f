package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/tripdesk/internal/access"
	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
)

type RoleWriter interface {
	SwitchActiveRole(ctx context.Context, userID string, target role.Role) (user.User, error)
}

// SwitchRecorder counts role switch outcomes. observability.Prom implements it.
type SwitchRecorder interface {
	RoleSwitch(result string)
}

type Service struct {
	users   RoleWriter
	log     *slog.Logger
	metrics SwitchRecorder
}

func NewService(users RoleWriter, log *slog.Logger, metrics SwitchRecorder) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{users: users, log: log, metrics: metrics}
}

// SwitchRole persists target as requester's active role. The caller is checked
// before the target value, so a non-admin always gets ErrForbidden. The returned
// user reflects the committed write.
func (s *Service) SwitchRole(ctx context.Context, requester *user.User, target string) (user.User, error) {
	if requester == nil {
		s.record("unauthenticated")
		return user.User{}, access.ErrUnauthenticated
	}

	if !requester.Role.IsAdmin() {
		s.record("forbidden")
		s.log.WarnContext(ctx, "role switch refused", "user_id", requester.ID, "role", requester.Role, "target", target)
		return user.User{}, access.ErrForbidden
	}

	r, err := role.ParseRole(target)
	if err != nil {
		s.record("invalid_role")
		return user.User{}, err
	}

	updated, err := s.users.SwitchActiveRole(ctx, requester.ID, r)
	if err != nil {
		if errors.Is(err, user.ErrNotAdmin) {
			// the stored account is no longer an admin
			s.record("forbidden")
			return user.User{}, access.ErrForbidden
		}

		s.record("error")
		return user.User{}, fmt.Errorf("switch role: %w", err)
	}

	s.record("ok")
	s.log.InfoContext(ctx, "role switched", "user_id", requester.ID, "to", r)

	return updated, nil
}

func (s *Service) record(result string) {
	if s.metrics != nil {
		s.metrics.RoleSwitch(result)
	}
}
