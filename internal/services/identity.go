package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"caixa/internal/core"
	"caixa/internal/log"
)

// IdentityService resolves authenticated emails to member identities with
// stable anonymous handles, and handles admin moderation of members.
type IdentityService struct {
	store   UserStore
	audit   *AuditService
	isAdmin func(email string) bool
	logger  *log.Logger
}

func NewIdentityService(store UserStore, audit *AuditService, isAdmin func(email string) bool, logger *log.Logger) *IdentityService {
	return &IdentityService{
		store:   store,
		audit:   audit,
		isAdmin: isAdmin,
		logger:  logger.WithComponent("identity"),
	}
}

const handleRetries = 5

// ResolveOrCreate returns the member for an authenticated email, creating
// the identity on first contact. The role follows the configured admin list
// on every call, so promoting an email takes effect at next login.
func (s *IdentityService) ResolveOrCreate(ctx context.Context, email string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return core.User{}, core.ErrEmptyEmail
	}

	role := core.RoleMember
	if s.isAdmin(email) {
		role = core.RoleAdmin
	}

	u, err := s.store.UserByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role != role {
			if err := s.store.PromoteUser(ctx, u.ID, role); err != nil {
				return core.User{}, fmt.Errorf("update role of %s: %w", u.Handle, err)
			}
			u.Role = role
		}
		return u, nil
	case !errors.Is(err, core.ErrNotFound):
		return core.User{}, fmt.Errorf("lookup user: %w", err)
	}

	for attempt := 0; attempt < handleRetries; attempt++ {
		handle, err := generateHandle(email)
		if err != nil {
			return core.User{}, err
		}
		created, err := s.store.CreateUser(ctx, core.User{
			Email:  email,
			Handle: handle,
			Role:   role,
		})
		if err == nil {
			s.logger.InfoContext(ctx, "member registered", "handle", created.Handle, "role", created.Role)
			return created, nil
		}
		if !errors.Is(err, core.ErrDuplicateHandle) {
			return core.User{}, fmt.Errorf("create user: %w", err)
		}
	}
	return core.User{}, fmt.Errorf("could not find a free handle after %d attempts", handleRetries)
}

// Ban blocks a member from authenticated actions and records the decision.
func (s *IdentityService) Ban(ctx context.Context, handle, reason, actorHandle string) error {
	if err := s.store.BanUser(ctx, handle, reason); err != nil {
		return err
	}
	s.audit.Record(ctx, core.ActionBanUser, actorHandle, handle, map[string]any{
		"reason": reason,
	})
	return nil
}

// Unban lifts a ban.
func (s *IdentityService) Unban(ctx context.Context, handle, actorHandle string) error {
	if err := s.store.UnbanUser(ctx, handle); err != nil {
		return err
	}
	s.audit.Record(ctx, core.ActionUnbanUser, actorHandle, handle, nil)
	return nil
}

func (s *IdentityService) UserByHandle(ctx context.Context, handle string) (core.User, error) {
	return s.store.UserByHandle(ctx, handle)
}

// generateHandle derives a display handle from the email's local part plus a
// random hex suffix, e.g. "maria.silva@x.org" -> "@mariasilva_a3f2c1". The
// suffix keeps handles unique without exposing the full address.
func generateHandle(email string) (string, error) {
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}

	var prefix strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			prefix.WriteRune(r)
		}
		if prefix.Len() >= 12 {
			break
		}
	}
	if prefix.Len() == 0 {
		prefix.WriteString("member")
	}

	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate handle suffix: %w", err)
	}
	return "@" + prefix.String() + "_" + hex.EncodeToString(suffix), nil
}
