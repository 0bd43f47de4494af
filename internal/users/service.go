package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/miyf-books/internal/auditlog"
	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/angelmondragon/miyf-books/pkg/types"
)

type auditRecorder interface {
	Record(ctx context.Context, entry auditlog.Entry) error
}

// Service resolves callers into profiles and manages role assignment.
type Service interface {
	Resolve(ctx context.Context, id Identity) (types.Actor, error)
	Get(ctx context.Context, uid string) (Profile, error)
	List(ctx context.Context) ([]Profile, error)
	SetRole(ctx context.Context, actor types.Actor, uid string, role enums.Role) (Profile, error)
}

type service struct {
	repo        Repository
	audit       auditRecorder
	logg        *logger.Logger
	superAdmins map[string]struct{}
	now         func() time.Time
}

// NewService wires the profile store. Emails in superAdmins always resolve to
// Super Admin.
func NewService(store Repository, audit auditRecorder, logg *logger.Logger, superAdmins []string) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit recorder required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	allow := make(map[string]struct{}, len(superAdmins))
	for _, email := range superAdmins {
		if clean := normalizeEmail(email); clean != "" {
			allow[clean] = struct{}{}
		}
	}
	return &service{repo: store, audit: audit, logg: logg, superAdmins: allow, now: time.Now}, nil
}

func (s *service) Resolve(ctx context.Context, id Identity) (types.Actor, error) {
	if strings.TrimSpace(id.UID) == "" {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity subject missing")
	}

	profile, err := s.repo.Get(ctx, id.UID)
	switch {
	case errors.Is(err, rowstore.ErrNotFound):
		profile, err = s.register(ctx, id)
		if err != nil {
			return types.Actor{}, err
		}
	case err != nil:
		return types.Actor{}, repo.Translate(err, "user", "load user profile")
	}

	if !profile.Status.IsActive() {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "account disabled")
	}
	if s.isSuperAdmin(profile.Email, id.Email) && profile.Role != enums.RoleSuperAdmin {
		profile = s.promote(ctx, profile)
	}
	return profile.Actor(id), nil
}

// promote persists the allow-listed role. A failed write still grants the
// role for this request and is retried on the next one.
func (s *service) promote(ctx context.Context, profile Profile) Profile {
	stored, err := s.repo.Update(ctx, profile.UID, func(p Profile) Profile {
		p.Role = enums.RoleSuperAdmin
		return p
	})
	if err != nil {
		fields := map[string]any{"user_id": profile.UID, "error": err.Error()}
		s.logg.Warn(s.logg.WithFields(ctx, fields), "super admin promotion not persisted")
		profile.Role = enums.RoleSuperAdmin
		return profile
	}
	return stored
}

// register creates the first-sight profile. A concurrent request may win the
// append; the stored profile is returned in that case.
func (s *service) register(ctx context.Context, id Identity) (Profile, error) {
	role := enums.RoleBasicUser
	if s.isSuperAdmin(id.Email) {
		role = enums.RoleSuperAdmin
	}
	profile := Profile{
		UID:       id.UID,
		Email:     normalizeEmail(id.Email),
		Name:      strings.TrimSpace(id.Name),
		Role:      role,
		Status:    enums.UserStatusActive,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	created, err := s.repo.Create(ctx, profile)
	if errors.Is(err, rowstore.ErrDuplicateKey) {
		created, err = s.repo.Get(ctx, id.UID)
	}
	if err != nil {
		return Profile{}, repo.Translate(err, "user", "create user profile")
	}
	s.logg.Info(s.logg.WithUserID(ctx, created.UID), "user profile created")
	return created, nil
}

func (s *service) Get(ctx context.Context, uid string) (Profile, error) {
	profile, err := s.repo.Get(ctx, uid)
	if errors.Is(err, rowstore.ErrNotFound) {
		return Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return Profile{}, repo.Translate(err, "user", "load user profile")
	}
	return profile, nil
}

func (s *service) List(ctx context.Context) ([]Profile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, repo.Translate(err, "user", "list users")
	}
	return profiles, nil
}

func (s *service) SetRole(ctx context.Context, actor types.Actor, uid string, role enums.Role) (Profile, error) {
	if !actor.Can(enums.CapabilityAdminister) {
		return Profile{}, pkgerrors.New(pkgerrors.CodeForbidden, "only a super admin can assign roles")
	}
	if !role.IsValid() {
		return Profile{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid role").
			WithDetails(map[string]any{"role": role})
	}

	current, err := s.Get(ctx, uid)
	if err != nil {
		return Profile{}, err
	}
	if s.isSuperAdmin(current.Email) && role != enums.RoleSuperAdmin {
		return Profile{}, pkgerrors.New(pkgerrors.CodeConflict, "allow-listed super admins cannot be demoted")
	}
	if current.Role == role {
		return current, nil
	}

	updated, err := s.repo.Update(ctx, uid, func(p Profile) Profile {
		p.Role = role
		return p
	})
	if errors.Is(err, rowstore.ErrNotFound) {
		return Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return Profile{}, repo.Translate(err, "user", "update user role")
	}

	if err := s.audit.Record(ctx, auditlog.Entry{
		User:   actor.Email,
		Action: enums.AuditActionUpdateRole.String(),
		Object: uid,
		Field:  "role",
		Old:    current.Role.String(),
		New:    role.String(),
		Detail: updated.Email,
	}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "audit append failed for role change")
	}
	return updated, nil
}

func (s *service) isSuperAdmin(emails ...string) bool {
	for _, email := range emails {
		if _, ok := s.superAdmins[normalizeEmail(email)]; ok && email != "" {
			return true
		}
	}
	return false
}
