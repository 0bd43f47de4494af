package users

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/miyf-books/internal/auditlog"
	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/angelmondragon/miyf-books/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditlog.Entry
	err     error
}

func (r *recordingAudit) Record(_ context.Context, entry auditlog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

var root = types.Actor{UID: "root", Email: "root@example.com", Role: enums.RoleSuperAdmin}

func newTestService(t *testing.T, superAdmins ...string) (*service, *rowstore.MemoryBackend, *recordingAudit) {
	t.Helper()
	backend := rowstore.NewMemoryBackend()
	store, err := NewRepository(repo.NewBase(backend))
	require.NoError(t, err)
	audit := &recordingAudit{}
	svc, err := NewService(store, audit, nil, superAdmins)
	require.NoError(t, err)
	s := svc.(*service)
	s.now = func() time.Time { return time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC) }
	return s, backend, audit
}

func TestNewServiceValidatesDeps(t *testing.T) {
	_, err := NewService(nil, &recordingAudit{}, nil, nil)
	require.Error(t, err)
	backend := rowstore.NewMemoryBackend()
	store, err := NewRepository(repo.NewBase(backend))
	require.NoError(t, err)
	_, err = NewService(store, nil, nil, nil)
	require.Error(t, err)
}

func TestResolveCreatesBasicUserOnFirstSight(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()

	actor, err := svc.Resolve(ctx, Identity{UID: "u1", Email: " Alice@Example.com ", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, types.Actor{UID: "u1", Email: "alice@example.com", Name: "Alice", Role: enums.RoleBasicUser}, actor)

	grid, err := backend.ReadAll(ctx, SheetName, 6)
	require.NoError(t, err)
	require.Len(t, grid, 2)
	assert.Equal(t, []string{"u1", "alice@example.com", "Alice", "Basic User", "active", "2026-02-01T08:00:00Z"}, grid[1])

	again, err := svc.Resolve(ctx, Identity{UID: "u1", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, actor, again)
	grid, err = backend.ReadAll(ctx, SheetName, 6)
	require.NoError(t, err)
	assert.Len(t, grid, 2)
}

func TestResolveRequiresSubject(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Resolve(context.Background(), Identity{Email: "a@b.c"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestResolveAllowListedIsSuperAdmin(t *testing.T) {
	svc, backend, _ := newTestService(t, "Boss@Example.com")
	ctx := context.Background()
	backend.Seed(SheetName, schema.Header, []string{"u9", "boss@example.com", "Boss", "Basic User", "active", ""})

	actor, err := svc.Resolve(ctx, Identity{UID: "u9", Email: "boss@example.com"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleSuperAdmin, actor.Role)

	stored, err := svc.Get(ctx, "u9")
	require.NoError(t, err)
	assert.Equal(t, enums.RoleSuperAdmin, stored.Role)

	fresh, err := svc.Resolve(ctx, Identity{UID: "u10", Email: "boss@example.com"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleSuperAdmin, fresh.Role)
}

// readOnlyProfiles serves reads but refuses every profile update.
type readOnlyProfiles struct {
	Repository
}

func (readOnlyProfiles) Update(context.Context, string, func(Profile) Profile) (Profile, error) {
	return Profile{}, errors.New("sheet is read only")
}

func TestResolvePromotionSurvivesFailedWrite(t *testing.T) {
	backend := rowstore.NewMemoryBackend()
	store, err := NewRepository(repo.NewBase(backend))
	require.NoError(t, err)
	svc, err := NewService(readOnlyProfiles{store}, &recordingAudit{}, nil, []string{"boss@example.com"})
	require.NoError(t, err)
	backend.Seed(SheetName, schema.Header, []string{"u9", "boss@example.com", "Boss", "Basic User", "active", ""})

	actor, err := svc.Resolve(context.Background(), Identity{UID: "u9", Email: "boss@example.com"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleSuperAdmin, actor.Role)

	stored, err := store.Get(context.Background(), "u9")
	require.NoError(t, err)
	assert.Equal(t, enums.RoleBasicUser, stored.Role)
}

func TestResolveRejectsDisabledProfile(t *testing.T) {
	svc, backend, _ := newTestService(t)
	backend.Seed(SheetName, schema.Header, []string{"u1", "a@example.com", "A", "Admin", "disabled", ""})

	_, err := svc.Resolve(context.Background(), Identity{UID: "u1", Email: "a@example.com"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestDecodeToleratesHandEditedRoles(t *testing.T) {
	svc, backend, _ := newTestService(t)
	backend.Seed(SheetName, schema.Header,
		[]string{"u1", "a@example.com", "A", " admin ", "", ""},
		[]string{"u2", "b@example.com", "B", "Owner", "", ""},
	)

	profiles, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, enums.RoleAdmin, profiles[0].Role)
	assert.Equal(t, enums.RoleBasicUser, profiles[1].Role)
	assert.True(t, profiles[0].Status.IsActive())
}

func TestSetRole(t *testing.T) {
	svc, backend, audit := newTestService(t)
	ctx := context.Background()
	backend.Seed(SheetName, schema.Header, []string{"u1", "a@example.com", "A", "Basic User", "active", ""})

	updated, err := svc.SetRole(ctx, root, "u1", enums.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, updated.Role)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "Update Role", audit.entries[0].Action)
	assert.Equal(t, "Basic User", audit.entries[0].Old)
	assert.Equal(t, "Admin", audit.entries[0].New)

	// unchanged role writes nothing
	_, err = svc.SetRole(ctx, root, "u1", enums.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, audit.entries, 1)
}

func TestSetRoleRules(t *testing.T) {
	svc, backend, _ := newTestService(t, "boss@example.com")
	ctx := context.Background()
	backend.Seed(SheetName, schema.Header,
		[]string{"u1", "a@example.com", "A", "Basic User", "active", ""},
		[]string{"boss", "boss@example.com", "Boss", "Super Admin", "active", ""},
	)

	_, err := svc.SetRole(ctx, types.Actor{Email: "x@example.com", Role: enums.RoleAdmin}, "u1", enums.RoleAdmin)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	_, err = svc.SetRole(ctx, root, "u1", enums.Role("Owner"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.SetRole(ctx, root, "missing", enums.RoleAdmin)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = svc.SetRole(ctx, root, "boss", enums.RoleAdmin)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestSetRoleSwallowsAuditFailure(t *testing.T) {
	svc, backend, audit := newTestService(t)
	audit.err = errors.New("sheet down")
	backend.Seed(SheetName, schema.Header, []string{"u1", "a@example.com", "A", "Basic User", "active", ""})

	updated, err := svc.SetRole(context.Background(), root, "u1", enums.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, updated.Role)
}

func TestGetMissingSheetIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "u1")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
