package roles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibecodingwiki/core/internal/database"
	"github.com/vibecodingwiki/core/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	return NewService(db)
}

func createUser(t *testing.T, svc *Service, email string) string {
	t.Helper()
	u := models.UserModel{Email: email}
	require.NoError(t, svc.db.Create(&u).Error)
	return u.ID
}

func TestPrimaryRoleDefaultsToReader(t *testing.T) {
	svc := newTestService(t)
	userID := createUser(t, svc, "nobody@example.com")

	primary, err := svc.PrimaryRole(userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleReader, primary)
}

func TestAssignAndPriorityOrdering(t *testing.T) {
	svc := newTestService(t)
	userID := createUser(t, svc, "mod@example.com")

	_, err := svc.Assign(userID, models.RoleContributor, "", nil)
	require.NoError(t, err)
	_, err = svc.Assign(userID, models.RoleModerator, "", nil)
	require.NoError(t, err)

	primary, err := svc.PrimaryRole(userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, primary)

	ok, err := svc.HasAtLeast(userID, models.RoleContributor)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasAtLeast(userID, models.RoleSuperAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssignRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)
	userID := createUser(t, svc, "x@example.com")

	_, err := svc.Assign(userID, models.Role("wizard"), "", nil)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestExpiredAssignmentIgnored(t *testing.T) {
	svc := newTestService(t)
	userID := createUser(t, svc, "expired@example.com")

	past := time.Now().Add(-time.Hour)
	_, err := svc.Assign(userID, models.RoleModerator, "", &past)
	require.NoError(t, err)

	primary, err := svc.PrimaryRole(userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleReader, primary)
}

func TestRevoke(t *testing.T) {
	svc := newTestService(t)
	userID := createUser(t, svc, "rev@example.com")

	_, err := svc.Assign(userID, models.RoleContributor, "", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(userID, models.RoleContributor))

	assert.ErrorIs(t, svc.Revoke(userID, models.RoleContributor), ErrNotAssigned)
}

func TestSuperAdminCount(t *testing.T) {
	svc := newTestService(t)
	a := createUser(t, svc, "a@example.com")
	b := createUser(t, svc, "b@example.com")

	n, err := svc.SuperAdminCount()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.Assign(a, models.RoleSuperAdmin, "", nil)
	require.NoError(t, err)
	_, err = svc.Assign(b, models.RoleSuperAdmin, "", nil)
	require.NoError(t, err)

	n, err = svc.SuperAdminCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
