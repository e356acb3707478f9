package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibecodingwiki/core/internal/database"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/modules/roles"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	return NewService(db, roles.NewService(db))
}

func TestSyncUserCreatesContributor(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.SyncUser(&SyncUserDTO{
		WorkOSUserID: "user_01ABC",
		Email:        "Alice@Example.com",
		DisplayName:  "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	primary, err := svc.roleSvc.PrimaryRole(user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleContributor, primary)

	var profile models.ProfileModel
	require.NoError(t, svc.db.Where("user_id = ?", user.ID).First(&profile).Error)
}

func TestSyncUserIsIdempotent(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.SyncUser(&SyncUserDTO{WorkOSUserID: "user_1", Email: "a@b.com"})
	require.NoError(t, err)
	second, err := svc.SyncUser(&SyncUserDTO{WorkOSUserID: "user_1", Email: "a@b.com", DisplayName: "A"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	svc.db.Model(&models.UserModel{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestSyncUserAttachesToLocalAccount(t *testing.T) {
	svc := newTestService(t)

	local := models.UserModel{Email: "owner@example.com"}
	require.NoError(t, svc.db.Create(&local).Error)

	synced, err := svc.SyncUser(&SyncUserDTO{WorkOSUserID: "user_owner", Email: "owner@example.com"})
	require.NoError(t, err)
	assert.Equal(t, local.ID, synced.ID)
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := models.UserModel{Email: "owner@example.com", Password: string(hash)}
	require.NoError(t, svc.db.Create(&user).Error)

	token, got, err := svc.Login(&LoginDTO{Email: "owner@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, got.ID)

	_, _, err = svc.Login(&LoginDTO{Email: "owner@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(&LoginDTO{Email: "ghost@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsPasswordlessAccount(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SyncUser(&SyncUserDTO{WorkOSUserID: "user_2", Email: "sso@example.com"})
	require.NoError(t, err)

	_, _, err = svc.Login(&LoginDTO{Email: "sso@example.com", Password: "anything"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenFor(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SyncUser(&SyncUserDTO{WorkOSUserID: "user_3", Email: "t@example.com"})
	require.NoError(t, err)

	token, user, err := svc.TokenFor("user_3")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "t@example.com", user.Email)

	_, _, err = svc.TokenFor("user_missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
