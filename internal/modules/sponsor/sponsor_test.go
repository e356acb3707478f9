package sponsor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibecodingwiki/core/internal/database"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	return NewService(db)
}

func boolPtr(b bool) *bool           { return &b }
func intPtr(i int) *int              { return &i }
func timePtr(v time.Time) *time.Time { return &v }

func TestCreateDefaultsTier(t *testing.T) {
	svc := newTestService(t)

	sponsor, err := svc.Create(context.Background(), SponsorInput{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "supporter", sponsor.Tier)
	assert.True(t, sponsor.Active)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, SponsorInput{Name: "   "})
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = svc.Create(ctx, SponsorInput{Name: "Acme", Tier: "diamond"})
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestActiveNowFiltersWindowAndFlag(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	_, err := svc.Create(ctx, SponsorInput{Name: "Current", Order: intPtr(2)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, SponsorInput{Name: "First", Order: intPtr(1)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, SponsorInput{Name: "Disabled", Active: boolPtr(false)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, SponsorInput{Name: "Expired", EndsAt: timePtr(now.Add(-time.Hour))})
	require.NoError(t, err)
	_, err = svc.Create(ctx, SponsorInput{Name: "Upcoming", StartsAt: timePtr(now.Add(time.Hour))})
	require.NoError(t, err)

	active, err := svc.ActiveNow(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "First", active[0].Name)
	assert.Equal(t, "Current", active[1].Name)
}

func TestUpdateSponsor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sponsor, err := svc.Create(ctx, SponsorInput{Name: "Acme", Tier: "gold"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, sponsor.ID, SponsorInput{Tier: "platinum", Active: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "platinum", updated.Tier)
	assert.False(t, updated.Active)
	assert.Equal(t, "Acme", updated.Name)
}

func TestDeleteSponsor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sponsor, err := svc.Create(ctx, SponsorInput{Name: "Acme"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sponsor.ID))
	_, err = svc.Get(ctx, sponsor.ID)
	assert.ErrorIs(t, err, ErrSponsorNotFound)

	err = svc.Delete(ctx, "missing")
	assert.ErrorIs(t, err, ErrSponsorNotFound)
}
