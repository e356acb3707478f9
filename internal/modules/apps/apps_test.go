package apps

import (
	"context"
	"testing"

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

func submitApp(t *testing.T, svc *Service, name string) *models.AppSubmissionModel {
	t.Helper()
	app, err := svc.Submit(context.Background(), SubmitInput{
		Name: name,
		URL:  "https://example.com/" + name,
	}, "user-1")
	require.NoError(t, err)
	return app
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitInput{Name: "", URL: "https://x.dev"}, "u")
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = svc.Submit(ctx, SubmitInput{Name: "X", URL: "not a url"}, "u")
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = svc.Submit(ctx, SubmitInput{Name: "X", URL: "ftp://x.dev"}, "u")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestSubmitStartsPending(t *testing.T) {
	svc := newTestService(t)

	app := submitApp(t, svc, "devtool")
	assert.Equal(t, models.AppStatusPending, app.Status)
	assert.Equal(t, "user-1", app.SubmittedBy)
}

func TestReviewIsTerminal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	app := submitApp(t, svc, "devtool")

	reviewed, err := svc.Review(ctx, app.ID, "mod-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.AppStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, "mod-1", *reviewed.ReviewedBy)

	_, err = svc.Review(ctx, app.ID, "mod-2", false)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestVoteRequiresApproval(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	app := submitApp(t, svc, "devtool")
	_, err := svc.Vote(ctx, app.ID, "voter-1")
	assert.ErrorIs(t, err, ErrVoteNeedsApprove)
}

func TestVoteDeduplicatesPerUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	app := submitApp(t, svc, "devtool")
	_, err := svc.Review(ctx, app.ID, "mod-1", true)
	require.NoError(t, err)

	voted, err := svc.Vote(ctx, app.ID, "voter-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, voted.VoteCount)

	_, err = svc.Vote(ctx, app.ID, "voter-1")
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	voted, err = svc.Vote(ctx, app.ID, "voter-2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, voted.VoteCount)
}
