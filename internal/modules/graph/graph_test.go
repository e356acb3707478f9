package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibecodingwiki/core/internal/database"
	"github.com/vibecodingwiki/core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	return NewService(db, zap.NewNop()), db
}

func publishPage(t *testing.T, db *gorm.DB, slug, content string) *models.PageModel {
	t.Helper()
	page := models.PageModel{
		Slug: slug, Title: slug, Namespace: "main",
		Status: models.PageStatusPublished,
	}
	require.NoError(t, db.Create(&page).Error)
	rev := models.PageRevisionModel{
		PageID: page.ID, RevisionNumber: 1, Content: content,
		Status: models.RevisionStatusApproved,
	}
	require.NoError(t, db.Create(&rev).Error)
	require.NoError(t, db.Model(&page).Update("approved_revision_id", rev.ID).Error)
	page.ApprovedRevisionID = &rev.ID
	return &page
}

func TestExtractLinkTargets(t *testing.T) {
	targets := ExtractLinkTargets(
		"See [[Claude Code]], [[claude code]] again, [[Cursor|the editor]] and [[  Weird  Spacing ]].")
	assert.Equal(t, []string{"claude-code", "cursor", "weird-spacing"}, targets)
}

func TestRebuildPageSkipsSelfAndUnresolved(t *testing.T) {
	svc, db := newTestService(t)
	a := publishPage(t, db, "alpha", "Links to [[beta]], [[alpha]] and [[ghost]].")
	b := publishPage(t, db, "beta", "no links")

	n, err := svc.RebuildPage(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var links []models.PageLinkModel
	require.NoError(t, db.Where("from_page_id = ?", a.ID).Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, b.ID, links[0].ToPageID)
	assert.Equal(t, "beta", links[0].ToSlug)
}

func TestRebuildPageReplacesOldEdges(t *testing.T) {
	svc, db := newTestService(t)
	a := publishPage(t, db, "source", "[[first]]")
	publishPage(t, db, "first", "x")
	second := publishPage(t, db, "second", "x")

	_, err := svc.RebuildPage(a.ID)
	require.NoError(t, err)

	// Content moves on; the old edge must disappear.
	require.NoError(t, db.Model(&models.PageRevisionModel{}).
		Where("id = ?", *a.ApprovedRevisionID).
		Update("content", "[[second]]").Error)

	n, err := svc.RebuildPage(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var links []models.PageLinkModel
	require.NoError(t, db.Where("from_page_id = ?", a.ID).Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, second.ID, links[0].ToPageID)
}

func TestBacklinksAndOutgoing(t *testing.T) {
	svc, db := newTestService(t)
	hub := publishPage(t, db, "hub", "x")
	spoke1 := publishPage(t, db, "spoke-one", "[[hub]]")
	spoke2 := publishPage(t, db, "spoke-two", "[[hub]]")

	_, _, err := svc.RebuildAll()
	require.NoError(t, err)

	back, err := svc.Backlinks(hub.ID)
	require.NoError(t, err)
	assert.Len(t, back, 2)

	out, err := svc.Outgoing(spoke1.ID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, hub.ID, out[0].ID)

	out, err = svc.Outgoing(spoke2.ID)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestPopularityWeights(t *testing.T) {
	svc, db := newTestService(t)
	page := publishPage(t, db, "scored", "x")

	// 3 watchers, 2 revisions total, 5 talk messages: 5*3 + 2*2 + 5 = 24.
	for _, u := range []string{"u1", "u2", "u3"} {
		require.NoError(t, db.Create(&models.WatchlistModel{UserID: u, PageID: page.ID}).Error)
	}
	require.NoError(t, db.Create(&models.PageRevisionModel{
		PageID: page.ID, RevisionNumber: 2, Status: models.RevisionStatusPending,
	}).Error)
	thread := models.TalkThreadModel{PageID: page.ID, Title: "t", Status: models.ThreadStatusOpen}
	require.NoError(t, db.Create(&thread).Error)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&models.TalkMessageModel{
			ThreadID: thread.ID, PageID: page.ID, Content: "m",
		}).Error)
	}

	score, err := svc.PopularityOf(page.ID)
	require.NoError(t, err)
	assert.Equal(t, 24, score)
}

func TestRefreshPopularityWritesOnlyChanges(t *testing.T) {
	svc, db := newTestService(t)
	page := publishPage(t, db, "stable", "x")

	// First refresh: revision count 1 gives score 2.
	updated, err := svc.RefreshPopularity()
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	var got models.PageModel
	require.NoError(t, db.First(&got, "id = ?", page.ID).Error)
	assert.Equal(t, 2, got.PopularityScore)

	// Nothing changed, so nothing is written.
	updated, err = svc.RefreshPopularity()
	require.NoError(t, err)
	assert.Zero(t, updated)
}
