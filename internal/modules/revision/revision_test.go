package revision

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibecodingwiki/core/internal/database"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/diff"
	"github.com/vibecodingwiki/core/internal/pkg/pagelock"
	"github.com/vibecodingwiki/core/internal/pkg/pagination"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	return NewService(db, pagelock.New())
}

func createTestPage(t *testing.T, svc *Service, title string) (*models.PageModel, *models.PageRevisionModel) {
	t.Helper()
	page, rev, err := svc.CreatePage(&CreatePageDTO{
		Title:   title,
		Content: "# " + title + "\n\nInitial content.",
		Summary: "First draft",
		Tags:    []string{"test"},
	}, "author-1")
	require.NoError(t, err)
	return page, rev
}

func TestCreatePageSlugifiesTitle(t *testing.T) {
	svc := newTestService(t)

	page, rev := createTestPage(t, svc, "Vibe Coding 101!")
	assert.Equal(t, "vibe-coding-101", page.Slug)
	assert.Equal(t, "main", page.Namespace)
	assert.Equal(t, models.PageStatusPending, page.Status)
	assert.Nil(t, page.ApprovedRevisionID)
	assert.Equal(t, 1, rev.RevisionNumber)
	assert.Equal(t, models.RevisionStatusPending, rev.Status)
}

func TestCreatePageRejectsDuplicateSlug(t *testing.T) {
	svc := newTestService(t)

	createTestPage(t, svc, "Same Title")
	_, _, err := svc.CreatePage(&CreatePageDTO{
		Title:   "Same Title",
		Content: "other",
	}, "author-2")
	assert.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestCreatePageRejectsUnsluggableTitle(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.CreatePage(&CreatePageDTO{Title: "!!!", Content: "x"}, "author-1")
	assert.ErrorIs(t, err, ErrEmptyTitle)
}

func TestSubmitRevisionNumbersAreMonotonic(t *testing.T) {
	svc := newTestService(t)
	page, _ := createTestPage(t, svc, "Numbering")

	r2, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{Content: "v2"}, "author-2")
	require.NoError(t, err)
	assert.Equal(t, 2, r2.RevisionNumber)

	r3, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{Content: "v3"}, "author-3")
	require.NoError(t, err)
	assert.Equal(t, 3, r3.RevisionNumber)
}

func TestSubmitRevisionConcurrentNumbering(t *testing.T) {
	svc := newTestService(t)
	page, _ := createTestPage(t, svc, "Concurrent")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{Content: "racing"}, "author")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var numbers []int
	require.NoError(t, svc.db.Model(&models.PageRevisionModel{}).
		Where("page_id = ?", page.ID).
		Order("revision_number ASC").
		Pluck("revision_number", &numbers).Error)
	require.Len(t, numbers, writers+1)
	for i, n := range numbers {
		assert.Equal(t, i+1, n)
	}
}

func TestSubmitRevisionStoresDiffVerbatim(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "Diffed")

	patch := diff.Generate("Initial content.", "Rewritten content.")
	stats := diff.CalculateStats("Initial content.", "Rewritten content.")
	rev, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{
		Content:        "Rewritten content.",
		BaseRevisionID: &first.ID,
		DiffContent:    patch,
		DiffStats:      &stats,
	}, "author-2")
	require.NoError(t, err)

	var stored models.PageRevisionModel
	require.NoError(t, svc.db.First(&stored, "id = ?", rev.ID).Error)
	assert.Equal(t, patch, stored.DiffContent)
	require.NotNil(t, stored.DiffStats)
	assert.Equal(t, stats, *stored.DiffStats)
	require.NotNil(t, stored.BaseRevisionID)
	assert.Equal(t, first.ID, *stored.BaseRevisionID)
}

func TestSubmitRevisionUnknownPage(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.SubmitRevision("missing", &SubmitRevisionDTO{Content: "x"}, "author")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestApprovePublishesPage(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "Publish Me")

	rev, err := svc.Approve(first.ID, "mod-1")
	require.NoError(t, err)
	assert.Equal(t, models.RevisionStatusApproved, rev.Status)
	require.NotNil(t, rev.ApprovedBy)
	assert.Equal(t, "mod-1", *rev.ApprovedBy)
	assert.NotNil(t, rev.ApprovedAt)

	var got models.PageModel
	require.NoError(t, svc.db.First(&got, "id = ?", page.ID).Error)
	assert.Equal(t, models.PageStatusPublished, got.Status)
	require.NotNil(t, got.ApprovedRevisionID)
	assert.Equal(t, first.ID, *got.ApprovedRevisionID)
	assert.Equal(t, "First draft", got.Summary)

	var event models.ModerationEventModel
	require.NoError(t, svc.db.Where("page_id = ? AND action = ?",
		page.ID, models.ModerationActionApproved).First(&event).Error)
	assert.Equal(t, "mod-1", event.ActorID)
	assert.EqualValues(t, 1, event.Details["revision_number"])
}

func TestApproveCopiesTagsReadably(t *testing.T) {
	svc := newTestService(t)
	page, _ := createTestPage(t, svc, "Tagged")

	rev, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{
		Content: "tagged content",
		Tags:    []string{"vibes", "history"},
	}, "author-1")
	require.NoError(t, err)

	_, err = svc.Approve(rev.ID, "mod-1")
	require.NoError(t, err)

	// The copied tags column must survive a round trip through the json
	// serializer, or every later page read breaks.
	var got models.PageModel
	require.NoError(t, svc.db.First(&got, "id = ?", page.ID).Error)
	assert.Equal(t, models.StringSlice{"vibes", "history"}, got.Tags)
	assert.Equal(t, models.PageStatusPublished, got.Status)
}

func TestApproveTwiceFails(t *testing.T) {
	svc := newTestService(t)
	_, first := createTestPage(t, svc, "Twice")

	_, err := svc.Approve(first.ID, "mod-1")
	require.NoError(t, err)
	_, err = svc.Approve(first.ID, "mod-2")
	assert.ErrorIs(t, err, ErrAlreadyModerated)
}

func TestApproveDetectsStaleBase(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "Conflict")

	_, err := svc.Approve(first.ID, "mod-1")
	require.NoError(t, err)

	// Two authors both edit against revision 1.
	a, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{
		Content: "edit A", BaseRevisionID: &first.ID,
	}, "author-a")
	require.NoError(t, err)
	b, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{
		Content: "edit B", BaseRevisionID: &first.ID,
	}, "author-b")
	require.NoError(t, err)

	_, err = svc.Approve(a.ID, "mod-1")
	require.NoError(t, err)

	// B's base is no longer the approved revision.
	_, err = svc.Approve(b.ID, "mod-1")
	assert.ErrorIs(t, err, ErrBaseConflict)
}

func TestApproveWithoutBaseSkipsConflictCheck(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "No Base")

	_, err := svc.Approve(first.ID, "mod-1")
	require.NoError(t, err)

	// Imported or generated revisions carry no base pointer and are
	// approvable regardless of what was published in the meantime.
	rev, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{Content: "imported"}, "importer")
	require.NoError(t, err)
	_, err = svc.Approve(rev.ID, "mod-1")
	assert.NoError(t, err)
}

func TestRejectIsTerminalAndLeavesPageAlone(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "Reject Me")

	rev, err := svc.Reject(first.ID, "mod-1", "not good enough")
	require.NoError(t, err)
	assert.Equal(t, models.RevisionStatusRejected, rev.Status)
	assert.Equal(t, "not good enough", rev.RejectionReason)

	var got models.PageModel
	require.NoError(t, svc.db.First(&got, "id = ?", page.ID).Error)
	assert.Equal(t, models.PageStatusPending, got.Status)
	assert.Nil(t, got.ApprovedRevisionID)

	_, err = svc.Approve(first.ID, "mod-2")
	assert.ErrorIs(t, err, ErrAlreadyModerated)

	_, err = svc.Reject(first.ID, "mod-2", "again")
	assert.ErrorIs(t, err, ErrAlreadyModerated)
}

func TestRejectWithoutReason(t *testing.T) {
	svc := newTestService(t)
	_, first := createTestPage(t, svc, "No Reason")

	rev, err := svc.Reject(first.ID, "mod-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.RevisionStatusRejected, rev.Status)
	assert.Empty(t, rev.RejectionReason)
}

func TestRollbackRestoresPreviousApproval(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "Rollback")

	_, err := svc.Approve(first.ID, "mod-1")
	require.NoError(t, err)

	second, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{
		Content: "v2", Summary: "Second version",
	}, "author-2")
	require.NoError(t, err)
	_, err = svc.Approve(second.ID, "mod-1")
	require.NoError(t, err)

	got, err := svc.Rollback(page.ID, "mod-2")
	require.NoError(t, err)
	require.NotNil(t, got.ApprovedRevisionID)
	assert.Equal(t, first.ID, *got.ApprovedRevisionID)
	assert.Equal(t, models.PageStatusPublished, got.Status)
	assert.Equal(t, "First draft", got.Summary)

	var demoted models.PageRevisionModel
	require.NoError(t, svc.db.First(&demoted, "id = ?", second.ID).Error)
	assert.Equal(t, models.RevisionStatusPending, demoted.Status)
	assert.Nil(t, demoted.ApprovedBy)

	var event models.ModerationEventModel
	require.NoError(t, svc.db.
		Where("page_id = ? AND action = ?", page.ID, models.ModerationActionRolledBack).
		First(&event).Error)
	assert.Equal(t, "rollback", event.Action)
	assert.Equal(t, "mod-2", event.ActorID)
}

func TestRollbackOnlyApprovalUnpublishes(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "Sole Approval")

	_, err := svc.Approve(first.ID, "mod-1")
	require.NoError(t, err)

	got, err := svc.Rollback(page.ID, "mod-2")
	require.NoError(t, err)
	assert.Nil(t, got.ApprovedRevisionID)
	assert.Equal(t, models.PageStatusPending, got.Status)
}

func TestRollbackWithoutApprovalFails(t *testing.T) {
	svc := newTestService(t)
	page, _ := createTestPage(t, svc, "Nothing Approved")

	_, err := svc.Rollback(page.ID, "mod-1")
	assert.ErrorIs(t, err, ErrNothingToRollback)
}

func TestAutoApproveFirst(t *testing.T) {
	svc := newTestService(t)
	page, _ := createTestPage(t, svc, "Generated")

	approved, err := svc.AutoApproveFirst(page.ID)
	require.NoError(t, err)
	assert.True(t, approved)

	var got models.PageModel
	require.NoError(t, svc.db.First(&got, "id = ?", page.ID).Error)
	assert.Equal(t, models.PageStatusPublished, got.Status)

	// Second call is a no-op.
	approved, err = svc.AutoApproveFirst(page.ID)
	require.NoError(t, err)
	assert.False(t, approved)
}

func TestAutoApproveFirstTakesEarliestRevision(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "Seeded")

	// Even a previously rejected first revision is the one that goes live.
	_, err := svc.Reject(first.ID, "mod-1", "hold on")
	require.NoError(t, err)
	_, err = svc.SubmitRevision(page.ID, &SubmitRevisionDTO{Content: "v2"}, "author-2")
	require.NoError(t, err)

	approved, err := svc.AutoApproveFirst(page.ID)
	require.NoError(t, err)
	assert.True(t, approved)

	var got models.PageModel
	require.NoError(t, svc.db.First(&got, "id = ?", page.ID).Error)
	require.NotNil(t, got.ApprovedRevisionID)
	assert.Equal(t, first.ID, *got.ApprovedRevisionID)

	var rev models.PageRevisionModel
	require.NoError(t, svc.db.First(&rev, "id = ?", first.ID).Error)
	assert.Equal(t, models.RevisionStatusApproved, rev.Status)
}

func TestAutoApproveFirstWithoutRevisions(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "Hollow")
	require.NoError(t, svc.db.Unscoped().Delete(&models.PageRevisionModel{}, "id = ?", first.ID).Error)

	_, err := svc.AutoApproveFirst(page.ID)
	assert.ErrorIs(t, err, ErrNoRevisions)
}

func TestPendingQueueOrdering(t *testing.T) {
	svc := newTestService(t)
	pageA, _ := createTestPage(t, svc, "Queue A")
	createTestPage(t, svc, "Queue B")

	_, err := svc.SubmitRevision(pageA.ID, &SubmitRevisionDTO{Content: "more"}, "author")
	require.NoError(t, err)

	items, pag, err := svc.PendingQueue(pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, pag.Total)
	require.Len(t, items, 3)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].CreatedAt.Before(items[i-1].CreatedAt))
	}
}

func TestCompareWithApproved(t *testing.T) {
	svc := newTestService(t)
	page, first := createTestPage(t, svc, "Compare")

	_, err := svc.Approve(first.ID, "mod-1")
	require.NoError(t, err)

	rev, err := svc.SubmitRevision(page.ID, &SubmitRevisionDTO{
		Content: "# Compare\n\nInitial content.\nAdded line.",
	}, "author-2")
	require.NoError(t, err)

	patch, stats, err := svc.CompareWithApproved(rev.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, patch)
	assert.Equal(t, 1, stats.Additions)
	assert.Zero(t, stats.Deletions)
}

func TestRepairPageStatuses(t *testing.T) {
	svc := newTestService(t)
	healthy, rev := createTestPage(t, svc, "Healthy")
	_, err := svc.Approve(rev.ID, "mod-1")
	require.NoError(t, err)

	// Simulate drift: an approved page demoted to pending and a published
	// page with no approved revision.
	demoted, demotedRev := createTestPage(t, svc, "Demoted")
	_, err = svc.Approve(demotedRev.ID, "mod-1")
	require.NoError(t, err)
	require.NoError(t, svc.db.Model(&models.PageModel{}).
		Where("id = ?", demoted.ID).
		Update("status", models.PageStatusPending).Error)

	orphan, _ := createTestPage(t, svc, "Orphan")
	require.NoError(t, svc.db.Model(&models.PageModel{}).
		Where("id = ?", orphan.ID).
		Update("status", models.PageStatusPublished).Error)

	fixed, err := svc.RepairPageStatuses()
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	var got models.PageModel
	require.NoError(t, svc.db.First(&got, "id = ?", demoted.ID).Error)
	assert.Equal(t, models.PageStatusPublished, got.Status)
	got = models.PageModel{}
	require.NoError(t, svc.db.First(&got, "id = ?", orphan.ID).Error)
	assert.Equal(t, models.PageStatusPending, got.Status)
	got = models.PageModel{}
	require.NoError(t, svc.db.First(&got, "id = ?", healthy.ID).Error)
	assert.Equal(t, models.PageStatusPublished, got.Status)

	// Idempotent once coherent.
	fixed, err = svc.RepairPageStatuses()
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
