package revision

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/diff"
	"github.com/vibecodingwiki/core/internal/pkg/markdown"
	"github.com/vibecodingwiki/core/internal/pkg/pagelock"
	"github.com/vibecodingwiki/core/internal/pkg/pagination"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"github.com/vibecodingwiki/core/internal/pkg/slug"
	"gorm.io/gorm"
)

var (
	ErrPageNotFound      = errors.New("page not found")
	ErrRevisionNotFound  = errors.New("revision not found")
	ErrDuplicateSlug     = errors.New("a page with this slug already exists")
	ErrEmptyTitle        = errors.New("title must not be empty")
	ErrAlreadyModerated  = errors.New("revision has already been moderated")
	ErrBaseConflict      = errors.New("revision was based on an outdated version of the page")
	ErrNothingToRollback = errors.New("page has no approved revision to roll back")
	ErrNoRevisions       = errors.New("page has no revisions")
)

type CreatePageDTO struct {
	Title         string                   `json:"title" binding:"required"`
	Slug          string                   `json:"slug"`
	Namespace     string                   `json:"namespace"`
	Content       string                   `json:"content" binding:"required"`
	Summary       string                   `json:"summary"`
	Tags          []string                 `json:"tags"`
	Sections      []markdown.Section       `json:"sections"`
	Timeline      []markdown.TimelineEntry `json:"timeline"`
	RelatedTopics []string                 `json:"related_topics"`
	PageType      string                   `json:"page_type"`
	HeroImage     string                   `json:"hero_image"`
}

type SubmitRevisionDTO struct {
	Content       string                   `json:"content" binding:"required"`
	Summary       string                   `json:"summary"`
	Tags          []string                 `json:"tags"`
	Sections      []markdown.Section       `json:"sections"`
	Timeline      []markdown.TimelineEntry `json:"timeline"`
	RelatedTopics []string                 `json:"related_topics"`

	// Conflict-detection inputs, recorded exactly as submitted.
	BaseRevisionID *string     `json:"base_revision_id"`
	DiffContent    string      `json:"diff_content"`
	DiffStats      *diff.Stats `json:"diff_stats"`
}

type RejectDTO struct {
	Reason string `json:"reason"`
}

type Service struct {
	db    *gorm.DB
	locks *pagelock.Registry
}

func NewService(db *gorm.DB, locks *pagelock.Registry) *Service {
	return &Service{db: db, locks: locks}
}

// CreatePage creates a page together with its first pending revision.
// The page stays out of the published namespace until a moderator approves
// revision 1.
func (s *Service) CreatePage(dto *CreatePageDTO, userID string) (*models.PageModel, *models.PageRevisionModel, error) {
	pageSlug := strings.TrimSpace(dto.Slug)
	if pageSlug == "" {
		pageSlug = slug.Make(dto.Title)
	} else {
		pageSlug = slug.Make(pageSlug)
	}
	if pageSlug == "" {
		return nil, nil, ErrEmptyTitle
	}

	unlock := s.locks.Lock(pageSlug)
	defer unlock()

	var (
		page models.PageModel
		rev  models.PageRevisionModel
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.PageModel
		err := tx.Where("slug = ?", pageSlug).First(&existing).Error
		if err == nil {
			return ErrDuplicateSlug
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		pageType := dto.PageType
		if pageType == "" {
			pageType = "article"
		}
		page = models.PageModel{
			Slug:      pageSlug,
			Title:     strings.TrimSpace(dto.Title),
			Namespace: slug.NormalizeNamespace(dto.Namespace),
			Summary:   dto.Summary,
			HeroImage: dto.HeroImage,
			Tags:      dto.Tags,
			PageType:  pageType,
			Status:    models.PageStatusPending,
			CreatedBy: userID,
		}
		if err := tx.Create(&page).Error; err != nil {
			return err
		}

		rev = models.PageRevisionModel{
			PageID:         page.ID,
			RevisionNumber: 1,
			Content:        dto.Content,
			Summary:        dto.Summary,
			Sections:       dto.Sections,
			Timeline:       dto.Timeline,
			Tags:           dto.Tags,
			RelatedTopics:  dto.RelatedTopics,
			Status:         models.RevisionStatusPending,
			CreatedBy:      userID,
		}
		return tx.Create(&rev).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &page, &rev, nil
}

// SubmitRevision appends a pending revision to an existing page. The base
// revision pointer and client-computed diff are stored verbatim so the
// moderation view can replay exactly what the author saw.
func (s *Service) SubmitRevision(pageID string, dto *SubmitRevisionDTO, userID string) (*models.PageRevisionModel, error) {
	unlock := s.locks.Lock(pageID)
	defer unlock()

	var rev models.PageRevisionModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var page models.PageModel
		if err := tx.First(&page, "id = ?", pageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPageNotFound
			}
			return err
		}

		var latest int
		if err := tx.Model(&models.PageRevisionModel{}).
			Where("page_id = ?", pageID).
			Select("COALESCE(MAX(revision_number), 0)").
			Scan(&latest).Error; err != nil {
			return err
		}

		rev = models.PageRevisionModel{
			PageID:         pageID,
			RevisionNumber: latest + 1,
			Content:        dto.Content,
			Summary:        dto.Summary,
			Sections:       dto.Sections,
			Timeline:       dto.Timeline,
			Tags:           dto.Tags,
			RelatedTopics:  dto.RelatedTopics,
			Status:         models.RevisionStatusPending,
			CreatedBy:      userID,
			BaseRevisionID: dto.BaseRevisionID,
			DiffContent:    dto.DiffContent,
			DiffStats:      dto.DiffStats,
		}
		if err := tx.Create(&rev).Error; err != nil {
			return err
		}

		// Only the timestamp moves; published content is untouched until
		// a moderator approves.
		return tx.Model(&page).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// Approve publishes a pending revision. Approval fails when the revision was
// written against a base that is no longer the page's approved revision.
func (s *Service) Approve(revisionID, moderatorID string) (*models.PageRevisionModel, error) {
	rev, err := s.getRevision(revisionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(rev.PageID)
	defer unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(rev, "id = ?", revisionID).Error; err != nil {
			return err
		}
		if rev.Status != models.RevisionStatusPending {
			return ErrAlreadyModerated
		}

		var page models.PageModel
		if err := tx.First(&page, "id = ?", rev.PageID).Error; err != nil {
			return err
		}

		if rev.BaseRevisionID != nil {
			current := ""
			if page.ApprovedRevisionID != nil {
				current = *page.ApprovedRevisionID
			}
			if current != *rev.BaseRevisionID {
				return ErrBaseConflict
			}
		}

		now := time.Now()
		rev.Status = models.RevisionStatusApproved
		rev.ApprovedBy = &moderatorID
		rev.ApprovedAt = &now
		if err := tx.Model(rev).Updates(map[string]interface{}{
			"status":      rev.Status,
			"approved_by": moderatorID,
			"approved_at": now,
		}).Error; err != nil {
			return err
		}

		// Struct update so the json serializer runs for the tags column.
		page.ApprovedRevisionID = &rev.ID
		page.Status = models.PageStatusPublished
		page.Summary = rev.Summary
		page.Tags = rev.Tags
		if err := tx.Model(&page).
			Select("approved_revision_id", "status", "summary", "tags").
			Updates(&page).Error; err != nil {
			return err
		}

		details := models.JSONMap{
			"revision_number": rev.RevisionNumber,
			"had_diff":        rev.DiffContent != "",
		}
		if rev.DiffStats != nil {
			details["diff_stats"] = rev.DiffStats
		}
		return tx.Create(&models.ModerationEventModel{
			PageID:     page.ID,
			RevisionID: rev.ID,
			Action:     models.ModerationActionApproved,
			ActorID:    moderatorID,
			Details:    details,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

// Reject marks a pending revision rejected, optionally with a reason. The
// page and its published content are untouched.
func (s *Service) Reject(revisionID, moderatorID, reason string) (*models.PageRevisionModel, error) {
	rev, err := s.getRevision(revisionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(rev.PageID)
	defer unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(rev, "id = ?", revisionID).Error; err != nil {
			return err
		}
		if rev.Status != models.RevisionStatusPending {
			return ErrAlreadyModerated
		}

		rev.Status = models.RevisionStatusRejected
		rev.RejectionReason = reason
		if err := tx.Model(rev).Updates(map[string]interface{}{
			"status":           rev.Status,
			"rejection_reason": reason,
		}).Error; err != nil {
			return err
		}

		return tx.Create(&models.ModerationEventModel{
			PageID:     rev.PageID,
			RevisionID: rev.ID,
			Action:     models.ModerationActionRejected,
			ActorID:    moderatorID,
			Reason:     reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

// Rollback demotes the page's approved revision back to pending and restores
// the most recent previously approved revision. A page whose only approval is
// rolled back returns to the pending state with no published content.
func (s *Service) Rollback(pageID, moderatorID string) (*models.PageModel, error) {
	unlock := s.locks.Lock(pageID)
	defer unlock()

	var page models.PageModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&page, "id = ?", pageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPageNotFound
			}
			return err
		}
		if page.ApprovedRevisionID == nil {
			return ErrNothingToRollback
		}
		currentID := *page.ApprovedRevisionID

		var previous models.PageRevisionModel
		err := tx.Where("page_id = ? AND status = ? AND id <> ?",
			pageID, models.RevisionStatusApproved, currentID).
			Order("revision_number DESC").
			First(&previous).Error
		hasPrevious := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Model(&models.PageRevisionModel{}).
			Where("id = ?", currentID).
			Updates(map[string]interface{}{
				"status":      models.RevisionStatusPending,
				"approved_by": nil,
				"approved_at": nil,
			}).Error; err != nil {
			return err
		}

		if hasPrevious {
			page.ApprovedRevisionID = &previous.ID
			page.Summary = previous.Summary
			page.Tags = previous.Tags
			err = tx.Model(&page).
				Select("approved_revision_id", "summary", "tags").
				Updates(&page).Error
		} else {
			page.ApprovedRevisionID = nil
			page.Status = models.PageStatusPending
			err = tx.Model(&page).
				Select("approved_revision_id", "status").
				Updates(&page).Error
		}
		if err != nil {
			return err
		}

		return tx.Create(&models.ModerationEventModel{
			PageID:     pageID,
			RevisionID: currentID,
			Action:     models.ModerationActionRolledBack,
			ActorID:    moderatorID,
			Details: models.JSONMap{
				"restored_previous": hasPrevious,
			},
		}).Error
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.First(&page, "id = ?", pageID).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

// AutoApproveFirst approves the earliest revision of a freshly generated page
// without a moderator, whatever state that revision is in. Pages that already
// have an approved revision are left alone; a page with no revisions at all
// is an error.
func (s *Service) AutoApproveFirst(pageID string) (approved bool, err error) {
	unlock := s.locks.Lock(pageID)
	defer unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var page models.PageModel
		if err := tx.First(&page, "id = ?", pageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPageNotFound
			}
			return err
		}
		if page.ApprovedRevisionID != nil {
			return nil
		}

		var rev models.PageRevisionModel
		err := tx.Where("page_id = ?", pageID).
			Order("revision_number ASC").
			First(&rev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoRevisions
		}
		if err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&rev).Updates(map[string]interface{}{
			"status":      models.RevisionStatusApproved,
			"approved_at": now,
		}).Error; err != nil {
			return err
		}
		page.ApprovedRevisionID = &rev.ID
		page.Status = models.PageStatusPublished
		page.Summary = rev.Summary
		page.Tags = rev.Tags
		if err := tx.Model(&page).
			Select("approved_revision_id", "status", "summary", "tags").
			Updates(&page).Error; err != nil {
			return err
		}
		approved = true
		return tx.Create(&models.ModerationEventModel{
			PageID:     pageID,
			RevisionID: rev.ID,
			Action:     models.ModerationActionApproved,
			Details: models.JSONMap{
				"revision_number": rev.RevisionNumber,
				"auto":            true,
			},
		}).Error
	})
	return approved, err
}

// RepairPageStatuses re-derives page status from the approved revision
// pointer. Pages with an approved revision become published, published pages
// without one drop back to pending. Returns how many rows were fixed.
func (s *Service) RepairPageStatuses() (fixed int, err error) {
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PageModel{}).
			Where("approved_revision_id IS NOT NULL AND status <> ?", models.PageStatusPublished).
			Update("status", models.PageStatusPublished)
		if res.Error != nil {
			return res.Error
		}
		fixed += int(res.RowsAffected)

		res = tx.Model(&models.PageModel{}).
			Where("approved_revision_id IS NULL AND status = ?", models.PageStatusPublished).
			Update("status", models.PageStatusPending)
		if res.Error != nil {
			return res.Error
		}
		fixed += int(res.RowsAffected)
		return nil
	})
	return fixed, err
}

// PendingQueue lists pending revisions oldest-first for the moderation view.
func (s *Service) PendingQueue(q pagination.Query) ([]models.PageRevisionModel, response.Pagination, error) {
	tx := s.db.Model(&models.PageRevisionModel{}).
		Where("status = ?", models.RevisionStatusPending).
		Order("created_at ASC")
	var items []models.PageRevisionModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// History lists a page's revisions newest-first.
func (s *Service) History(pageID string, q pagination.Query) ([]models.PageRevisionModel, response.Pagination, error) {
	tx := s.db.Model(&models.PageRevisionModel{}).
		Where("page_id = ?", pageID).
		Order("revision_number DESC")
	var items []models.PageRevisionModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// Events lists the moderation trail for a page, newest-first.
func (s *Service) Events(pageID string, q pagination.Query) ([]models.ModerationEventModel, response.Pagination, error) {
	tx := s.db.Model(&models.ModerationEventModel{}).
		Where("page_id = ?", pageID).
		Order("created_at DESC")
	var items []models.ModerationEventModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// CompareWithApproved computes a server-side diff between the page's approved
// content and the given revision.
func (s *Service) CompareWithApproved(revisionID string) (string, diff.Stats, error) {
	rev, err := s.getRevision(revisionID)
	if err != nil {
		return "", diff.Stats{}, err
	}

	var page models.PageModel
	if err := s.db.First(&page, "id = ?", rev.PageID).Error; err != nil {
		return "", diff.Stats{}, err
	}

	base := ""
	if page.ApprovedRevisionID != nil {
		var approved models.PageRevisionModel
		if err := s.db.First(&approved, "id = ?", *page.ApprovedRevisionID).Error; err == nil {
			base = approved.Content
		}
	}

	patch := diff.Generate(base, rev.Content)
	stats := diff.CalculateStats(base, rev.Content)
	return patch, stats, nil
}

func (s *Service) getRevision(id string) (*models.PageRevisionModel, error) {
	var rev models.PageRevisionModel
	if err := s.db.First(&rev, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRevisionNotFound
		}
		return nil, err
	}
	return &rev, nil
}

type Handler struct {
	svc         *Service
	moderatorMW gin.HandlerFunc
}

func NewHandler(svc *Service, moderatorMW gin.HandlerFunc) *Handler {
	return &Handler{svc: svc, moderatorMW: moderatorMW}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.POST("/pages", authMW, h.createPage)
	rg.POST("/pages/:id/revisions", authMW, h.submitRevision)
	rg.GET("/pages/:id/revisions", h.history)
	rg.GET("/pages/:id/moderation", h.events)

	m := rg.Group("/moderation", authMW, h.moderatorMW)
	m.GET("/queue", h.queue)
	m.POST("/revisions/:id/approve", h.approve)
	m.POST("/revisions/:id/reject", h.reject)
	m.POST("/pages/:id/rollback", h.rollback)
	m.GET("/revisions/:id/diff", h.compare)
}

// POST /pages
func (h *Handler) createPage(c *gin.Context) {
	var dto CreatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	page, rev, err := h.svc.CreatePage(&dto, middleware.CurrentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateSlug):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrEmptyTitle):
			response.UnprocessableEntity(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, gin.H{"page": page, "revision": rev})
}

// POST /pages/:id/revisions
func (h *Handler) submitRevision(c *gin.Context) {
	var dto SubmitRevisionDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rev, err := h.svc.SubmitRevision(c.Param("id"), &dto, middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, rev)
}

// GET /pages/:id/revisions
func (h *Handler) history(c *gin.Context) {
	items, pag, err := h.svc.History(c.Param("id"), pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /pages/:id/moderation
func (h *Handler) events(c *gin.Context) {
	items, pag, err := h.svc.Events(c.Param("id"), pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /moderation/queue
func (h *Handler) queue(c *gin.Context) {
	items, pag, err := h.svc.PendingQueue(pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// POST /moderation/revisions/:id/approve
func (h *Handler) approve(c *gin.Context) {
	rev, err := h.svc.Approve(c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrRevisionNotFound):
			response.NotFound(c)
		case errors.Is(err, ErrAlreadyModerated):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrBaseConflict):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, rev)
}

// POST /moderation/revisions/:id/reject
func (h *Handler) reject(c *gin.Context) {
	// The reason is optional, as is the request body itself.
	var dto RejectDTO
	if err := c.ShouldBindJSON(&dto); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err.Error())
		return
	}
	rev, err := h.svc.Reject(c.Param("id"), middleware.CurrentUserID(c), dto.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrRevisionNotFound):
			response.NotFound(c)
		case errors.Is(err, ErrAlreadyModerated):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, rev)
}

// POST /moderation/pages/:id/rollback
func (h *Handler) rollback(c *gin.Context) {
	page, err := h.svc.Rollback(c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrPageNotFound):
			response.NotFound(c)
		case errors.Is(err, ErrNothingToRollback):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, page)
}

// GET /moderation/revisions/:id/diff
func (h *Handler) compare(c *gin.Context) {
	patch, stats, err := h.svc.CompareWithApproved(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrRevisionNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{
		"diff":    patch,
		"stats":   stats,
		"summary": diff.Summary(stats),
	})
}
