package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/modules/ai"
	"github.com/vibecodingwiki/core/internal/modules/revision"
	"github.com/vibecodingwiki/core/internal/pkg/pagination"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"github.com/vibecodingwiki/core/internal/pkg/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("ingestion job not found")

const (
	// How many queued jobs one poll tick picks up.
	pollBatchSize = 5
	// Running jobs older than this are considered wedged.
	runningTimeout      = 15 * time.Minute
	timeoutFailureError = "ingestion timed out after 15 minutes"
)

// Scraper turns a source URL into markdown. Satisfied by FirecrawlClient.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*ScrapeResult, error)
	Enabled() bool
}

// Drafter turns scraped text into a page draft. Satisfied by ai.Service.
type Drafter interface {
	DraftPage(ctx context.Context, topic, sourceText string) (*ai.Draft, error)
	Enabled() bool
}

type Service struct {
	db      *gorm.DB
	scraper Scraper
	drafter Drafter
	revSvc  *revision.Service
	log     *zap.Logger
}

func NewService(db *gorm.DB, scraper Scraper, drafter Drafter, revSvc *revision.Service, log *zap.Logger) *Service {
	return &Service{db: db, scraper: scraper, drafter: drafter, revSvc: revSvc, log: log}
}

// Create enqueues a scrape-and-draft job for a source URL.
func (s *Service) Create(sourceURL, pageSlug, createdBy string) (*models.IngestionJobModel, error) {
	job := models.IngestionJobModel{
		SourceURL: sourceURL,
		PageSlug:  slug.Make(pageSlug),
		Status:    models.IngestionStatusQueued,
		CreatedBy: createdBy,
	}
	return &job, s.db.Create(&job).Error
}

// Get loads a job.
func (s *Service) Get(id string) (*models.IngestionJobModel, error) {
	var job models.IngestionJobModel
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// List returns jobs newest-first, optionally filtered by status.
func (s *Service) List(q pagination.Query, status string) ([]models.IngestionJobModel, response.Pagination, error) {
	tx := s.db.Model(&models.IngestionJobModel{}).Order("created_at DESC")
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var items []models.IngestionJobModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// PollResult summarizes one scheduler tick.
type PollResult struct {
	Started  int `json:"started"`
	TimedOut int `json:"timed_out"`
}

// Poll advances the job queue: wedged running jobs are failed, then up to
// five queued jobs are started.
func (s *Service) Poll(ctx context.Context) (PollResult, error) {
	var result PollResult

	cutoff := time.Now().Add(-runningTimeout)
	var wedged []models.IngestionJobModel
	if err := s.db.Where("status = ? AND started_at < ?",
		models.IngestionStatusRunning, cutoff).
		Find(&wedged).Error; err != nil {
		return result, err
	}
	for _, job := range wedged {
		if err := s.finish(&job, models.IngestionStatusFailed, timeoutFailureError, nil); err != nil {
			return result, err
		}
		result.TimedOut++
	}

	var queued []models.IngestionJobModel
	if err := s.db.Where("status = ?", models.IngestionStatusQueued).
		Order("created_at ASC").
		Limit(pollBatchSize).
		Find(&queued).Error; err != nil {
		return result, err
	}
	for i := range queued {
		job := queued[i]
		now := time.Now()
		if err := s.db.Model(&job).Updates(map[string]interface{}{
			"status":     models.IngestionStatusRunning,
			"started_at": now,
		}).Error; err != nil {
			return result, err
		}
		result.Started++
		go s.run(context.WithoutCancel(ctx), job.ID)
	}
	return result, nil
}

// run executes one job end to end: scrape, draft, create page, auto-approve.
func (s *Service) run(ctx context.Context, jobID string) {
	job, err := s.Get(jobID)
	if err != nil {
		s.log.Error("ingestion job vanished", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	scraped, err := s.scraper.Scrape(ctx, job.SourceURL)
	if err != nil {
		s.failJob(job, err)
		return
	}

	topic := scraped.Title
	if topic == "" {
		topic = job.SourceURL
	}
	draft, err := s.drafter.DraftPage(ctx, topic, scraped.Markdown)
	if err != nil {
		s.failJob(job, err)
		return
	}

	pageSlug := job.PageSlug
	if pageSlug == "" {
		pageSlug = slug.Make(draft.Title)
	}
	hero := ""
	if len(scraped.Images) > 0 {
		hero = scraped.Images[0]
	}

	page, rev, err := s.revSvc.CreatePage(&revision.CreatePageDTO{
		Title:         draft.Title,
		Slug:          pageSlug,
		Content:       draft.Content,
		Summary:       draft.Summary,
		Tags:          draft.Tags,
		RelatedTopics: draft.RelatedTopics,
		HeroImage:     hero,
	}, job.CreatedBy)
	if err != nil {
		s.failJob(job, err)
		return
	}

	now := time.Now()
	s.db.Model(&models.PageModel{}).Where("id = ?", page.ID).
		Update("last_scraped_at", now)
	s.db.Model(&models.PageRevisionModel{}).Where("id = ?", rev.ID).
		Updates(map[string]interface{}{
			"ingestion_job_id": job.ID,
			"imported_from":    job.SourceURL,
		})

	for _, img := range scraped.Images {
		s.db.Create(&models.MediaModel{
			Key:       "ingested/" + page.ID + "/" + slug.Make(img),
			URL:       img,
			SourceURL: job.SourceURL,
			PageID:    &page.ID,
		})
	}

	if _, err := s.revSvc.AutoApproveFirst(page.ID); err != nil {
		s.log.Warn("auto-approve after ingestion failed",
			zap.String("page_id", page.ID), zap.Error(err))
	}

	if err := s.finish(job, models.IngestionStatusSucceeded, "", &rev.ID); err != nil {
		s.log.Error("ingestion job finish failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *Service) failJob(job *models.IngestionJobModel, cause error) {
	s.log.Warn("ingestion job failed",
		zap.String("job_id", job.ID),
		zap.String("source_url", job.SourceURL),
		zap.Error(cause))
	if err := s.finish(job, models.IngestionStatusFailed, cause.Error(), nil); err != nil {
		s.log.Error("ingestion job finish failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *Service) finish(job *models.IngestionJobModel, status, errMsg string, revisionID *string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": now,
		"error":       errMsg,
	}
	if revisionID != nil {
		updates["revision_id"] = *revisionID
	}
	return s.db.Model(&models.IngestionJobModel{}).
		Where("id = ?", job.ID).
		Updates(updates).Error
}

type CreateJobDTO struct {
	SourceURL string `json:"source_url" binding:"required,url"`
	PageSlug  string `json:"page_slug"`
}

type Handler struct {
	svc       *Service
	featureMW gin.HandlerFunc
}

func NewHandler(svc *Service, featureMW gin.HandlerFunc) *Handler {
	return &Handler{svc: svc, featureMW: featureMW}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/ingestion", authMW)
	g.POST("/jobs", h.featureMW, h.create)
	g.GET("/jobs", h.list)
	g.GET("/jobs/:id", h.get)
}

// POST /ingestion/jobs
func (h *Handler) create(c *gin.Context) {
	if !h.svc.scraper.Enabled() || !h.svc.drafter.Enabled() {
		response.ForbiddenMsg(c, "ingestion pipeline is not configured")
		return
	}
	var dto CreateJobDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	job, err := h.svc.Create(dto.SourceURL, dto.PageSlug, middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, job)
}

// GET /ingestion/jobs?status=
func (h *Handler) list(c *gin.Context) {
	items, pag, err := h.svc.List(pagination.FromContext(c), c.Query("status"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /ingestion/jobs/:id
func (h *Handler) get(c *gin.Context) {
	job, err := h.svc.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, job)
}
