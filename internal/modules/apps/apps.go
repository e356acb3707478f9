package apps

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/pagination"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrAppNotFound      = errors.New("app submission not found")
	ErrInvalidURL       = errors.New("app url must be a valid http(s) link")
	ErrEmptyName        = errors.New("app name is required")
	ErrAlreadyReviewed  = errors.New("submission has already been reviewed")
	ErrAlreadyVoted     = errors.New("already voted for this app")
	ErrVoteNeedsApprove = errors.New("only approved apps accept votes")
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type SubmitInput struct {
	Name        string   `json:"name"`
	Tagline     string   `json:"tagline"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	IconURL     string   `json:"icon_url"`
	Tags        []string `json:"tags"`
}

// Submit records a new directory entry in the pending state.
func (s *Service) Submit(ctx context.Context, in SubmitInput, submittedBy string) (*models.AppSubmissionModel, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	appURL := strings.TrimSpace(in.URL)
	if parsed, err := url.Parse(appURL); err != nil || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, ErrInvalidURL
	}

	app := models.AppSubmissionModel{
		Name:        name,
		Tagline:     strings.TrimSpace(in.Tagline),
		Description: in.Description,
		URL:         appURL,
		IconURL:     strings.TrimSpace(in.IconURL),
		Tags:        in.Tags,
		Status:      models.AppStatusPending,
		SubmittedBy: submittedBy,
	}
	if err := s.db.WithContext(ctx).Create(&app).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.AppSubmissionModel, error) {
	var app models.AppSubmissionModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppNotFound
		}
		return nil, err
	}
	return &app, nil
}

// Review settles a pending submission. Reviews are terminal, a decided
// submission cannot change state again.
func (s *Service) Review(ctx context.Context, id, reviewedBy string, approve bool) (*models.AppSubmissionModel, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != models.AppStatusPending {
		return nil, ErrAlreadyReviewed
	}

	status := models.AppStatusRejected
	if approve {
		status = models.AppStatusApproved
	}
	err = s.db.WithContext(ctx).Model(app).Updates(map[string]any{
		"status":      status,
		"reviewed_by": reviewedBy,
	}).Error
	if err != nil {
		return nil, err
	}
	app.Status = status
	app.ReviewedBy = &reviewedBy
	return app, nil
}

// Vote adds one upvote per user. The unique index backs the dedup, so
// concurrent duplicate votes collapse to a single count increment.
func (s *Service) Vote(ctx context.Context, id, userID string) (*models.AppSubmissionModel, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != models.AppStatusApproved {
		return nil, ErrVoteNeedsApprove
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vote := models.AppVoteModel{AppID: app.ID, UserID: userID}
		if err := tx.Create(&vote).Error; err != nil {
			if isDuplicateErr(err) {
				return ErrAlreadyVoted
			}
			return err
		}
		return tx.Model(&models.AppSubmissionModel{}).
			Where("id = ?", app.ID).
			Update("vote_count", gorm.Expr("vote_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

type Handler struct {
	svc *Service
	db  *gorm.DB
}

func NewHandler(svc *Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, moderatorMW gin.HandlerFunc) {
	g := rg.Group("/apps")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", authMW, h.submit)
	g.POST("/:id/vote", authMW, h.vote)
	g.GET("/review/queue", authMW, moderatorMW, h.reviewQueue)
	g.POST("/:id/approve", authMW, moderatorMW, h.approve)
	g.POST("/:id/reject", authMW, moderatorMW, h.reject)
}

// GET /apps?tag=X
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	query := h.db.Model(&models.AppSubmissionModel{}).
		Where("status = ?", models.AppStatusApproved).
		Order("vote_count DESC, created_at DESC")
	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		query = query.Where("tags LIKE ?", `%"`+strings.ToLower(tag)+`"%`)
	}

	var items []models.AppSubmissionModel
	meta, err := pagination.Paginate(query, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, meta)
}

// GET /apps/:id
func (h *Handler) get(c *gin.Context) {
	app, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrAppNotFound) {
			response.NotFoundMsg(c, "app submission not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, app)
}

// POST /apps
func (h *Handler) submit(c *gin.Context) {
	var in SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	app, err := h.svc.Submit(c.Request.Context(), in, middleware.CurrentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyName):
			response.UnprocessableEntity(c, "app name is required")
		case errors.Is(err, ErrInvalidURL):
			response.UnprocessableEntity(c, "app url must be a valid http(s) link")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, app)
}

// POST /apps/:id/vote
func (h *Handler) vote(c *gin.Context) {
	app, err := h.svc.Vote(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrAppNotFound):
			response.NotFoundMsg(c, "app submission not found")
		case errors.Is(err, ErrVoteNeedsApprove):
			response.UnprocessableEntity(c, "only approved apps accept votes")
		case errors.Is(err, ErrAlreadyVoted):
			response.Conflict(c, "already voted for this app")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, app)
}

// GET /apps/review/queue
func (h *Handler) reviewQueue(c *gin.Context) {
	q := pagination.FromContext(c)

	query := h.db.Model(&models.AppSubmissionModel{}).
		Where("status = ?", models.AppStatusPending).
		Order("created_at ASC")

	var items []models.AppSubmissionModel
	meta, err := pagination.Paginate(query, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, meta)
}

// POST /apps/:id/approve
func (h *Handler) approve(c *gin.Context) {
	h.review(c, true)
}

// POST /apps/:id/reject
func (h *Handler) reject(c *gin.Context) {
	h.review(c, false)
}

func (h *Handler) review(c *gin.Context, approve bool) {
	app, err := h.svc.Review(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), approve)
	if err != nil {
		switch {
		case errors.Is(err, ErrAppNotFound):
			response.NotFoundMsg(c, "app submission not found")
		case errors.Is(err, ErrAlreadyReviewed):
			response.Conflict(c, "submission has already been reviewed")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, app)
}
