package sponsor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/pagination"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrSponsorNotFound = errors.New("sponsor not found")
	ErrEmptyName       = errors.New("sponsor name is required")
	ErrUnknownTier     = errors.New("unknown sponsor tier")
)

var knownTiers = []string{"platinum", "gold", "silver", "supporter"}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type SponsorInput struct {
	Name     string     `json:"name"`
	URL      string     `json:"url"`
	LogoURL  string     `json:"logo_url"`
	Tier     string     `json:"tier"`
	Blurb    string     `json:"blurb"`
	Active   *bool      `json:"active"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Order    *int       `json:"order"`
}

func (s *Service) Create(ctx context.Context, in SponsorInput) (*models.SponsorModel, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	tier, err := normalizeTier(in.Tier)
	if err != nil {
		return nil, err
	}

	sponsor := models.SponsorModel{
		Name:     name,
		URL:      strings.TrimSpace(in.URL),
		LogoURL:  strings.TrimSpace(in.LogoURL),
		Tier:     tier,
		Blurb:    in.Blurb,
		Active:   true,
		StartsAt: in.StartsAt,
		EndsAt:   in.EndsAt,
	}
	if in.Active != nil {
		sponsor.Active = *in.Active
	}
	if in.Order != nil {
		sponsor.Order = *in.Order
	}
	if err := s.db.WithContext(ctx).Create(&sponsor).Error; err != nil {
		return nil, err
	}
	return &sponsor, nil
}

func (s *Service) Update(ctx context.Context, id string, in SponsorInput) (*models.SponsorModel, error) {
	sponsor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(in.Name); name != "" {
		updates["name"] = name
	}
	if in.URL != "" {
		updates["url"] = strings.TrimSpace(in.URL)
	}
	if in.LogoURL != "" {
		updates["logo_url"] = strings.TrimSpace(in.LogoURL)
	}
	if in.Tier != "" {
		tier, err := normalizeTier(in.Tier)
		if err != nil {
			return nil, err
		}
		updates["tier"] = tier
	}
	if in.Blurb != "" {
		updates["blurb"] = in.Blurb
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if in.StartsAt != nil {
		updates["starts_at"] = in.StartsAt
	}
	if in.EndsAt != nil {
		updates["ends_at"] = in.EndsAt
	}
	if in.Order != nil {
		updates["order"] = *in.Order
	}
	if len(updates) == 0 {
		return sponsor, nil
	}

	if err := s.db.WithContext(ctx).Model(sponsor).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*models.SponsorModel, error) {
	var sponsor models.SponsorModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sponsor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSponsorNotFound
		}
		return nil, err
	}
	return &sponsor, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	sponsor, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.SponsorModel{}, "id = ?", sponsor.ID).Error
}

// ActiveNow returns the placements currently in their display window,
// ordered for rendering.
func (s *Service) ActiveNow(ctx context.Context, now time.Time) ([]models.SponsorModel, error) {
	var sponsors []models.SponsorModel
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Where("starts_at IS NULL OR starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at > ?", now).
		Order("`order` ASC, created_at ASC").
		Find(&sponsors).Error
	return sponsors, err
}

func normalizeTier(tier string) (string, error) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	if tier == "" {
		return "supporter", nil
	}
	for _, known := range knownTiers {
		if tier == known {
			return tier, nil
		}
	}
	return "", ErrUnknownTier
}

type Handler struct {
	svc *Service
	db  *gorm.DB
}

func NewHandler(svc *Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, moderatorMW gin.HandlerFunc) {
	g := rg.Group("/sponsors")
	g.GET("", h.listActive)
	g.GET("/all", moderatorMW, h.listAll)
	g.POST("", moderatorMW, h.create)
	g.PATCH("/:id", moderatorMW, h.update)
	g.DELETE("/:id", moderatorMW, h.delete)
}

// GET /sponsors
func (h *Handler) listActive(c *gin.Context) {
	sponsors, err := h.svc.ActiveNow(c.Request.Context(), time.Now())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, sponsors)
}

// GET /sponsors/all
func (h *Handler) listAll(c *gin.Context) {
	q := pagination.FromContext(c)

	query := h.db.Model(&models.SponsorModel{}).Order("created_at DESC")
	if tier := strings.TrimSpace(c.Query("tier")); tier != "" {
		query = query.Where("tier = ?", strings.ToLower(tier))
	}

	var sponsors []models.SponsorModel
	meta, err := pagination.Paginate(query, q, &sponsors)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, sponsors, meta)
}

// POST /sponsors
func (h *Handler) create(c *gin.Context) {
	var in SponsorInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	sponsor, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyName):
			response.UnprocessableEntity(c, "sponsor name is required")
		case errors.Is(err, ErrUnknownTier):
			response.UnprocessableEntity(c, "unknown sponsor tier")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, sponsor)
}

// PATCH /sponsors/:id
func (h *Handler) update(c *gin.Context) {
	var in SponsorInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	sponsor, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrSponsorNotFound):
			response.NotFoundMsg(c, "sponsor not found")
		case errors.Is(err, ErrUnknownTier):
			response.UnprocessableEntity(c, "unknown sponsor tier")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, sponsor)
}

// DELETE /sponsors/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrSponsorNotFound) {
			response.NotFoundMsg(c, "sponsor not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
