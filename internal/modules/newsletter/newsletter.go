package newsletter

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/pagination"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"

	vcwmail "github.com/vibecodingwiki/core/internal/pkg/mail"
)

var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrNotSubscribed = errors.New("email is not subscribed")
)

// Mailer is the outbound email surface the service depends on.
type Mailer interface {
	Enabled() bool
	Send(msg vcwmail.Message) error
}

type Service struct {
	db     *gorm.DB
	mailer Mailer
	log    *zap.Logger
}

func NewService(db *gorm.DB, mailer Mailer, log *zap.Logger) *Service {
	return &Service{db: db, mailer: mailer, log: log}
}

// Subscribe records an opt-in. Resubscribing a previously unsubscribed
// address reactivates it; subscribing an active address is idempotent.
func (s *Service) Subscribe(ctx context.Context, email, source string) (*models.NewsletterSubscriberModel, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	var sub models.NewsletterSubscriberModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error
	switch {
	case err == nil:
		if sub.UnsubscribedAt == nil {
			return &sub, nil
		}
		updates := map[string]any{"unsubscribed_at": nil}
		if source != "" {
			updates["source"] = source
		}
		if err := s.db.WithContext(ctx).Model(&sub).Updates(updates).Error; err != nil {
			return nil, err
		}
		sub.UnsubscribedAt = nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = models.NewsletterSubscriberModel{Email: email, Source: source}
		if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
			return nil, err
		}
		s.sendWelcome(email)
	default:
		return nil, err
	}
	return &sub, nil
}

// Unsubscribe marks the address opted out. Repeated calls keep the
// original opt-out timestamp.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}

	var sub models.NewsletterSubscriberModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotSubscribed
		}
		return err
	}
	if sub.UnsubscribedAt != nil {
		return nil
	}
	now := time.Now()
	return s.db.WithContext(ctx).Model(&sub).Update("unsubscribed_at", now).Error
}

// ActiveCount returns the number of current subscribers.
func (s *Service) ActiveCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.NewsletterSubscriberModel{}).
		Where("unsubscribed_at IS NULL").
		Count(&count).Error
	return count, err
}

func (s *Service) sendWelcome(email string) {
	if s.mailer == nil || !s.mailer.Enabled() {
		return
	}
	go func() {
		html, err := vcwmail.RenderWelcome(email)
		if err != nil {
			s.log.Warn("render welcome email", zap.Error(err))
			return
		}
		err = s.mailer.Send(vcwmail.Message{
			To:      []string{email},
			Subject: "Welcome to the VibeCodingWiki newsletter",
			HTML:    html,
		})
		if err != nil {
			s.log.Warn("send welcome email", zap.String("email", email), zap.Error(err))
		}
	}()
}

func normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ""
	}
	return email
}

type Handler struct {
	svc *Service
	db  *gorm.DB
}

func NewHandler(svc *Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, moderatorMW gin.HandlerFunc) {
	g := rg.Group("/newsletter")
	g.POST("/subscribe", h.subscribe)
	g.POST("/unsubscribe", h.unsubscribe)
	g.GET("/subscribers", moderatorMW, h.listSubscribers)
}

type emailBody struct {
	Email  string `json:"email" binding:"required"`
	Source string `json:"source"`
}

// POST /newsletter/subscribe
func (h *Handler) subscribe(c *gin.Context) {
	var body emailBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "email is required")
		return
	}

	sub, err := h.svc.Subscribe(c.Request.Context(), body.Email, body.Source)
	if err != nil {
		if errors.Is(err, ErrInvalidEmail) {
			response.UnprocessableEntity(c, "invalid email address")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, sub)
}

// POST /newsletter/unsubscribe
func (h *Handler) unsubscribe(c *gin.Context) {
	var body emailBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "email is required")
		return
	}

	if err := h.svc.Unsubscribe(c.Request.Context(), body.Email); err != nil {
		switch {
		case errors.Is(err, ErrInvalidEmail):
			response.UnprocessableEntity(c, "invalid email address")
		case errors.Is(err, ErrNotSubscribed):
			response.NotFoundMsg(c, "email is not subscribed")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.NoContent(c)
}

// GET /newsletter/subscribers?active=true
func (h *Handler) listSubscribers(c *gin.Context) {
	q := pagination.FromContext(c)

	query := h.db.Model(&models.NewsletterSubscriberModel{}).Order("created_at DESC")
	if c.Query("active") == "true" {
		query = query.Where("unsubscribed_at IS NULL")
	}

	var subs []models.NewsletterSubscriberModel
	meta, err := pagination.Paginate(query, q, &subs)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, subs, meta)
}
