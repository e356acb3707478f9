package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/config"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/modules/roles"
	"github.com/vibecodingwiki/core/internal/pkg/jwt"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

const workosSyncHeader = "X-Webhook-Secret"

const sessionTTL = 7 * 24 * time.Hour

// SyncUserDTO is the payload the identity provider posts when a user is
// created or updated upstream.
type SyncUserDTO struct {
	WorkOSUserID string `json:"workos_user_id" binding:"required"`
	Email        string `json:"email"          binding:"required,email"`
	DisplayName  string `json:"display_name"`
	AvatarURL    string `json:"avatar_url"`
}

type LoginDTO struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenDTO struct {
	WorkOSUserID string `json:"workos_user_id" binding:"required"`
}

type Service struct {
	db      *gorm.DB
	roleSvc *roles.Service
}

func NewService(db *gorm.DB, roleSvc *roles.Service) *Service {
	return &Service{db: db, roleSvc: roleSvc}
}

// SyncUser upserts an account from the identity provider. First sync of an
// account grants the contributor role.
func (s *Service) SyncUser(dto *SyncUserDTO) (*models.UserModel, error) {
	email := strings.ToLower(strings.TrimSpace(dto.Email))

	var user models.UserModel
	err := s.db.Where("workos_user_id = ?", dto.WorkOSUserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Accounts created by the local login fallback may predate the
		// provider sync; match them by email and attach the provider id.
		err = s.db.Where("email = ?", email).First(&user).Error
	}
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"workos_user_id": dto.WorkOSUserID,
			"email":          email,
			"display_name":   dto.DisplayName,
			"avatar_url":     dto.AvatarURL,
		}
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		id := dto.WorkOSUserID
		user = models.UserModel{
			WorkOSUserID: &id,
			Email:        email,
			DisplayName:  dto.DisplayName,
			AvatarURL:    dto.AvatarURL,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		if _, err := s.roleSvc.Assign(user.ID, models.RoleContributor, "", nil); err != nil {
			return nil, err
		}
		if err := s.db.Create(&models.ProfileModel{UserID: user.ID}).Error; err != nil {
			return nil, err
		}
		return &user, nil
	default:
		return nil, err
	}
}

// Login validates the local password fallback and returns a signed token.
func (s *Service) Login(dto *LoginDTO) (string, *models.UserModel, error) {
	email := strings.ToLower(strings.TrimSpace(dto.Email))

	var user models.UserModel
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if user.Password == "" {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := jwt.Sign(user.ID, sessionTTL)
	if err != nil {
		return "", nil, err
	}
	s.touchLastSeen(user.ID)
	return token, &user, nil
}

// TokenFor mints a session token for a provider-synced account. Callers must
// already be authenticated as the provider.
func (s *Service) TokenFor(workosUserID string) (string, *models.UserModel, error) {
	var user models.UserModel
	if err := s.db.Where("workos_user_id = ?", workosUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrUserNotFound
		}
		return "", nil, err
	}
	token, err := jwt.Sign(user.ID, sessionTTL)
	if err != nil {
		return "", nil, err
	}
	s.touchLastSeen(user.ID)
	return token, &user, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(id string) (*models.UserModel, error) {
	var user models.UserModel
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) touchLastSeen(userID string) {
	now := time.Now()
	s.db.Model(&models.UserModel{}).Where("id = ?", userID).
		Update("last_seen_at", now)
}

type userResponse struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name"`
	AvatarURL   string        `json:"avatar_url"`
	Roles       []models.Role `json:"roles"`
	PrimaryRole models.Role   `json:"primary_role"`
}

type Handler struct {
	svc *Service
	cfg *config.AppConfig
}

func NewHandler(svc *Service, cfg *config.AppConfig) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/auth")
	g.POST("/login", h.login)
	g.POST("/workos/sync", h.syncUser)
	g.POST("/workos/token", h.mintToken)
	g.GET("/me", authMW, h.me)
}

// POST /auth/login
func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, user, err := h.svc.Login(&dto)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"token": token, "user": h.toResponse(user)})
}

// POST /auth/workos/sync
func (h *Handler) syncUser(c *gin.Context) {
	if !h.checkWebhookSecret(c) {
		return
	}
	var dto SyncUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.svc.SyncUser(&dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, h.toResponse(user))
}

// POST /auth/workos/token
func (h *Handler) mintToken(c *gin.Context) {
	if !h.checkWebhookSecret(c) {
		return
	}
	var dto TokenDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, user, err := h.svc.TokenFor(dto.WorkOSUserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"token": token, "user": h.toResponse(user)})
}

// GET /auth/me
func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.GetUser(middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, h.toResponse(user))
}

func (h *Handler) checkWebhookSecret(c *gin.Context) bool {
	secret := h.cfg.WorkOS.WebhookSecret
	if secret == "" {
		response.ForbiddenMsg(c, "identity sync is not configured")
		return false
	}
	got := strings.TrimSpace(c.GetHeader(workosSyncHeader))
	if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		response.Unauthorized(c)
		return false
	}
	return true
}

func (h *Handler) toResponse(u *models.UserModel) userResponse {
	held, _ := h.svc.roleSvc.RolesOf(u.ID)
	primary, _ := h.svc.roleSvc.PrimaryRole(u.ID)
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Roles:       held,
		PrimaryRole: primary,
	}
}
