package roles

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrNotAssigned = errors.New("role not assigned")
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// RolesOf returns the user's unexpired role assignments.
func (s *Service) RolesOf(userID string) ([]models.Role, error) {
	var rows []models.RoleAssignmentModel
	err := s.db.
		Where("user_id = ?", userID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Role, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Role)
	}
	return out, nil
}

// PrimaryRole resolves the strongest held role. Users with no assignment
// default to reader.
func (s *Service) PrimaryRole(userID string) (models.Role, error) {
	held, err := s.RolesOf(userID)
	if err != nil {
		return "", err
	}
	for _, candidate := range models.RolePriority {
		for _, r := range held {
			if r == candidate {
				return candidate, nil
			}
		}
	}
	return models.RoleReader, nil
}

// HasAtLeast reports whether the user holds a role at or above min in the
// priority order.
func (s *Service) HasAtLeast(userID string, min models.Role) (bool, error) {
	primary, err := s.PrimaryRole(userID)
	if err != nil {
		return false, err
	}
	return rolePriorityIndex(primary) <= rolePriorityIndex(min), nil
}

// Assign grants a role, replacing an existing assignment of the same role.
func (s *Service) Assign(userID string, role models.Role, assignedBy string, expiresAt *time.Time) (*models.RoleAssignmentModel, error) {
	if !models.IsKnownRole(role) {
		return nil, ErrUnknownRole
	}

	var existing models.RoleAssignmentModel
	err := s.db.Where("user_id = ? AND role = ?", userID, role).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"assigned_by": assignedBy,
			"assigned_at": time.Now(),
			"expires_at":  expiresAt,
		}
		if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.RoleAssignmentModel{
			UserID:     userID,
			Role:       role,
			AssignedAt: time.Now(),
			ExpiresAt:  expiresAt,
		}
		if assignedBy != "" {
			row.AssignedBy = &assignedBy
		}
		return &row, s.db.Create(&row).Error
	default:
		return nil, err
	}
}

// Revoke removes a role assignment.
func (s *Service) Revoke(userID string, role models.Role) error {
	res := s.db.Where("user_id = ? AND role = ?", userID, role).
		Delete(&models.RoleAssignmentModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotAssigned
	}
	return nil
}

// SuperAdminCount counts users currently holding super_admin.
func (s *Service) SuperAdminCount() (int64, error) {
	var n int64
	err := s.db.Model(&models.RoleAssignmentModel{}).
		Where("role = ?", models.RoleSuperAdmin).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Count(&n).Error
	return n, err
}

func rolePriorityIndex(r models.Role) int {
	for i, known := range models.RolePriority {
		if r == known {
			return i
		}
	}
	return len(models.RolePriority)
}

// Require returns a middleware that rejects requests from users below min.
// It must run after the auth middleware.
func (s *Service) Require(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)
		if userID == "" {
			response.Unauthorized(c)
			return
		}
		ok, err := s.HasAtLeast(userID, min)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		if !ok {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}

type AssignRoleDTO struct {
	UserID    string     `json:"user_id" binding:"required"`
	Role      string     `json:"role"    binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/roles", authMW)
	g.GET("/me", h.mine)

	a := g.Group("", h.svc.Require(models.RoleSuperAdmin))
	a.GET("/users/:id", h.forUser)
	a.POST("", h.assign)
	a.DELETE("/users/:id/:role", h.revoke)
}

// GET /roles/me
func (h *Handler) mine(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	held, err := h.svc.RolesOf(userID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	primary, err := h.svc.PrimaryRole(userID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"roles": held, "primary": primary})
}

// GET /roles/users/:id
func (h *Handler) forUser(c *gin.Context) {
	held, err := h.svc.RolesOf(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"roles": held})
}

// POST /roles
func (h *Handler) assign(c *gin.Context) {
	var dto AssignRoleDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	row, err := h.svc.Assign(dto.UserID, models.Role(dto.Role), middleware.CurrentUserID(c), dto.ExpiresAt)
	if err != nil {
		if errors.Is(err, ErrUnknownRole) {
			response.UnprocessableEntity(c, "unknown role")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, row)
}

// DELETE /roles/users/:id/:role
func (h *Handler) revoke(c *gin.Context) {
	if err := h.svc.Revoke(c.Param("id"), models.Role(c.Param("role"))); err != nil {
		if errors.Is(err, ErrNotAssigned) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
