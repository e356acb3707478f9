package system

import (
	"errors"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/modules/graph"
	"github.com/vibecodingwiki/core/internal/modules/ingestion"
	"github.com/vibecodingwiki/core/internal/modules/revision"
	"github.com/vibecodingwiki/core/internal/modules/roles"
	"github.com/vibecodingwiki/core/internal/pkg/cron"
	vcwredis "github.com/vibecodingwiki/core/internal/pkg/redis"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var startedAt = time.Now()

// Handler exposes health, first-run bootstrap, and the operator surface.
type Handler struct {
	db        *gorm.DB
	rdb       *vcwredis.Client
	sched     *cron.Scheduler
	revSvc    *revision.Service
	graphSvc  *graph.Service
	ingestSvc *ingestion.Service
	rolesSvc  *roles.Service
}

func NewHandler(
	db *gorm.DB,
	rdb *vcwredis.Client,
	sched *cron.Scheduler,
	revSvc *revision.Service,
	graphSvc *graph.Service,
	ingestSvc *ingestion.Service,
	rolesSvc *roles.Service,
) *Handler {
	return &Handler{
		db:        db,
		rdb:       rdb,
		sched:     sched,
		revSvc:    revSvc,
		graphSvc:  graphSvc,
		ingestSvc: ingestSvc,
		rolesSvc:  rolesSvc,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, operatorMW gin.HandlerFunc) {
	rg.GET("/health", h.health)
	rg.GET("/init", h.checkInit)
	rg.POST("/init", h.bootstrap)

	ops := rg.Group("/ops", operatorMW)
	ops.POST("/pages/:id/auto-approve", h.autoApprove)
	ops.POST("/repair/page-status", h.repairStatuses)
	ops.POST("/graph/rebuild", h.rebuildGraph)
	ops.POST("/popularity/refresh", h.refreshPopularity)
	ops.POST("/ingestion/poll", h.pollIngestion)
	ops.POST("/cache/purge", h.purgeCache)
	ops.GET("/tasks", h.listTasks)
	ops.GET("/tasks/:name", h.taskStatus)
	ops.POST("/tasks/:name/run", h.runTask)
}

// GET /health
func (h *Handler) health(c *gin.Context) {
	dbOK := false
	if sqlDB, err := h.db.DB(); err == nil {
		dbOK = sqlDB.Ping() == nil
	}

	redisOK := false
	if h.rdb != nil {
		redisOK = h.rdb.Raw().Ping(c.Request.Context()).Err() == nil
	}

	status := "ok"
	code := http.StatusOK
	if !dbOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":         status,
		"database":       dbOK,
		"redis":          redisOK,
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	})
}

func (h *Handler) initialized() bool {
	count, err := h.rolesSvc.SuperAdminCount()
	return err == nil && count > 0
}

// GET /init
func (h *Handler) checkInit(c *gin.Context) {
	response.OK(c, gin.H{"needs_init": !h.initialized()})
}

type bootstrapBody struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

// POST /init creates the first super admin. Refused once one exists.
func (h *Handler) bootstrap(c *gin.Context) {
	if h.initialized() {
		response.ForbiddenMsg(c, "already initialized")
		return
	}

	var body bootstrapBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || len(body.Password) < 8 {
		response.UnprocessableEntity(c, "email is required and password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	displayName := strings.TrimSpace(body.DisplayName)
	if displayName == "" {
		displayName = "Admin"
	}

	var user models.UserModel
	err = h.db.Transaction(func(tx *gorm.DB) error {
		user = models.UserModel{
			Email:       email,
			Password:    string(hash),
			DisplayName: displayName,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProfileModel{UserID: user.ID}).Error
	})
	if err != nil {
		response.InternalError(c, err)
		return
	}

	if _, err := h.rolesSvc.Assign(user.ID, models.RoleSuperAdmin, user.ID, nil); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, gin.H{"id": user.ID, "email": user.Email})
}

// POST /ops/pages/:id/auto-approve
func (h *Handler) autoApprove(c *gin.Context) {
	approved, err := h.revSvc.AutoApproveFirst(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, revision.ErrPageNotFound):
			response.NotFoundMsg(c, "page not found")
		case errors.Is(err, revision.ErrNoRevisions):
			response.UnprocessableEntity(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, gin.H{"approved": approved})
}

// POST /ops/repair/page-status
func (h *Handler) repairStatuses(c *gin.Context) {
	fixed, err := h.revSvc.RepairPageStatuses()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"fixed": fixed})
}

// POST /ops/graph/rebuild
func (h *Handler) rebuildGraph(c *gin.Context) {
	pages, edges, err := h.graphSvc.RebuildAll()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"pages": pages, "edges": edges})
}

// POST /ops/popularity/refresh
func (h *Handler) refreshPopularity(c *gin.Context) {
	updated, err := h.graphSvc.RefreshPopularity()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"updated": updated})
}

// POST /ops/ingestion/poll
func (h *Handler) pollIngestion(c *gin.Context) {
	result, err := h.ingestSvc.Poll(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, result)
}

// POST /ops/cache/purge
func (h *Handler) purgeCache(c *gin.Context) {
	if h.rdb == nil {
		response.OK(c, gin.H{"purged": 0})
		return
	}
	purged, err := middleware.PurgeHTTPCache(c.Request.Context(), h.rdb.Raw())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"purged": purged})
}

// GET /ops/tasks
func (h *Handler) listTasks(c *gin.Context) {
	response.OK(c, h.sched.List())
}

// GET /ops/tasks/:name
func (h *Handler) taskStatus(c *gin.Context) {
	result, err := h.sched.GetTask(c.Param("name"))
	if err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	response.OK(c, result)
}

// POST /ops/tasks/:name/run
func (h *Handler) runTask(c *gin.Context) {
	if err := h.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	response.OK(c, gin.H{"message": "task triggered"})
}
