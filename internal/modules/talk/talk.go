package talk

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/pagination"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrPageNotFound    = errors.New("page not found")
	ErrThreadNotFound  = errors.New("thread not found")
	ErrThreadNotOpen   = errors.New("thread is not open for replies")
	ErrMessageNotFound = errors.New("reply target not found in thread")
	ErrBadStatus       = errors.New("unknown thread status")
)

type CreateThreadDTO struct {
	Title   string `json:"title"   binding:"required"`
	Content string `json:"content" binding:"required"`
}

type PostMessageDTO struct {
	Content string  `json:"content" binding:"required"`
	ReplyTo *string `json:"reply_to"`
}

type SetStatusDTO struct {
	Status string `json:"status" binding:"required"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// CreateThread opens a thread on a page with its first message.
func (s *Service) CreateThread(pageID string, dto *CreateThreadDTO, userID string) (*models.TalkThreadModel, error) {
	var page models.PageModel
	if err := s.db.First(&page, "id = ?", pageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}

	var thread models.TalkThreadModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		thread = models.TalkThreadModel{
			PageID:       pageID,
			Title:        strings.TrimSpace(dto.Title),
			CreatedBy:    userID,
			Status:       models.ThreadStatusOpen,
			MessageCount: 1,
		}
		if err := tx.Create(&thread).Error; err != nil {
			return err
		}
		return tx.Create(&models.TalkMessageModel{
			ThreadID: thread.ID,
			PageID:   pageID,
			AuthorID: userID,
			Content:  dto.Content,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// PostMessage appends a message to an open thread.
func (s *Service) PostMessage(threadID string, dto *PostMessageDTO, userID string) (*models.TalkMessageModel, error) {
	var thread models.TalkThreadModel
	if err := s.db.First(&thread, "id = ?", threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	if thread.Status != models.ThreadStatusOpen {
		return nil, ErrThreadNotOpen
	}

	if dto.ReplyTo != nil {
		var parent models.TalkMessageModel
		err := s.db.Where("id = ? AND thread_id = ?", *dto.ReplyTo, threadID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	var msg models.TalkMessageModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		msg = models.TalkMessageModel{
			ThreadID: threadID,
			PageID:   thread.PageID,
			AuthorID: userID,
			Content:  dto.Content,
			ReplyTo:  dto.ReplyTo,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&thread).
			UpdateColumn("message_count", gorm.Expr("message_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SetStatus moves a thread between open, resolved and archived.
func (s *Service) SetStatus(threadID, status string) (*models.TalkThreadModel, error) {
	switch status {
	case models.ThreadStatusOpen, models.ThreadStatusResolved, models.ThreadStatusArchived:
	default:
		return nil, ErrBadStatus
	}

	var thread models.TalkThreadModel
	if err := s.db.First(&thread, "id = ?", threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	if err := s.db.Model(&thread).Update("status", status).Error; err != nil {
		return nil, err
	}
	thread.Status = status
	return &thread, nil
}

// Threads lists a page's threads, open first, newest within each state.
func (s *Service) Threads(pageID string, q pagination.Query) ([]models.TalkThreadModel, response.Pagination, error) {
	tx := s.db.Model(&models.TalkThreadModel{}).
		Where("page_id = ?", pageID).
		Order("CASE status WHEN 'open' THEN 0 WHEN 'resolved' THEN 1 ELSE 2 END").
		Order("created_at DESC")
	var items []models.TalkThreadModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// Messages lists a thread's messages oldest-first.
func (s *Service) Messages(threadID string) ([]models.TalkMessageModel, error) {
	var thread models.TalkThreadModel
	if err := s.db.First(&thread, "id = ?", threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	var items []models.TalkMessageModel
	err := s.db.Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

type Handler struct {
	svc         *Service
	moderatorMW gin.HandlerFunc
}

func NewHandler(svc *Service, moderatorMW gin.HandlerFunc) *Handler {
	return &Handler{svc: svc, moderatorMW: moderatorMW}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/pages/:id/talk", h.threads)
	rg.POST("/pages/:id/talk", authMW, h.createThread)

	g := rg.Group("/talk")
	g.GET("/:id/messages", h.messages)
	g.POST("/:id/messages", authMW, h.postMessage)
	g.PATCH("/:id/status", authMW, h.moderatorMW, h.setStatus)
}

// GET /pages/:id/talk
func (h *Handler) threads(c *gin.Context) {
	items, pag, err := h.svc.Threads(c.Param("id"), pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// POST /pages/:id/talk
func (h *Handler) createThread(c *gin.Context) {
	var dto CreateThreadDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thread, err := h.svc.CreateThread(c.Param("id"), &dto, middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, thread)
}

// GET /talk/:id/messages
func (h *Handler) messages(c *gin.Context) {
	items, err := h.svc.Messages(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, items)
}

// POST /talk/:id/messages
func (h *Handler) postMessage(c *gin.Context) {
	var dto PostMessageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	msg, err := h.svc.PostMessage(c.Param("id"), &dto, middleware.CurrentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrThreadNotFound), errors.Is(err, ErrMessageNotFound):
			response.NotFound(c)
		case errors.Is(err, ErrThreadNotOpen):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, msg)
}

// PATCH /talk/:id/status
func (h *Handler) setStatus(c *gin.Context) {
	var dto SetStatusDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	thread, err := h.svc.SetStatus(c.Param("id"), dto.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrThreadNotFound):
			response.NotFound(c)
		case errors.Is(err, ErrBadStatus):
			response.UnprocessableEntity(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, thread)
}
