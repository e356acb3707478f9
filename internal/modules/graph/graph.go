package graph

import (
	"errors"
	"math"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"github.com/vibecodingwiki/core/internal/pkg/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrPageNotFound = errors.New("page not found")

// Wiki links: [[target]] or [[target|label]]. Only the target matters here.
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|[^\[\]]*)?\]\]`)

// Popularity weights. Watchers dominate, then revision activity, then talk.
const (
	watcherWeight  = 5
	revisionWeight = 2
	talkWeight     = 1
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// ExtractLinkTargets pulls wiki link target slugs out of markdown, deduplicated
// case-insensitively in first-seen order.
func ExtractLinkTargets(content string) []string {
	seen := map[string]bool{}
	var targets []string
	for _, m := range wikiLinkPattern.FindAllStringSubmatch(content, -1) {
		target := slug.Make(strings.TrimSpace(m[1]))
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}
	return targets
}

// RebuildPage recomputes the outgoing edges of one page from its approved
// content. Existing edges are dropped and replaced; self links and links to
// slugs that do not resolve to a page are skipped.
func (s *Service) RebuildPage(pageID string) (int, error) {
	var page models.PageModel
	if err := s.db.First(&page, "id = ?", pageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrPageNotFound
		}
		return 0, err
	}

	content := ""
	if page.ApprovedRevisionID != nil {
		var rev models.PageRevisionModel
		if err := s.db.First(&rev, "id = ?", *page.ApprovedRevisionID).Error; err == nil {
			content = rev.Content
		}
	}
	targets := ExtractLinkTargets(content)

	inserted := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("from_page_id = ?", page.ID).
			Delete(&models.PageLinkModel{}).Error; err != nil {
			return err
		}
		for _, target := range targets {
			if target == page.Slug {
				continue
			}
			var to models.PageModel
			err := tx.Select("id").Where("slug = ?", target).First(&to).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.Create(&models.PageLinkModel{
				FromPageID: page.ID,
				ToPageID:   to.ID,
				ToSlug:     target,
			}).Error; err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	return inserted, err
}

// RebuildAll rebuilds the link graph for every published page.
func (s *Service) RebuildAll() (pages, edges int, err error) {
	var ids []string
	if err := s.db.Model(&models.PageModel{}).
		Where("status = ?", models.PageStatusPublished).
		Pluck("id", &ids).Error; err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		n, err := s.RebuildPage(id)
		if err != nil {
			s.log.Warn("link graph rebuild failed for page",
				zap.String("page_id", id), zap.Error(err))
			continue
		}
		pages++
		edges += n
	}
	return pages, edges, nil
}

// Backlinks lists pages whose approved content links to the given page.
func (s *Service) Backlinks(pageID string) ([]models.PageModel, error) {
	var pages []models.PageModel
	err := s.db.Model(&models.PageModel{}).
		Joins("JOIN page_links ON page_links.from_page_id = pages.id").
		Where("page_links.to_page_id = ?", pageID).
		Order("pages.title ASC").
		Find(&pages).Error
	return pages, err
}

// Outgoing lists pages the given page links to.
func (s *Service) Outgoing(pageID string) ([]models.PageModel, error) {
	var pages []models.PageModel
	err := s.db.Model(&models.PageModel{}).
		Joins("JOIN page_links ON page_links.to_page_id = pages.id").
		Where("page_links.from_page_id = ?", pageID).
		Order("pages.title ASC").
		Find(&pages).Error
	return pages, err
}

// PopularityOf computes the weighted score for one page.
func (s *Service) PopularityOf(pageID string) (int, error) {
	var watchers, revisions, messages int64
	if err := s.db.Model(&models.WatchlistModel{}).
		Where("page_id = ?", pageID).Count(&watchers).Error; err != nil {
		return 0, err
	}
	if err := s.db.Model(&models.PageRevisionModel{}).
		Where("page_id = ?", pageID).Count(&revisions).Error; err != nil {
		return 0, err
	}
	if err := s.db.Model(&models.TalkMessageModel{}).
		Where("page_id = ?", pageID).Count(&messages).Error; err != nil {
		return 0, err
	}
	score := float64(watcherWeight*watchers) +
		float64(revisionWeight*revisions) +
		float64(talkWeight*messages)
	return int(math.Round(score)), nil
}

// RefreshPopularity recomputes scores for all pages, writing only rows whose
// score changed. Returns the number of updated pages.
func (s *Service) RefreshPopularity() (int, error) {
	var pages []models.PageModel
	if err := s.db.Select("id", "popularity_score").Find(&pages).Error; err != nil {
		return 0, err
	}

	updated := 0
	for _, page := range pages {
		score, err := s.PopularityOf(page.ID)
		if err != nil {
			s.log.Warn("popularity refresh failed for page",
				zap.String("page_id", page.ID), zap.Error(err))
			continue
		}
		if score == page.PopularityScore {
			continue
		}
		if err := s.db.Model(&models.PageModel{}).
			Where("id = ?", page.ID).
			Update("popularity_score", score).Error; err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/pages/:id/backlinks", h.backlinks)
	rg.GET("/pages/:id/links", h.outgoing)
}

// GET /pages/:id/backlinks
func (h *Handler) backlinks(c *gin.Context) {
	pages, err := h.svc.Backlinks(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, pages)
}

// GET /pages/:id/links
func (h *Handler) outgoing(c *gin.Context) {
	pages, err := h.svc.Outgoing(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, pages)
}
