package page

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/markdown"
	"github.com/vibecodingwiki/core/internal/pkg/pagination"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"github.com/vibecodingwiki/core/internal/pkg/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"
)

var ErrPageNotFound = errors.New("page not found")

const viewDedupTTL = time.Hour

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Table,
		extension.Strikethrough,
		extension.TaskList,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

// Wiki links: [[slug]] or [[slug|label]].
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]+))?\]\]`)

type Service struct {
	db  *gorm.DB
	rdb *redisclient.Client
}

func NewService(db *gorm.DB, rdb *redisclient.Client) *Service {
	return &Service{db: db, rdb: rdb}
}

// PageView is a page joined with its approved revision content.
type PageView struct {
	Page     models.PageModel          `json:"page"`
	Revision *models.PageRevisionModel `json:"revision,omitempty"`
	Watchers int64                     `json:"watchers"`
}

// GetBySlug returns the published view of a page. Pages without an approved
// revision are only visible when includePending is set.
func (s *Service) GetBySlug(pageSlug string, includePending bool) (*PageView, error) {
	var page models.PageModel
	if err := s.db.Where("slug = ?", pageSlug).First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	if page.ApprovedRevisionID == nil && !includePending {
		return nil, ErrPageNotFound
	}

	view := PageView{Page: page}
	if page.ApprovedRevisionID != nil {
		var rev models.PageRevisionModel
		if err := s.db.First(&rev, "id = ?", *page.ApprovedRevisionID).Error; err != nil {
			return nil, err
		}
		view.Revision = &rev
	}
	s.db.Model(&models.WatchlistModel{}).Where("page_id = ?", page.ID).Count(&view.Watchers)
	return &view, nil
}

// GetByID loads a page row.
func (s *Service) GetByID(id string) (*models.PageModel, error) {
	var page models.PageModel
	if err := s.db.First(&page, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

type ListFilter struct {
	Namespace string
	Tag       string
	Search    string
	Status    string
}

// List returns published pages newest-first, optionally filtered.
func (s *Service) List(q pagination.Query, f ListFilter) ([]models.PageModel, response.Pagination, error) {
	tx := s.db.Model(&models.PageModel{}).Order("updated_at DESC")
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	} else {
		tx = tx.Where("status = ?", models.PageStatusPublished)
	}
	if f.Namespace != "" {
		tx = tx.Where("namespace = ?", slug.NormalizeNamespace(f.Namespace))
	}
	if f.Tag != "" {
		tx = tx.Where("tags LIKE ?", "%\""+f.Tag+"\"%")
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		tx = tx.Where("title LIKE ? OR summary LIKE ? OR tags LIKE ?", like, like, like)
	}
	var items []models.PageModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// SearchResult pairs a matched page with a snippet of its approved content.
type SearchResult struct {
	Page    models.PageModel `json:"page"`
	Snippet string           `json:"snippet"`
}

const searchSnippetLen = 200

// Search matches published pages by title, summary or tag, case-insensitively.
// Title matches rank ahead of summary and tag matches.
func (s *Service) Search(query string, limit int) ([]SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	like := "%" + q + "%"
	var pages []models.PageModel
	err := s.db.Where("status = ?", models.PageStatusPublished).
		Where("LOWER(title) LIKE ? OR LOWER(summary) LIKE ? OR LOWER(tags) LIKE ?", like, like, like).
		Order("updated_at DESC").
		Find(&pages).Error
	if err != nil {
		return nil, err
	}

	ranked := make([]models.PageModel, 0, len(pages))
	var rest []models.PageModel
	for _, p := range pages {
		if strings.Contains(strings.ToLower(p.Title), q) {
			ranked = append(ranked, p)
		} else {
			rest = append(rest, p)
		}
	}
	ranked = append(ranked, rest...)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]SearchResult, 0, len(ranked))
	for _, p := range ranked {
		snippet := p.Summary
		if p.ApprovedRevisionID != nil {
			var rev models.PageRevisionModel
			if err := s.db.Select("content").First(&rev, "id = ?", *p.ApprovedRevisionID).Error; err == nil {
				snippet = truncateSnippet(rev.Content)
			}
		}
		results = append(results, SearchResult{Page: p, Snippet: snippet})
	}
	return results, nil
}

func truncateSnippet(content string) string {
	runes := []rune(content)
	if len(runes) > searchSnippetLen {
		return string(runes[:searchSnippetLen])
	}
	return content
}

// Popular returns published pages ranked by popularity score.
func (s *Service) Popular(limit int) ([]models.PageModel, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var items []models.PageModel
	err := s.db.Where("status = ?", models.PageStatusPublished).
		Order("popularity_score DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// DirectoryEntry is one namespace bucket in the page directory.
type DirectoryEntry struct {
	Namespace string `json:"namespace"`
	Count     int64  `json:"count"`
}

// Directory groups published pages by namespace.
func (s *Service) Directory() ([]DirectoryEntry, error) {
	var entries []DirectoryEntry
	err := s.db.Model(&models.PageModel{}).
		Where("status = ?", models.PageStatusPublished).
		Select("namespace, COUNT(*) as count").
		Group("namespace").
		Order("namespace ASC").
		Scan(&entries).Error
	return entries, err
}

// RecentChange is one entry in the recent-changes feed.
type RecentChange struct {
	PageID         string    `json:"page_id"`
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	RevisionID     string    `json:"revision_id"`
	RevisionNumber int       `json:"revision_number"`
	Summary        string    `json:"summary"`
	CreatedBy      string    `json:"created_by"`
	ApprovedAt     time.Time `json:"approved_at"`
}

// RecentChanges lists recently approved revisions across the wiki.
func (s *Service) RecentChanges(limit int) ([]RecentChange, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	var changes []RecentChange
	err := s.db.Model(&models.PageRevisionModel{}).
		Select(`page_revisions.page_id, pages.slug, pages.title,
			page_revisions.id as revision_id, page_revisions.revision_number,
			page_revisions.summary, page_revisions.created_by,
			page_revisions.approved_at`).
		Joins("JOIN pages ON pages.id = page_revisions.page_id").
		Where("page_revisions.status = ? AND page_revisions.approved_at IS NOT NULL",
			models.RevisionStatusApproved).
		Order("page_revisions.approved_at DESC").
		Limit(limit).
		Scan(&changes).Error
	return changes, err
}

// RenderHTML renders the approved content of a page to HTML. Wiki links are
// rewritten to site-relative anchors before the markdown pass.
func (s *Service) RenderHTML(pageSlug string) (string, error) {
	view, err := s.GetBySlug(pageSlug, false)
	if err != nil {
		return "", err
	}
	content := ""
	if view.Revision != nil {
		content = view.Revision.Content
	}

	text := wikiLinkPattern.ReplaceAllStringFunc(content, func(m string) string {
		groups := wikiLinkPattern.FindStringSubmatch(m)
		target := strings.TrimSpace(groups[1])
		label := target
		if len(groups) > 2 && strings.TrimSpace(groups[2]) != "" {
			label = strings.TrimSpace(groups[2])
		}
		return fmt.Sprintf("[%s](/wiki/%s)", label, slug.Make(target))
	})

	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Sections splits the approved content into editor sections.
func (s *Service) Sections(pageSlug string) (*markdown.ParsedContent, error) {
	view, err := s.GetBySlug(pageSlug, false)
	if err != nil {
		return nil, err
	}
	content := ""
	if view.Revision != nil {
		content = view.Revision.Content
	}
	parsed := markdown.MarkdownToSections(content)
	return &parsed, nil
}

// RecordView bumps the page view counter, deduplicating by client IP for an
// hour. Without Redis every request counts.
func (s *Service) RecordView(ctx *gin.Context, pageID string) error {
	if _, err := s.GetByID(pageID); err != nil {
		return err
	}

	if s.rdb != nil {
		key := fmt.Sprintf("vcw:view:%s:%s", pageID, ctx.ClientIP())
		ok, err := s.rdb.SetNX(ctx.Request.Context(), key, "1", viewDedupTTL).Result()
		if err == nil && !ok {
			return nil
		}
	}

	return s.db.Model(&models.PageModel{}).
		Where("id = ?", pageID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// Watch adds the page to the user's watchlist. Watching twice is a no-op.
func (s *Service) Watch(userID, pageID string) error {
	if _, err := s.GetByID(pageID); err != nil {
		return err
	}
	var existing models.WatchlistModel
	err := s.db.Where("user_id = ? AND page_id = ?", userID, pageID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.db.Create(&models.WatchlistModel{UserID: userID, PageID: pageID}).Error
}

// Unwatch removes the page from the user's watchlist. The row is deleted for
// real so a later re-watch does not trip the unique index.
func (s *Service) Unwatch(userID, pageID string) error {
	return s.db.Unscoped().
		Where("user_id = ? AND page_id = ?", userID, pageID).
		Delete(&models.WatchlistModel{}).Error
}

// Watchlist lists the pages the user watches.
func (s *Service) Watchlist(userID string) ([]models.PageModel, error) {
	var pages []models.PageModel
	err := s.db.Model(&models.PageModel{}).
		Joins("JOIN watchlists ON watchlists.page_id = pages.id").
		Where("watchlists.user_id = ?", userID).
		Order("pages.updated_at DESC").
		Find(&pages).Error
	return pages, err
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/pages")
	g.GET("", h.list)
	g.GET("/search", h.search)
	g.GET("/popular", h.popular)
	g.GET("/directory", h.directory)
	g.GET("/recent-changes", h.recentChanges)
	g.GET("/slug/:slug", h.getBySlug)
	g.GET("/slug/:slug/html", h.renderHTML)
	g.GET("/slug/:slug/sections", h.sections)
	g.POST("/:id/views", h.recordView)

	a := g.Group("", authMW)
	a.POST("/:id/watch", h.watch)
	a.DELETE("/:id/watch", h.unwatch)

	rg.GET("/watchlist", authMW, h.watchlist)
}

// GET /pages?namespace=&tag=&q=&status=
func (h *Handler) list(c *gin.Context) {
	f := ListFilter{
		Namespace: c.Query("namespace"),
		Tag:       c.Query("tag"),
		Search:    c.Query("q"),
	}
	// Only signed-in users may browse unpublished pages.
	if status := c.Query("status"); status != "" && middleware.IsAuthenticated(c) {
		f.Status = status
	}
	items, pag, err := h.svc.List(pagination.FromContext(c), f)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /pages/search?q=&limit=N
func (h *Handler) search(c *gin.Context) {
	limit := 0
	fmt.Sscanf(c.Query("limit"), "%d", &limit)
	results, err := h.svc.Search(c.Query("q"), limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, results)
}

// GET /pages/popular?limit=N
func (h *Handler) popular(c *gin.Context) {
	limit := 0
	fmt.Sscanf(c.Query("limit"), "%d", &limit)
	items, err := h.svc.Popular(limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, items)
}

// GET /pages/directory
func (h *Handler) directory(c *gin.Context) {
	entries, err := h.svc.Directory()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, entries)
}

// GET /pages/recent-changes?limit=N
func (h *Handler) recentChanges(c *gin.Context) {
	limit := 0
	fmt.Sscanf(c.Query("limit"), "%d", &limit)
	changes, err := h.svc.RecentChanges(limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, changes)
}

// GET /pages/slug/:slug
func (h *Handler) getBySlug(c *gin.Context) {
	includePending := middleware.IsAuthenticated(c)
	view, err := h.svc.GetBySlug(c.Param("slug"), includePending)
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, view)
}

// GET /pages/slug/:slug/html
func (h *Handler) renderHTML(c *gin.Context) {
	html, err := h.svc.RenderHTML(c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, html)
}

// GET /pages/slug/:slug/sections
func (h *Handler) sections(c *gin.Context) {
	parsed, err := h.svc.Sections(c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, parsed)
}

// POST /pages/:id/views
func (h *Handler) recordView(c *gin.Context) {
	if err := h.svc.RecordView(c, c.Param("id")); err != nil {
		if errors.Is(err, ErrPageNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// POST /pages/:id/watch
func (h *Handler) watch(c *gin.Context) {
	if err := h.svc.Watch(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		if errors.Is(err, ErrPageNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// DELETE /pages/:id/watch
func (h *Handler) unwatch(c *gin.Context) {
	if err := h.svc.Unwatch(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// GET /watchlist
func (h *Handler) watchlist(c *gin.Context) {
	pages, err := h.svc.Watchlist(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, pages)
}
