package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/modules/ai"
	"github.com/vibecodingwiki/core/internal/modules/apps"
	"github.com/vibecodingwiki/core/internal/modules/auth"
	"github.com/vibecodingwiki/core/internal/modules/billing"
	"github.com/vibecodingwiki/core/internal/modules/graph"
	"github.com/vibecodingwiki/core/internal/modules/ingestion"
	"github.com/vibecodingwiki/core/internal/modules/media"
	"github.com/vibecodingwiki/core/internal/modules/newsletter"
	"github.com/vibecodingwiki/core/internal/modules/page"
	"github.com/vibecodingwiki/core/internal/modules/revision"
	"github.com/vibecodingwiki/core/internal/modules/roles"
	"github.com/vibecodingwiki/core/internal/modules/sponsor"
	"github.com/vibecodingwiki/core/internal/modules/system"
	"github.com/vibecodingwiki/core/internal/modules/talk"
	"github.com/vibecodingwiki/core/internal/pkg/mail"
	"github.com/vibecodingwiki/core/internal/pkg/pagelock"
	pkgredis "github.com/vibecodingwiki/core/internal/pkg/redis"
	"github.com/vibecodingwiki/core/internal/pkg/response"
)

func (a *App) registerRoutes(rc *pkgredis.Client) {
	r := a.router
	db := a.db

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":     "vibecodingwiki-core",
		"version":  "1.0.0",
		"homepage": "https://github.com/vibecodingwiki/core",
		"issues":   "https://github.com/vibecodingwiki/core/issues",
	}

	apiPrefix := "/api/v1"

	// Rate limiting and idempotence run on every route (requires Redis).
	r.Use(middleware.RateLimit(rc.Raw()))
	r.Use(middleware.Idempotence(rc.Raw()))

	// Versioned API
	api := r.Group(apiPrefix)
	api.Use(middleware.OptionalAuth())
	api.Use(middleware.HTTPCache(rc.Raw(), middleware.HTTPCacheOptions{
		TTL:       15 * time.Second,
		Disable:   a.cfg.IsDev(),
		SkipPaths: httpCacheSkipPaths(apiPrefix),
	}))

	// App info endpoints
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptime := time.Since(processStart)
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptime.Milliseconds(),
			"humanize":  humanizeDuration(uptime),
		})
	})

	// Shared middlewares
	authMW := middleware.Auth()
	rolesSvc := roles.NewService(db)
	moderatorMW := rolesSvc.Require(models.RoleModerator)
	operatorMW := middleware.OperatorToken(a.cfg.OperatorToken)

	// Accounts & roles
	auth.NewHandler(auth.NewService(db, rolesSvc), a.cfg).RegisterRoutes(api, authMW)
	roles.NewHandler(rolesSvc).RegisterRoutes(api, authMW)

	// Wiki content
	locks := pagelock.New()
	revSvc := revision.NewService(db, locks)
	pageSvc := page.NewService(db, rc.Raw())
	page.NewHandler(pageSvc).RegisterRoutes(api, authMW)
	revision.NewHandler(revSvc, moderatorMW).RegisterRoutes(api, authMW)
	talk.NewHandler(talk.NewService(db), moderatorMW).RegisterRoutes(api, authMW)

	// Link graph & popularity
	graphSvc := graph.NewService(db, a.logger.Named("GraphService"))
	graph.NewHandler(graphSvc).RegisterRoutes(api, authMW)

	// Billing entitlements
	billingClient := billing.NewClient(a.cfg.Autumn, a.logger.Named("BillingService"))

	// AI drafting & URL ingestion
	aiSvc := ai.NewService(a.cfg.AI, a.logger.Named("AIService"))
	ai.NewHandler(aiSvc, billingClient.RequireFeature(billing.FeatureAIGeneration)).RegisterRoutes(api, authMW)

	firecrawl := ingestion.NewFirecrawlClient(a.cfg.Firecrawl)
	ingestSvc := ingestion.NewService(db, firecrawl, aiSvc, revSvc, a.logger.Named("IngestionService"))
	ingestion.NewHandler(ingestSvc, billingClient.RequireFeature(billing.FeatureIngestion)).RegisterRoutes(api, authMW)

	// Media uploads (R2)
	mediaSvc := media.NewService(db, a.cfg.R2, a.logger.Named("MediaService"))
	media.NewHandler(mediaSvc, db).RegisterRoutes(api, authMW)

	// Satellites
	mailer := mail.New(a.cfg.Mail)
	newsletter.NewHandler(newsletter.NewService(db, mailer, a.logger.Named("NewsletterService")), db).RegisterRoutes(api, moderatorMW)
	sponsor.NewHandler(sponsor.NewService(db), db).RegisterRoutes(api, moderatorMW)
	apps.NewHandler(apps.NewService(db), db).RegisterRoutes(api, authMW, moderatorMW)

	// Health, bootstrap and operator endpoints
	system.NewHandler(db, rc, a.sched, revSvc, graphSvc, ingestSvc, rolesSvc).RegisterRoutes(api, operatorMW)

	a.registerCronJobs(graphSvc, ingestSvc)
}

func httpCacheSkipPaths(apiPrefix string) []string {
	p := strings.TrimSuffix(strings.TrimSpace(apiPrefix), "/")
	if p == "" {
		p = "/api/v1"
	}
	return []string{
		p + "/uptime",
		p + "/health",
		p + "/init",
		p + "/ops/*",
		p + "/auth/*",
		p + "/revisions/*",
		p + "/ingestion/*",
	}
}
