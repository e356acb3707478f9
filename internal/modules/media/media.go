package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vibecodingwiki/core/internal/config"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/pkg/pagination"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"github.com/vibecodingwiki/core/internal/pkg/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxUploadBytes = 25 << 20 // 25 MiB per object

var (
	ErrNotConfigured = errors.New("object storage is not configured")
	ErrMediaNotFound = errors.New("media not found")
	ErrEmptyFile     = errors.New("file is empty")
	ErrTooLarge      = errors.New("file exceeds the upload size limit")
)

// objectStore is the subset of the S3 API the service uses. The
// aws-sdk-go-v2 client satisfies it against R2's S3-compatible endpoint.
type objectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Service struct {
	db    *gorm.DB
	store objectStore
	cfg   config.R2Config
	log   *zap.Logger
}

func NewService(db *gorm.DB, cfg config.R2Config, log *zap.Logger) *Service {
	svc := &Service{db: db, cfg: cfg, log: log}
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return svc
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		log.Warn("object storage disabled", zap.Error(err))
		return svc
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	svc.store = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return svc
}

func (s *Service) Enabled() bool { return s.store != nil }

// Upload stores the object in the bucket and records a media row.
func (s *Service) Upload(ctx context.Context, filename string, body io.Reader, uploadedBy string, pageID *string) (*models.MediaModel, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}

	data, err := io.ReadAll(io.LimitReader(body, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if len(data) > maxUploadBytes {
		return nil, ErrTooLarge
	}

	key := BuildObjectKey(filename, time.Now().UTC())
	contentType := contentTypeFor(filename)

	_, err = s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload object: %w", err)
	}

	media := &models.MediaModel{
		Key:        key,
		URL:        PublicURL(s.cfg.PublicBaseURL, key),
		MimeType:   contentType,
		SizeBytes:  int64(len(data)),
		UploadedBy: uploadedBy,
		PageID:     pageID,
	}
	if err := s.db.WithContext(ctx).Create(media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.MediaModel, error) {
	var media models.MediaModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&media).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return &media, nil
}

// Delete removes the object from the bucket and the media row. Rows
// recorded during ingestion carry keys the store never saw when storage
// is disabled, so a missing store only skips the remote delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	media, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if s.Enabled() {
		_, err := s.store.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(media.Key),
		})
		if err != nil {
			s.log.Warn("delete object failed", zap.String("key", media.Key), zap.Error(err))
		}
	}

	return s.db.WithContext(ctx).Delete(&models.MediaModel{}, "id = ?", media.ID).Error
}

// BuildObjectKey derives a collision-free bucket key from the original
// filename, preserving the extension.
func BuildObjectKey(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name := slug.Make(base)
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("uploads/%s/%s-%s%s", now.Format("2006/01"), name, uuid.NewString()[:8], ext)
}

// PublicURL joins the configured public base with the object key. With
// no public base configured the bare key is returned.
func PublicURL(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type Handler struct {
	svc *Service
	db  *gorm.DB
}

func NewHandler(svc *Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/media")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", authMW, h.upload)
	g.DELETE("/:id", authMW, h.delete)
}

// GET /media?page_id=X
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	query := h.db.Model(&models.MediaModel{}).Order("created_at DESC")
	if pageID := strings.TrimSpace(c.Query("page_id")); pageID != "" {
		query = query.Where("page_id = ?", pageID)
	}

	var items []models.MediaModel
	meta, err := pagination.Paginate(query, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, meta)
}

// GET /media/:id
func (h *Handler) get(c *gin.Context) {
	media, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			response.NotFoundMsg(c, "media not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, media)
}

// POST /media (multipart, field "file", optional page_id)
func (h *Handler) upload(c *gin.Context) {
	if !h.svc.Enabled() {
		response.ForbiddenMsg(c, "media storage is not configured")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}

	var pageID *string
	if v := strings.TrimSpace(c.PostForm("page_id")); v != "" {
		var page models.PageModel
		if err := h.db.Where("id = ?", v).First(&page).Error; err != nil {
			response.BadRequest(c, "unknown page_id")
			return
		}
		pageID = &page.ID
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer src.Close()

	media, err := h.svc.Upload(c.Request.Context(), fileHeader.Filename, src, middleware.CurrentUserID(c), pageID)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyFile):
			response.BadRequest(c, "file is empty")
		case errors.Is(err, ErrTooLarge):
			response.BadRequest(c, "file exceeds the upload size limit")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, media)
}

// DELETE /media/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			response.NotFoundMsg(c, "media not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
