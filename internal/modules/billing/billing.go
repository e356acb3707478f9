package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibecodingwiki/core/internal/config"
	"github.com/vibecodingwiki/core/internal/middleware"
	"github.com/vibecodingwiki/core/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.useautumn.com"

	// Entitlement checks must never take the wiki down with them. When the
	// billing gateway is slow or unreachable we allow the request.
	checkTimeout = 5 * time.Second
)

// Feature identifiers checked against the billing gateway.
const (
	FeatureAIGeneration = "ai_generation"
	FeatureIngestion    = "url_ingestion"
)

// Client talks to the Autumn entitlement API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(cfg config.AutumnConfig, log *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: checkTimeout},
		log:     log,
	}
}

// Enabled reports whether a gateway key is configured. Without one all
// checks pass.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type checkResult struct {
	Allowed bool `json:"allowed"`
}

// Check asks the gateway whether the customer may use a feature. Any
// transport or gateway failure fails open and allows the request.
func (c *Client) Check(ctx context.Context, customerID, featureID string) bool {
	if !c.Enabled() {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{
		"customer_id": customerID,
		"feature_id":  featureID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/check", bytes.NewReader(body))
	if err != nil {
		return true
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("entitlement check failed open", zap.Error(err))
		return true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode >= http.StatusInternalServerError {
		c.log.Warn("entitlement check failed open",
			zap.Int("status", resp.StatusCode))
		return true
	}
	if resp.StatusCode >= http.StatusBadRequest {
		// A definitive gateway answer, not an outage.
		return false
	}

	var result checkResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		c.log.Warn("entitlement check failed open", zap.Error(err))
		return true
	}
	return result.Allowed
}

// Track reports feature usage to the gateway. Best effort.
func (c *Client) Track(ctx context.Context, customerID, featureID string, value int) error {
	if !c.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]interface{}{
		"customer_id": customerID,
		"feature_id":  featureID,
		"value":       value,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/track", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("usage tracking failed: %s", strings.TrimSpace(string(raw)))
	}
	return nil
}

var errNotEntitled = errors.New("feature not included in current plan")

// RequireFeature returns a middleware that gates a route on an entitlement.
// It must run after the auth middleware.
func (c *Client) RequireFeature(featureID string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := middleware.CurrentUserID(ctx)
		if userID == "" {
			response.Unauthorized(ctx)
			return
		}
		if !c.Check(ctx.Request.Context(), userID, featureID) {
			response.ForbiddenMsg(ctx, errNotEntitled.Error())
			return
		}
		ctx.Next()
	}
}
