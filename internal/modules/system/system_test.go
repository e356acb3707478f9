package system

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibecodingwiki/core/internal/database"
	"github.com/vibecodingwiki/core/internal/models"
	"github.com/vibecodingwiki/core/internal/modules/roles"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenTest()
	require.NoError(t, err)

	h := &Handler{db: db, rolesSvc: roles.NewService(db)}
	r := gin.New()
	r.GET("/init", h.checkInit)
	r.POST("/init", h.bootstrap)
	return r, db
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBootstrapCreatesSuperAdminOnce(t *testing.T) {
	r, db := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/init", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"needs_init":true`)

	w = postJSON(r, "/init", gin.H{"email": "owner@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, w.Code)

	var user models.UserModel
	require.NoError(t, db.Where("email = ?", "owner@example.com").First(&user).Error)
	assert.NotEqual(t, "s3cret-pass", user.Password)

	role, err := roles.NewService(db).PrimaryRole(user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, role)

	// second bootstrap attempt is refused
	w = postJSON(r, "/init", gin.H{"email": "intruder@example.com", "password": "s3cret-pass"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBootstrapValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := postJSON(r, "/init", gin.H{"email": "owner@example.com", "password": "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = postJSON(r, "/init", gin.H{"email": "owner@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
