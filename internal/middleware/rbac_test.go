package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campushq/admissions-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, roles ...models.UserRole) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/protected", nil)
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}

	RequireRoles(roles...)(c)
	if !c.IsAborted() {
		c.Status(http.StatusOK)
	}
	return rec
}

func TestRequireRolesAllowsListedRole(t *testing.T) {
	rec := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAccountant}, models.RoleAccountant)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRolesAllowsSuperAdminAlways(t *testing.T) {
	rec := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleSuperAdmin}, models.RoleAccountant)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRolesRejectsForeignRole(t *testing.T) {
	rec := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleCounselor}, models.RoleAccountant)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRolesRejectsMissingClaims(t *testing.T) {
	rec := performRBAC(t, nil, models.RoleAccountant)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
