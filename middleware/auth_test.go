package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"electrotech/models"
	"electrotech/services"
)

type fakeAuthenticator map[string]services.Identity

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (services.Identity, error) {
	if token == "explode" {
		return services.Identity{}, errors.New("database is down")
	}
	identity, ok := f[token]
	if !ok {
		return services.Identity{}, &services.UnauthorizedError{Message: "session has been revoked"}
	}
	return identity, nil
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)

	auth := fakeAuthenticator{
		"customer-token": {UserID: 1, Username: "alice", Role: models.RoleCustomer},
		"admin-token":    {UserID: 2, Username: "root", Role: models.RoleAdmin},
	}

	r := gin.New()
	r.Use(RequestIDMiddleware(), AuthMiddleware(auth))
	r.GET("/public", func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"logged_in": ok, "user_id": identity.UserID})
	})
	r.GET("/private", CheckLoginMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/admin", CheckLoginMiddleware(), CheckAdminPermissionMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doRequest(r http.Handler, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_Anonymous(t *testing.T) {
	r := newTestEngine()

	w := doRequest(r, "/public", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"logged_in":false,"user_id":0}`, w.Body.String())

	// a bad token on a public route is just anonymous
	w = doRequest(r, "/public", "Bearer revoked")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"logged_in":false,"user_id":0}`, w.Body.String())
}

func TestAuthMiddleware_ResolvesIdentity(t *testing.T) {
	r := newTestEngine()

	w := doRequest(r, "/public", "Bearer customer-token")
	assert.JSONEq(t, `{"logged_in":true,"user_id":1}`, w.Body.String())

	w = doRequest(r, "/public", "bearer customer-token")
	assert.JSONEq(t, `{"logged_in":true,"user_id":1}`, w.Body.String(), "scheme is case-insensitive")

	w = doRequest(r, "/public", "customer-token")
	assert.JSONEq(t, `{"logged_in":false,"user_id":0}`, w.Body.String(), "scheme is required")
}

func TestAuthMiddleware_BackendFailure(t *testing.T) {
	w := doRequest(newTestEngine(), "/public", "Bearer explode")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database is down")
}

func TestCheckLoginMiddleware(t *testing.T) {
	r := newTestEngine()

	w := doRequest(r, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

	w = doRequest(r, "/private", "Bearer revoked")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session has been revoked")

	w = doRequest(r, "/private", "Bearer customer-token")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckAdminPermissionMiddleware(t *testing.T) {
	r := newTestEngine()

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "/admin", "").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, "/admin", "Bearer customer-token").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "/admin", "Bearer admin-token").Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newTestEngine()

	w := doRequest(r, "/public", "")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set(RequestIDHeader, "trace-me")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "trace-me", w.Header().Get(RequestIDHeader))
}
