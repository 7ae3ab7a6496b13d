package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	s := NewService("secret", time.Hour)

	resp, err := s.IssueVisitorToken("1700000000123")
	require.NoError(t, err)
	assert.Equal(t, "1700000000123", resp.VisitorID)

	claims, err := s.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "1700000000123", claims.VisitorID)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	resp, err := NewService("one", time.Hour).IssueVisitorToken("v")
	require.NoError(t, err)

	_, err = NewService("two", time.Hour).ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	s := NewService("secret", time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }
	resp, err := s.IssueVisitorToken("v")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = s.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueRequiresVisitorID(t *testing.T) {
	_, err := NewService("secret", time.Hour).IssueVisitorToken("")
	assert.Error(t, err)
}

func TestNewVisitorIDIsMilliseconds(t *testing.T) {
	s := NewService("secret", time.Hour)
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }
	assert.Equal(t, "1700000000123", s.NewVisitorID())
}

func TestPseudonymIsStableAndKeyed(t *testing.T) {
	a := NewService("secret", time.Hour)
	b := NewService("other", time.Hour)

	assert.Equal(t, a.Pseudonym("v1"), a.Pseudonym("v1"))
	assert.NotEqual(t, a.Pseudonym("v1"), a.Pseudonym("v2"))
	assert.NotEqual(t, a.Pseudonym("v1"), b.Pseudonym("v1"))
	assert.Len(t, a.Pseudonym("v1"), 64)
}

func TestVisitorMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewService("secret", time.Hour)
	r := gin.New()
	r.GET("/me", s.VisitorMiddleware(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(VisitorContextKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	resp, err := s.IssueVisitorToken("42")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())
}
