package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat-server/pkg/auth"
)

const testSecret = "test-secret"

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mw := NewAuthMiddleware(kratoslog.NewStdLogger(io.Discard), testSecret)
	r := gin.New()
	r.GET("/protected", mw.GinAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userID": CallerID(c), "username": CallerUsername(c)})
	})
	return r
}

func TestGinAuthValidToken(t *testing.T) {
	r := newAuthRouter(t)

	token, err := auth.GenerateJWT("user-1", "alice", testSecret, 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userID":"user-1","username":"alice"}`, w.Body.String())
}

// websocket升级请求通过query携带token
func TestGinAuthQueryToken(t *testing.T) {
	r := newAuthRouter(t)

	token, err := auth.GenerateJWT("user-1", "alice", testSecret, 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGinAuthRejects(t *testing.T) {
	r := newAuthRouter(t)

	badToken, err := auth.GenerateJWT("user-1", "alice", "wrong-secret", 0)
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func(req *http.Request)
	}{
		{"无token", func(*http.Request) {}},
		{"签名不匹配", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+badToken)
		}},
		{"非Bearer头", func(req *http.Request) {
			req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		}},
		{"token畸形", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer not.a.token")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"message":"you are not login"}`, w.Body.String())
		})
	}
}
