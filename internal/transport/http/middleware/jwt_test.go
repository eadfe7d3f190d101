package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"gopherai-workspace/internal/pkg/jwtutil"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"", "", errMissingHeader},
		{"Bearer abc", "abc", nil},
		{"bearer   abc ", "abc", nil},
		{"Basic abc", "", errBadScheme},
		{"Bearer", "", errBadScheme},
		{"Bearer   ", "", errBadScheme},
	}
	for _, tt := range tests {
		got, err := bearerToken(tt.header)
		require.ErrorIs(t, err, tt.wantErr, tt.header)
		require.Equal(t, tt.want, got, tt.header)
	}
}

func TestAuthJWTSetsUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AuthJWT("secret"))
	router.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(ContextUserIDKey), "username": c.GetString(ContextUsernameKey)})
	})

	token, err := jwtutil.GenerateToken("secret", 9, "dana", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user_id":9,"username":"dana"}`, rec.Body.String())

	other, err := jwtutil.GenerateToken("another-secret", 9, "dana", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
