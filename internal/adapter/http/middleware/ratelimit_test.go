package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adwallet/internal/adapter/storage/redis"
	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func newRateLimitStore(t *testing.T) *redis.RateLimitStore {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewRateLimitStore(client)
}

func rateLimitedRouter(limiter gin.HandlerFunc, pre ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(pre, limiter, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/test", handlers...)
	return r
}

func TestRateLimiter_AllowsWithinLimitThenBlocks(t *testing.T) {
	store := newRateLimitStore(t)
	router := rateLimitedRouter(RateLimiter(store, GroupWalletRead, RateLimitRule{Limit: 3, Window: time.Minute}, zerolog.Nop()))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "AUTH_004")
}

func TestRateLimiter_KeysByActor(t *testing.T) {
	store := newRateLimitStore(t)
	rule := RateLimitRule{Limit: 1, Window: time.Minute}
	limiter := RateLimiter(store, GroupWalletWrite, rule, zerolog.Nop())

	alice := rateLimitedRouter(limiter, withActor(domain.Actor{UserID: uuid.New(), Role: domain.RoleCustomer}))
	bob := rateLimitedRouter(limiter, withActor(domain.Actor{UserID: uuid.New(), Role: domain.RoleCustomer}))

	for _, r := range []*gin.Engine{alice, bob} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code, "each user has an independent budget")
	}

	w := httptest.NewRecorder()
	alice.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimiter_DegradedModeAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRateLimitStore(ctrl)
	store.EXPECT().Allow(gomock.Any(), gomock.Any(), int64(5), time.Minute).Return(nil, errors.New("redis down"))

	router := rateLimitedRouter(RateLimiter(store, GroupWebhook, RateLimitRule{Limit: 5, Window: time.Minute}, zerolog.Nop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := DefaultRateLimitRules()
	for _, group := range []string{GroupWalletRead, GroupWalletWrite, GroupAdmin, GroupWebhook} {
		rule, ok := rules[group]
		assert.True(t, ok, group)
		assert.Positive(t, rule.Limit)
		assert.Equal(t, time.Minute, rule.Window)
	}
}
