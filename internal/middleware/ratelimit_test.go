package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimitPerUser(t *testing.T) {
	e := echo.New()
	limited := RateLimit(1, 2)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("user_id", user)
		if err := limited(c); err != nil {
			t.Fatal(err)
		}
		return rec.Code
	}

	// Burst of two passes, the third is limited.
	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusTooManyRequests, do("u1"))

	// Independent bucket per user.
	assert.Equal(t, http.StatusOK, do("u2"))
}
