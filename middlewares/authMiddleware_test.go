package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"bitbucket.org/mmdatafocus/roadworks_backend/utils"
	"github.com/gin-gonic/gin"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/managers", AuthMiddleware(), RequireRole(models.UserRoleManager), func(c *gin.Context) {
		claim := CtxValue(c.Request.Context())
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		if claim == nil || userId != claim.ID {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func doGet(t *testing.T, r http.Handler, header string, value string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/managers", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	manager, err := utils.JwtGenerate(7, "chef@mairie.mg", models.UserRoleManager, time.Hour)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	user, err := utils.JwtGenerate(8, "agent@mairie.mg", models.UserRoleUser, time.Hour)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	expired, err := utils.JwtGenerate(7, "chef@mairie.mg", models.UserRoleManager, -time.Minute)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"garbage", "Authorization", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired", "Authorization", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong role", "Authorization", "Bearer " + user, http.StatusForbidden},
		{"manager", "Authorization", "Bearer " + manager, http.StatusNoContent},
		{"token header", "token", manager, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := doGet(t, r, tc.header, tc.value); got != tc.want {
				t.Fatalf("status = %d, want %d", got, tc.want)
			}
		})
	}
}
