package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	checkindomain "github.com/fanpulse/fanpulse/internal/checkin/domain"
	"github.com/fanpulse/fanpulse/internal/config"
	eventdomain "github.com/fanpulse/fanpulse/internal/event/domain"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/internal/usercontext"
)

func newIdentityRouter(cfg config.Config) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)

	srv := &Server{cfg: cfg}
	seenUser := new(string)

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.GET("/probe", srv.IdentityRequired(), func(c *gin.Context) {
		if id, ok := usercontext.UserIDFromContext(c.Request.Context()); ok {
			*seenUser = id.String()
		}
		c.JSON(http.StatusOK, gin.H{"data": "ok"})
	})
	router.GET("/admin-probe", srv.IdentityRequired(), srv.AdminRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "ok"})
	})

	return router, seenUser
}

func TestIdentityRequiredMissingHeader(t *testing.T) {
	router, _ := newIdentityRouter(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestIdentityRequiredRejectsNonNumericUser(t *testing.T) {
	router, _ := newIdentityRouter(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderUserID, "alice")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestIdentityRequiredResolvesUser(t *testing.T) {
	router, seenUser := newIdentityRouter(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderUserID, "4242")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if *seenUser != "4242" {
		t.Fatalf("expected handler to see user 4242, got %q", *seenUser)
	}
}

func TestIdentityRequiredVerifiesSignature(t *testing.T) {
	const secret = "topsecret"
	router, _ := newIdentityRouter(config.Config{IdentitySecret: secret})

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("4242"))
	valid := hex.EncodeToString(mac.Sum(nil))

	cases := []struct {
		name      string
		signature string
		want      int
	}{
		{"valid", valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"forged", "deadbeef", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			req.Header.Set(HeaderUserID, "4242")
			if tc.signature != "" {
				req.Header.Set(HeaderIdentity, tc.signature)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestAdminRequiredGatesNonAdmins(t *testing.T) {
	router, _ := newIdentityRouter(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/admin-probe", nil)
	req.Header.Set(HeaderUserID, "4242")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestAdminRequiredAllowsAdmins(t *testing.T) {
	router, _ := newIdentityRouter(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/admin-probe", nil)
	req.Header.Set(HeaderUserID, "4242")
	req.Header.Set(HeaderUserAdmin, "true")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"rate limited", checkindomain.ErrRateLimited, http.StatusTooManyRequests},
		{"event not found", eventdomain.ErrNotFound, http.StatusNotFound},
		{"code taken", eventdomain.ErrCodeTaken, http.StatusConflict},
		{"unknown activity", scoringdomain.ErrUnknownActivityType, http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"unmapped", eventdomain.ErrEventInactive, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(ErrorHandlingMiddleware())
			router.GET("/boom", func(c *gin.Context) {
				AbortWithError(c, tc.err)
			})

			req := httptest.NewRequest(http.MethodGet, "/boom", nil)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, resp.Code)
			}
		})
	}
}
