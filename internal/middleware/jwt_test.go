package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newJWTApp(secret string) (*fiber.App, *[2]string) {
	seen := &[2]string{}
	app := fiber.New()
	app.Use(BearerAuth(secret))
	app.Get("/me", func(c *fiber.Ctx) error {
		seen[0], _ = c.Locals("user_id").(string)
		seen[1], _ = c.Locals("user_role").(string)
		return c.SendStatus(fiber.StatusOK)
	})
	return app, seen
}

func TestBearerAuthExposesCandidate(t *testing.T) {
	app, seen := newJWTApp("secret")
	token := signToken(t, "secret", jwt.MapClaims{
		"sub":   "candidate-42",
		"roles": []interface{}{" Admin "},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "candidate-42", seen[0])
	require.Equal(t, "admin", seen[1])
}

func TestBearerAuthAcceptsNumericSubject(t *testing.T) {
	app, seen := newJWTApp("secret")
	token := signToken(t, "secret", jwt.MapClaims{"user_id": 17})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "17", seen[0])
}

func TestBearerAuthRejectsBadTokens(t *testing.T) {
	app, _ := newJWTApp("secret")
	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"wrong secret":   "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": "u"}),
		"no subject":     "Bearer " + signToken(t, "secret", jwt.MapClaims{"role": "admin"}),
		"expired":        "Bearer " + signToken(t, "secret", jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Hour).Unix()}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestBearerAuthExplainsRejection(t *testing.T) {
	app, _ := newJWTApp("secret")
	cases := map[string]struct {
		token  string
		reason string
	}{
		"expired":       {token: signToken(t, "secret", jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Minute).Unix()}), reason: "expired"},
		"wrong secret":  {token: signToken(t, "other", jwt.MapClaims{"sub": "u"}), reason: "signature mismatch"},
		"not a jwt":     {token: "abc.def", reason: "malformed"},
		"unsigned none": {token: unsignedToken(t), reason: "signature mismatch"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "bearer "+tc.token)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var body struct {
				Message string            `json:"message"`
				Details map[string]string `json:"details"`
			}
			require.NoError(t, json.Unmarshal(raw, &body))
			require.Equal(t, "bearer token rejected", body.Message)
			require.Equal(t, tc.reason, body.Details["reason"])
		})
	}
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}
