package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-interview-api/internal/utils"
)

// Claim names accepted for the candidate identity, in lookup order.
var (
	subjectClaims = []string{"sub", "user_id", "id"}
	roleClaims    = []string{"role", "roles"}
)

// BearerAuth verifies the HMAC-signed bearer token issued by the platform and stores the
// candidate id under the user_id local. A role claim, when present, lands in user_role.
func BearerAuth(secret string) fiber.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "bearer token required", nil)
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "bearer token rejected", fiber.Map{"reason": tokenFailure(err)})
		}

		candidate := claimSubject(claims)
		if candidate == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "bearer token has no candidate id", nil)
		}
		c.Locals("user_id", candidate)
		if role := claimRole(claims); role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenFailure(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not yet valid"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "signature mismatch"
	default:
		return "malformed"
	}
}

func claimSubject(claims jwt.MapClaims) string {
	for _, name := range subjectClaims {
		switch value := claims[name].(type) {
		case string:
			if id := strings.TrimSpace(value); id != "" {
				return id
			}
		case float64:
			// JSON numbers decode as float64; ids are whole and non-negative.
			if value >= 0 && value == float64(int64(value)) {
				return strconv.FormatInt(int64(value), 10)
			}
		}
	}
	return ""
}

func claimRole(claims jwt.MapClaims) string {
	for _, name := range roleClaims {
		if role := normalizeRole(claims[name]); role != "" {
			return role
		}
	}
	return ""
}

// normalizeRole lowercases a role claim. For a list it takes the first non-blank entry.
func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if role, ok := item.(string); ok {
				if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
					return role
				}
			}
		}
	}
	return ""
}
