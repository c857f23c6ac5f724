package serverutils

import (
	"errors"
	"time"

	"collab-notes-be/internal/repository/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Locals keys set by the middleware for downstream handlers.
const (
	LocalUserId   = "user_id"
	LocalTokenId  = "token_jti"
	LocalTokenExp = "token_exp"
)

var errInvalidToken = errors.New("invalid token")

// ResolveToken verifies a session token string and returns its identity
// claims. Malformed, expired, badly signed and revoked tokens all fail
// the same way.
func ResolveToken(secret string, denylist *memory.TokenDenylist, tokenStr string) (userId uuid.UUID, jti string, exp time.Time, err error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", time.Time{}, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", time.Time{}, errInvalidToken
	}

	jti, _ = claims["jti"].(string)
	if jti == "" || denylist.IsRevoked(jti) {
		return uuid.Nil, "", time.Time{}, errInvalidToken
	}

	rawUserId, _ := claims["user_id"].(string)
	userId, err = uuid.Parse(rawUserId)
	if err != nil {
		return uuid.Nil, "", time.Time{}, errInvalidToken
	}

	if expClaim, expErr := claims.GetExpirationTime(); expErr == nil && expClaim != nil {
		exp = expClaim.Time
	}

	return userId, jti, exp, nil
}

// NewJwtMiddleware returns the auth guard for protected routes. Every
// failure mode (missing, malformed, expired, bad signature, revoked)
// is a uniform 401.
func NewJwtMiddleware(secret string, denylist *memory.TokenDenylist) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Missing token"))
		}

		userId, jti, exp, err := ResolveToken(secret, denylist, authHeader[7:])
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Invalid token"))
		}

		ctx.Locals(LocalUserId, userId.String())
		ctx.Locals(LocalTokenId, jti)
		ctx.Locals(LocalTokenExp, exp)
		return ctx.Next()
	}
}
