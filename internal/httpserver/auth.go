package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	claimsContextKey = "staff_claims"
	deviceKeyHeader  = "X-Device-Key"
)

// StaffClaims carries the staff identity embedded in a bearer token.
type StaffClaims struct {
	StaffID string `json:"staff_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// staffAuth validates Bearer tokens on staff routes and stores the parsed
// claims on the request context.
func staffAuth(signingKey []byte, issuer string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		claims := &StaffClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims,
			func(*jwt.Token) (any, error) { return signingKey, nil },
			jwt.WithIssuer(issuer),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil || !parsed.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid token"))
			return
		}
		if strings.TrimSpace(claims.StaffID) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "token carries no staff id"))
			return
		}
		ctx.Set(claimsContextKey, claims)
		ctx.Next()
	}
}

// deviceAuth gates hardware routes behind a shared device key header.
func deviceAuth(deviceKey string) gin.HandlerFunc {
	expected := []byte(deviceKey)
	return func(ctx *gin.Context) {
		supplied := []byte(ctx.GetHeader(deviceKeyHeader))
		if subtle.ConstantTimeCompare(expected, supplied) != 1 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid device key"))
			return
		}
		ctx.Next()
	}
}

func getStaffClaims(ctx *gin.Context) *StaffClaims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*StaffClaims)
	return claims
}
