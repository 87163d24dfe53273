package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"memberbot/internal/service"
)

const scannerClaimsKey = "scanner_claims"

// JWTAuthMiddleware exige un token de escaner vigente. Los claims quedan en
// el contexto para que el handler registre que dispositivo resolvio a quien.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scanner auth not configured"})
			return
		}
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="scanner"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := jwtSvc.ParseScannerToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="scanner", error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(scannerClaimsKey, claims)
		c.Next()
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

// GetScannerClaims devuelve los claims puestos por JWTAuthMiddleware, si hubo.
func GetScannerClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(scannerClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
