package middleware

import (
	"context"
	"net/http"
	"strings"

	"advisor-chat/internal/auth"
	"advisor-chat/internal/services"
	"advisor-chat/internal/transport/httpdto"
	"advisor-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(parser *auth.TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		claims, err := parser.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		userID, role, officeID, err := claims.Identity()
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := services.WithIdentity(c.Request.Context(), services.Identity{
			UserID:   userID,
			Role:     role,
			OfficeID: officeID,
		})
		ctx = context.WithValue(ctx, logger.UserIdKey, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
