package api

import (
	"strings"

	"quoteflow/common"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the bearer token to a user id. Websocket clients in
// a browser cannot set headers, so the token query parameter is accepted too.
func (ctrl *Controller) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}

		userId, ok := ctrl.tokens[token]
		if token == "" || !ok {
			ctrl.ErrorHandler(c, statusForError(common.ErrNotAuthenticated), common.ErrNotAuthenticated)
			return
		}

		c.Set(userIdKey, userId)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
