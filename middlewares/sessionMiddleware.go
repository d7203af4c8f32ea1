package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/models"
	"github.com/pawnest/adoptions_backend/utils"
)

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
		if user.ShelterId != nil {
			ctx = utils.SetShelterIdInContext(ctx, *user.ShelterId)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
