package middlewares

import "github.com/gin-gonic/gin"

// abortWithError writes the same envelope the handlers use. Middlewares
// cannot import handlers, so the shape is repeated here.
func abortWithError(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	id, _ := reqID.(string)

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": id,
		},
	})
}
