package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftchat/driftchat/internal/common"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[panic] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
