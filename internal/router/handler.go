package router

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler serves the virtual root over real HTTP for browser-based preview
// panels. Mount it as GET <virtualRoot>/*path.
func (r *Router) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Param("path"), "/")
		resp := r.Resolve(c.Request.Context(), path)

		c.Header("Cache-Control", resp.CacheControl)
		c.Data(resp.Status, resp.ContentType, resp.Body)
	}
}
