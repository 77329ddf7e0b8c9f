package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is echoed back on every response so callers can quote the ID
// when reporting a failed request.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware tags each request with an identifier. A caller-supplied
// X-Request-ID is kept as-is so the ID stays stable across proxies.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)

		c.Next()
	}
}

// Value reads the request ID set by Middleware. Empty when the
// middleware is not installed on the route.
func Value(c *gin.Context) string {
	v, ok := c.Get(contextKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
