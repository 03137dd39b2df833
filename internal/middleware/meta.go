package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DPLnainar/placement-management-system-sub002/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{"start": time.Now()})
		c.Next()
	}
}

// ExtractMeta returns the metadata for the envelope: the request id and the
// time spent so far.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	stored, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	meta := make(map[string]interface{}, len(stored)+1)
	for k, v := range stored {
		if k == "start" {
			if start, ok := v.(time.Time); ok {
				meta["processing_time_ms"] = time.Since(start).Milliseconds()
			}
			continue
		}
		meta[k] = v
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}
