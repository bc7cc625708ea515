package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-sessions-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"

	metaCacheHit       = "cache_hit"
	metaRequestID      = "request_id"
	metaProcessingTime = "processing_time_ms"
)

// WithResponseMeta prepares the per-request meta block of the envelope. The
// request ID is recorded up front and the processing time once handlers ran.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		meta := ensureMeta(c)
		if id := requestid.Value(c); id != "" {
			meta[metaRequestID] = id
		}
		c.Next()
		if _, set := meta[metaProcessingTime]; !set {
			meta[metaProcessingTime] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit marks whether the payload came from the stats cache.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[metaCacheHit] = hit
}

// ExtractMeta returns the meta block collected so far, or nil.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta, _ := c.Get(responseMetaKey)
	typed, _ := meta.(map[string]interface{})
	return typed
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	if c != nil {
		c.Set(responseMetaKey, meta)
	}
	return meta
}
