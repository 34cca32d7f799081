package handlers

import (
	"fmt"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// Push streams send named events framed per the SSE wire format, with a
// comment-only keep-alive line between events so idle proxies do not cut the
// connection. Parsers must ignore comment lines.

func streamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(200)
}

func writeEvent(c *gin.Context, name string, data any) error {
	if err := sse.Encode(c.Writer, sse.Event{Event: name, Data: data}); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

func writeKeepalive(c *gin.Context, now time.Time) error {
	if _, err := fmt.Fprintf(c.Writer, ": keepalive %d\n\n", now.UnixMilli()); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
