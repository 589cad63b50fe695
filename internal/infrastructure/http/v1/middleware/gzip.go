package middleware

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"

	"raccolta/internal/core/apperror"
)

// maxBody bounds a decompressed request body.
const maxBody = 16 << 20

// Decompress accepts gzip request bodies (Content-Encoding: gzip).
func Decompress() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(c.GetHeader("Content-Encoding"), "gzip") {
			c.Next()
			return
		}
		zr, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			_ = c.Error(apperror.NewValidation("invalid gzip body").WithCause(err))
			c.Abort()
			return
		}
		defer zr.Close()

		c.Request.Body = readCloser{Reader: io.LimitReader(zr, maxBody), Closer: c.Request.Body}
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1
		c.Next()
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}
