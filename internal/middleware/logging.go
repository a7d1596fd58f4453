package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"doubtiq-go/pkg/log"

	"github.com/gin-gonic/gin"
)

const maxLoggedBodyBytes = 2 << 10

var sensitiveFields = map[string]bool{
	"password":    true,
	"newpassword": true,
	"otp":         true,
	"token":       true,
	"image":       true,
}

// bodyLogWriter copies the response body into a buffer as it is written.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	if w.body.Len() < maxLoggedBodyBytes {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// RequestLogger logs every request with its JSON bodies. Credentials, codes
// and inline images are masked; multipart uploads are not logged.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody []byte
		loggable := c.Request.Body != nil && c.Request.Body != http.NoBody && !strings.HasPrefix(c.ContentType(), "multipart/")
		if loggable {
			// only the logged prefix is buffered; the rest stays on the wire
			requestBody, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBodyBytes+1))
			c.Request.Body = readCloser{io.MultiReader(bytes.NewReader(requestBody), c.Request.Body), c.Request.Body}
		}

		blw := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		statusCode := c.Writer.Status()
		fields := []interface{}{
			"requestId", c.GetString(requestIDKey),
			"statusCode", statusCode,
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", redactBody(requestBody),
			"responseBody", redactBody(blw.body.Bytes()),
		}
		switch {
		case statusCode >= 500:
			log.Errorw("HTTP Request Log", fields...)
		case statusCode >= 400:
			log.Warnw("HTTP Request Log", fields...)
		default:
			log.Infow("HTTP Request Log", fields...)
		}
	}
}

// readCloser replays a consumed prefix while closing the original body.
type readCloser struct {
	io.Reader
	io.Closer
}

// redactBody masks sensitive fields in a JSON body. Anything that does not
// parse is reduced to its size.
func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > maxLoggedBodyBytes {
		return fmt.Sprintf("(more than %d bytes)", maxLoggedBodyBytes)
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Sprintf("(%d bytes)", len(body))
	}
	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return ""
	}
	return truncate(string(out))
}

func redactValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if sensitiveFields[strings.ToLower(k)] {
				t[k] = "***"
				continue
			}
			t[k] = redactValue(val)
		}
	case []interface{}:
		for i := range t {
			t[i] = redactValue(t[i])
		}
	}
	return v
}

func truncate(s string) string {
	if len(s) <= maxLoggedBodyBytes {
		return s
	}
	return s[:maxLoggedBodyBytes] + "...(truncated)"
}
