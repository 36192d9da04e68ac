package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"natours/internal/utils"
)

// BodyLimit caps JSON and form bodies at limit bytes and multipart uploads at
// uploadLimit bytes.
func BodyLimit(limit, uploadLimit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			n := limit
			if strings.HasPrefix(c.ContentType(), "multipart/") {
				n = uploadLimit
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// Fields that are compared or hashed verbatim and never rendered.
var rawFields = map[string]bool{
	"password":        true,
	"passwordConfirm": true,
	"passwordCurrent": true,
}

// Sanitizer strips markup from query values, form values and JSON string
// fields before they reach handlers.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean removes markup from s. Plain text is returned untouched so that
// characters like '&' are not entity-encoded.
func (s *Sanitizer) Clean(v string) string {
	if !strings.ContainsAny(v, "<>") {
		return v
	}
	return s.policy.Sanitize(v)
}

func (s *Sanitizer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.RawQuery != "" {
			query := c.Request.URL.Query()
			for key, values := range query {
				for i, v := range values {
					values[i] = s.Clean(v)
				}
				query[key] = values
			}
			c.Request.URL.RawQuery = query.Encode()
		}

		switch c.ContentType() {
		case gin.MIMEJSON:
			if err := s.cleanJSONBody(c); err != nil {
				utils.RespondError(c, err)
				return
			}
		case gin.MIMEPOSTForm:
			if err := c.Request.ParseForm(); err != nil {
				utils.RespondError(c, err)
				return
			}
			for key, values := range c.Request.PostForm {
				if rawFields[key] {
					continue
				}
				for i, v := range values {
					values[i] = s.Clean(v)
				}
			}
		}

		c.Next()
	}
}

func (s *Sanitizer) cleanJSONBody(c *gin.Context) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		// Left for the handler's binding to report.
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		return nil
	}

	cleaned, err := json.Marshal(s.walk(doc, ""))
	if err != nil {
		return err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(cleaned))
	c.Request.ContentLength = int64(len(cleaned))
	return nil
}

func (s *Sanitizer) walk(v any, key string) any {
	switch t := v.(type) {
	case string:
		if rawFields[key] {
			return t
		}
		return s.Clean(t)
	case map[string]any:
		for k, child := range t {
			t[k] = s.walk(child, k)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = s.walk(child, key)
		}
		return t
	default:
		return v
	}
}
