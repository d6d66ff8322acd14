package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"quoteflow/common"

	"github.com/gin-gonic/gin"
)

// AllowedOrigins is the browser origin allowlist shared by CORS and the
// websocket upgrader.
type AllowedOrigins struct {
	origins map[string]struct{}
}

// IsAllowed accepts an empty origin, since non-browser clients (the cli) do
// not send one.
func (ao *AllowedOrigins) IsAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	_, ok := ao.origins[origin]
	return ok
}

// ParseAllowedOrigins parses a comma separated list of scheme://host[:port]
// origins.
func ParseAllowedOrigins(originsStr string) (*AllowedOrigins, error) {
	origins := make(map[string]struct{})
	for _, origin := range strings.Split(originsStr, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}

		parsed, err := url.Parse(origin)
		if err != nil {
			return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid origin %q: must have scheme and host", origin)
		}
		if parsed.Path != "" || parsed.RawQuery != "" || parsed.Fragment != "" {
			return nil, fmt.Errorf("invalid origin %q: must not have path, query or fragment", origin)
		}

		origins[fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)] = struct{}{}
	}

	return &AllowedOrigins{origins: origins}, nil
}

func BuildDefaultAllowedOrigins() *AllowedOrigins {
	port := common.GetServerPort()
	origins := map[string]struct{}{
		fmt.Sprintf("http://localhost:%d", port): {},
		fmt.Sprintf("http://127.0.0.1:%d", port): {},
	}

	// next dev server
	if os.Getenv("QF_APP_ENV") == "development" {
		origins["http://localhost:3000"] = struct{}{}
		origins["http://127.0.0.1:3000"] = struct{}{}
	}

	return &AllowedOrigins{origins: origins}
}

// GetAllowedOrigins uses QF_ALLOWED_ORIGINS when set, otherwise the defaults.
func GetAllowedOrigins() (*AllowedOrigins, error) {
	if envOrigins := os.Getenv("QF_ALLOWED_ORIGINS"); envOrigins != "" {
		return ParseAllowedOrigins(envOrigins)
	}
	return BuildDefaultAllowedOrigins(), nil
}

func CORSMiddleware(allowedOrigins *AllowedOrigins) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		if !allowedOrigins.IsAllowed(origin) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Vary", "Origin")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization,Content-Type")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func CheckWebSocketOrigin(allowedOrigins *AllowedOrigins) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		return allowedOrigins.IsAllowed(r.Header.Get("Origin"))
	}
}
