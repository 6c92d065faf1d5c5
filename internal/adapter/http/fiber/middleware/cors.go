package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/seu-repo/mirror-voice/pkg/config"
)

// The mirror display loads from its own origin and calls the voice routes
// with GET and POST only.
var (
	defaultCORSMethods = []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions}
	defaultCORSHeaders = []string{fiber.HeaderOrigin, fiber.HeaderContentType, fiber.HeaderAccept, fiber.HeaderXRequestID}
	defaultCORSExpose  = []string{fiber.HeaderXRequestID}
)

// NewCORS builds the CORS middleware. Empty lists fall back to the defaults
// above. Credentials are dropped when any origin is allowed, which fiber
// refuses to combine.
func NewCORS(cfg config.CORSConfig) fiber.Handler {
	origins := orDefault(cfg.AllowedOrigins, []string{"*"})
	credentials := cfg.Credentials
	for _, o := range origins {
		if o == "*" {
			credentials = false
		}
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 86400
	}

	return fibercors.New(fibercors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     strings.Join(orDefault(cfg.AllowedMethods, defaultCORSMethods), ","),
		AllowHeaders:     strings.Join(orDefault(cfg.AllowedHeaders, defaultCORSHeaders), ","),
		ExposeHeaders:    strings.Join(orDefault(cfg.ExposeHeaders, defaultCORSExpose), ","),
		AllowCredentials: credentials,
		MaxAge:           maxAge,
	})
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}
