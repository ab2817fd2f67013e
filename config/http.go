package config

// HTTPConfig contains HTTP server configuration for the gateway.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8000"`

	// CORSAllowedOrigin is the Access-Control-Allow-Origin value.
	// The pipeline UI is served from a separate origin, so the
	// default is permissive.
	CORSAllowedOrigin string `env:"HTTP_CORS_ALLOWED_ORIGIN" envDefault:"*"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":8000"
	}
	if h.CORSAllowedOrigin == "" {
		h.CORSAllowedOrigin = "*"
	}
}
