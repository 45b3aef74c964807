package public

import "github.com/pixgo-gateway/internal/provider"

// Handler public API handlers
type Handler struct {
	*provider.Container
}

// New creates the handler set
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
