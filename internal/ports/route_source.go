package ports

import (
	"context"
	"route-validation-service/internal/domain"
)

// Port: a boundary for reading the routes to validate.
type RouteSource interface {
	// Return every route id in definition order. An empty result is valid.
	ListRoutes(ctx context.Context) ([]domain.RouteID, error)
}
