package routes

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"route-validation-service/internal/domain"
)

type routesFile struct {
	XMLName xml.Name `xml:"routes"`
	Routes  []struct {
		ID string `xml:"id,attr"`
	} `xml:"route"`
}

// XMLRouteSource reads route ids from a SUMO route file. Only top-level
// <route> elements count; routes embedded in a vehicle have no id of their own.
type XMLRouteSource struct {
	Path string
}

func NewXMLRouteSource(path string) *XMLRouteSource {
	return &XMLRouteSource{Path: path}
}

func (s *XMLRouteSource) ListRoutes(ctx context.Context) ([]domain.RouteID, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRouteSourceUnreadable, err)
	}
	defer f.Close()

	var doc routesFile
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrRouteSourceUnreadable, s.Path, err)
	}

	seen := make(map[domain.RouteID]bool, len(doc.Routes))
	out := make([]domain.RouteID, 0, len(doc.Routes))
	for _, r := range doc.Routes {
		if r.ID == "" {
			continue
		}

		id := domain.RouteID(r.ID)
		if seen[id] {
			slog.WarnContext(ctx, "duplicate route id, keeping first", "route", id, "file", s.Path)
			continue
		}
		seen[id] = true
		out = append(out, id)
	}

	return out, nil
}

// StaticRouteSource serves a fixed list of route ids.
type StaticRouteSource struct {
	Routes []domain.RouteID
	Err    error
}

func (s *StaticRouteSource) ListRoutes(ctx context.Context) ([]domain.RouteID, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]domain.RouteID(nil), s.Routes...), nil
}
