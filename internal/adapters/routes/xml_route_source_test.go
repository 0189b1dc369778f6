package routes

import (
	"context"
	"os"
	"path/filepath"
	"route-validation-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRoutes(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.rou.xml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestXMLRouteSourceListsTopLevelRoutes(t *testing.T) {
	path := writeRoutes(t, `<?xml version="1.0" encoding="UTF-8"?>
<routes>
    <vType id="car" maxSpeed="13.9"/>
    <route id="R1" edges="e1 e2 e3"/>
    <route id="R2" edges="e4 e5"/>
    <route edges="e6"/>
    <route id="R1" edges="e9"/>
    <vehicle id="v0" depart="0">
        <route id="embedded" edges="e1"/>
    </vehicle>
    <route id="R3" edges="e7"/>
</routes>`)

	ids, err := NewXMLRouteSource(path).ListRoutes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.RouteID{"R1", "R2", "R3"}, ids)
}

func TestXMLRouteSourceEmptyFile(t *testing.T) {
	path := writeRoutes(t, `<routes></routes>`)

	ids, err := NewXMLRouteSource(path).ListRoutes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestXMLRouteSourceUnreadable(t *testing.T) {
	cases := map[string]string{
		"missing":    filepath.Join(t.TempDir(), "nope.rou.xml"),
		"malformed":  writeRoutes(t, `<routes><route id="R1"`),
		"wrong root": writeRoutes(t, `<net><route id="R1"/></net>`),
	}

	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewXMLRouteSource(path).ListRoutes(context.Background())
			assert.ErrorIs(t, err, domain.ErrRouteSourceUnreadable)
		})
	}
}

func TestStaticRouteSourceReturnsCopy(t *testing.T) {
	src := &StaticRouteSource{Routes: []domain.RouteID{"A", "B"}}

	ids, err := src.ListRoutes(context.Background())
	require.NoError(t, err)
	ids[0] = "Z"

	again, _ := src.ListRoutes(context.Background())
	assert.Equal(t, []domain.RouteID{"A", "B"}, again)
}
