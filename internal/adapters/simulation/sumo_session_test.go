package simulation

import (
	"context"
	"net"
	"path/filepath"
	"route-validation-service/internal/domain"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionInjectRejectionBecomesInjectError(t *testing.T) {
	client, _ := startFakeTraCI(t, func(id byte, content []byte) [][]byte {
		return [][]byte{statusFrame(id, resultError, "The route 'R9' is not known.")}
	})
	sess := newSession(client, nil)

	err := sess.Inject(context.Background(), "R9", "veh_R9", 0)

	var injErr *domain.InjectError
	require.ErrorAs(t, err, &injErr)
	assert.Equal(t, domain.RouteID("R9"), injErr.RouteID)
	assert.Equal(t, domain.VehicleID("veh_R9"), injErr.VehicleID)
	assert.Contains(t, injErr.Error(), "is not known")
}

func TestSessionActiveVehicleIDs(t *testing.T) {
	client, _ := startFakeTraCI(t, func(id byte, content []byte) [][]byte {
		return [][]byte{statusFrame(id, resultOK, ""), vehicleValueFrame(varIDList, "", func(p *payload) {
			p.ubyte(typeStringList).stringList([]string{"veh_R1", "other"})
		})}
	})
	sess := newSession(client, nil)

	active, err := sess.ActiveVehicleIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[domain.VehicleID]struct{}{"veh_R1": {}, "other": {}}, active)
}

func TestSessionCloseWithoutProcess(t *testing.T) {
	client, _ := startFakeTraCI(t, func(id byte, content []byte) [][]byte {
		return [][]byte{statusFrame(id, resultOK, "")}
	})
	sess := newSession(client, nil)

	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())
}

func TestLauncherMissingBinaryIsSessionStartError(t *testing.T) {
	l := &SumoLauncher{
		Binary:          filepath.Join(t.TempDir(), "no-such-sumo"),
		NetFile:         "map.net.xml",
		RoutesFile:      "routes.rou.xml",
		ConnectAttempts: 1,
	}

	_, err := l.Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionStart)
}

func TestDialWithRetryStopsWhenSimulatorExits(t *testing.T) {
	port, err := freePort()
	require.NoError(t, err)

	exited := make(chan struct{})
	close(exited)

	_, err = dialWithRetry(context.Background(), net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 5, exited)
	assert.ErrorIs(t, err, errSimulatorExited)
}

func TestDialWithRetryConnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	conn, err := dialWithRetry(context.Background(), ln.Addr().String(), 3, nil)
	require.NoError(t, err)
	_ = conn.Close()
}
