package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/obs"
	"route-validation-service/internal/ports"
	"strconv"
	"time"
)

// SumoLauncher starts a SUMO process per validation run and connects to it
// over TraCI. It implements ports.SimulationOpener.
type SumoLauncher struct {
	Binary          string
	NetFile         string
	RoutesFile      string
	ExtraArgs       []string
	ConnectAttempts int

	// Output receives the simulator's stdout and stderr. Nil discards it.
	Output io.Writer
}

// Open launches the simulator and returns a connected session.
// Every failure wraps domain.ErrSessionStart; a started process is killed.
func (l *SumoLauncher) Open(ctx context.Context) (_ ports.SimulationPort, err error) {
	defer obs.Time(ctx, "sumo.Open")(&err)

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("%w: pick remote port: %w", domain.ErrSessionStart, err)
	}

	args := []string{"-n", l.NetFile, "-r", l.RoutesFile, "--remote-port", strconv.Itoa(port)}
	args = append(args, l.ExtraArgs...)

	// The process outlives the request context; the session owns it.
	cmd := exec.Command(l.Binary, args...)
	out := l.Output
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", domain.ErrSessionStart, l.Binary, err)
	}

	proc := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.err = cmd.Wait()
		close(proc.done)
	}()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	conn, err := dialWithRetry(ctx, addr, l.ConnectAttempts, proc.done)
	if err != nil {
		proc.stop(0)
		return nil, fmt.Errorf("%w: connect to %s: %w", domain.ErrSessionStart, addr, err)
	}

	client := NewClient(conn)
	api, ident, err := client.Version(ctx)
	if err != nil {
		_ = client.Close()
		proc.stop(0)
		return nil, fmt.Errorf("%w: handshake: %w", domain.ErrSessionStart, err)
	}

	slog.InfoContext(ctx, "simulation session started",
		"binary", l.Binary, "pid", cmd.Process.Pid, "port", port, "api", api, "version", ident)

	return newSession(client, proc), nil
}

// freePort asks the kernel for an unused TCP port on the loopback interface.
func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// dialWithRetry connects while the simulator starts listening, backing off
// exponentially and giving up early if the process exits.
func dialWithRetry(ctx context.Context, addr string, attempts int, exited <-chan struct{}) (net.Conn, error) {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 100 * time.Millisecond
	const maxBackoff = 2 * time.Second

	var dialer net.Dialer
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-exited:
			timer.Stop()
			return nil, errSimulatorExited
		case <-timer.C:
		}

		backoff = min(backoff*2, maxBackoff)
	}

	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

var errSimulatorExited = errors.New("simulator exited before accepting connections")

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error // valid once done is closed
}

// stop waits up to grace for the process to exit on its own, then kills it.
func (p *process) stop(grace time.Duration) error {
	if p == nil {
		return nil
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.err
	case <-timer.C:
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill simulator: %w", err)
	}
	<-p.done
	return nil
}

// SumoSession is one TraCI connection to a running simulator.
// It implements ports.SimulationPort.
type SumoSession struct {
	client *Client
	proc   *process
}

func newSession(client *Client, proc *process) *SumoSession {
	return &SumoSession{client: client, proc: proc}
}

func (s *SumoSession) Inject(ctx context.Context, route domain.RouteID, vehicle domain.VehicleID, departTime float64) error {
	err := s.client.AddVehicle(ctx, string(vehicle), string(route), departTime)
	if err == nil {
		return nil
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return &domain.InjectError{RouteID: route, VehicleID: vehicle, Err: cmdErr}
	}
	return err
}

func (s *SumoSession) AdvanceStep(ctx context.Context) error {
	return s.client.SimulationStep(ctx, 0)
}

func (s *SumoSession) ActiveVehicleIDs(ctx context.Context) (map[domain.VehicleID]struct{}, error) {
	ids, err := s.client.VehicleIDList(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.VehicleID]struct{}, len(ids))
	for _, id := range ids {
		out[domain.VehicleID(id)] = struct{}{}
	}
	return out, nil
}

func (s *SumoSession) SpeedOf(ctx context.Context, vehicle domain.VehicleID) (float64, error) {
	return s.client.VehicleSpeed(ctx, string(vehicle))
}

func (s *SumoSession) RemoveVehicle(ctx context.Context, vehicle domain.VehicleID) error {
	return s.client.RemoveVehicle(ctx, string(vehicle))
}

// Close ends the TraCI session and waits for the simulator to exit.
func (s *SumoSession) Close() error {
	closeErr := s.client.Close()

	// A simulator that ignored CLOSE is killed after the grace period.
	if s.proc != nil {
		if err := s.proc.stop(5 * time.Second); err != nil {
			slog.Debug("simulator exit", "err", err)
		}
		s.proc = nil
	}

	return closeErr
}
