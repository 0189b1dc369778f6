package simulation

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

const maxMessageSize = 64 << 20

var errClientBroken = errors.New("traci: connection unusable after an interrupted exchange")

// Client speaks the TraCI request/response protocol over a single connection.
// Calls are serialised; a call interrupted mid-exchange leaves the stream out
// of sync, so the client refuses further calls after that.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	broken bool
	closed bool
}

func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// exchange sends one command and returns a reader positioned after its
// status response.
func (c *Client) exchange(ctx context.Context, id byte, content []byte) (*reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, net.ErrClosed
	}
	if c.broken {
		return nil, errClientBroken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	// Unblock pending reads and writes when the context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := c.conn.Write(encodeMessage(encodeCommand(id, content))); err != nil {
		c.broken = true
		return nil, c.contextErr(ctx, fmt.Errorf("send command 0x%02x: %w", id, err))
	}

	body, err := c.readMessage()
	if err != nil {
		c.broken = true
		return nil, c.contextErr(ctx, fmt.Errorf("receive response to 0x%02x: %w", id, err))
	}

	r := &reader{b: body}
	if err := r.status(id); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

func (c *Client) readMessage() ([]byte, error) {
	var header [messageLengthHeaderSize]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, fmt.Errorf("read message length: %w", err)
	}

	size := int(binary.BigEndian.Uint32(header[:]))
	if size < messageLengthHeaderSize || size > maxMessageSize {
		return nil, fmt.Errorf("invalid message length %d", size)
	}

	body := make([]byte, size-messageLengthHeaderSize)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return body, nil
}

// Version performs the protocol handshake and returns the API version and
// the simulator identification string.
func (c *Client) Version(ctx context.Context) (int, string, error) {
	r, err := c.exchange(ctx, cmdGetVersion, nil)
	if err != nil {
		return 0, "", fmt.Errorf("get version: %w", err)
	}

	if _, _, err := r.commandHeader(); err != nil {
		return 0, "", fmt.Errorf("get version: %w", err)
	}
	api, err := r.int32()
	if err != nil {
		return 0, "", fmt.Errorf("get version: %w", err)
	}
	ident, err := r.string()
	if err != nil {
		return 0, "", fmt.Errorf("get version: %w", err)
	}
	return int(api), ident, nil
}

// SimulationStep advances the simulation. A target time of 0 performs exactly one step.
func (c *Client) SimulationStep(ctx context.Context, targetTime float64) error {
	var p payload
	p.double(targetTime)

	r, err := c.exchange(ctx, cmdSimStep, p.bytes())
	if err != nil {
		return fmt.Errorf("simulation step: %w", err)
	}

	// Subscription results follow; the client never subscribes.
	if r.remaining() >= 4 {
		if n, err := r.int32(); err == nil && n != 0 {
			return fmt.Errorf("simulation step: unexpected %d subscription results", n)
		}
	}
	return nil
}

// VehicleIDList returns the ids of every vehicle currently in the network.
func (c *Client) VehicleIDList(ctx context.Context) ([]string, error) {
	r, err := c.getVehicleVariable(ctx, varIDList, "", typeStringList)
	if err != nil {
		return nil, fmt.Errorf("get vehicle id list: %w", err)
	}

	ids, err := r.stringList()
	if err != nil {
		return nil, fmt.Errorf("get vehicle id list: %w", err)
	}
	return ids, nil
}

// VehicleSpeed returns the speed of a vehicle in m/s.
func (c *Client) VehicleSpeed(ctx context.Context, vehicleID string) (float64, error) {
	r, err := c.getVehicleVariable(ctx, varSpeed, vehicleID, typeDouble)
	if err != nil {
		return 0, fmt.Errorf("get speed of %q: %w", vehicleID, err)
	}

	speed, err := r.double()
	if err != nil {
		return 0, fmt.Errorf("get speed of %q: %w", vehicleID, err)
	}
	return speed, nil
}

func (c *Client) getVehicleVariable(ctx context.Context, variable byte, objectID string, wantType byte) (*reader, error) {
	var p payload
	p.ubyte(variable).string(objectID)

	r, err := c.exchange(ctx, cmdGetVehicleVariable, p.bytes())
	if err != nil {
		return nil, err
	}

	id, _, err := r.commandHeader()
	if err != nil {
		return nil, err
	}
	if id != respGetVehicleVariable {
		return nil, fmt.Errorf("unexpected response command 0x%02x", id)
	}

	gotVar, err := r.ubyte()
	if err != nil {
		return nil, err
	}
	gotID, err := r.string()
	if err != nil {
		return nil, err
	}
	if gotVar != variable || gotID != objectID {
		return nil, fmt.Errorf("response for variable 0x%02x of %q, want 0x%02x of %q", gotVar, gotID, variable, objectID)
	}

	gotType, err := r.ubyte()
	if err != nil {
		return nil, err
	}
	if gotType != wantType {
		return nil, fmt.Errorf("value type 0x%02x, want 0x%02x", gotType, wantType)
	}
	return r, nil
}

// AddVehicle creates a vehicle of the default type on an existing route.
func (c *Client) AddVehicle(ctx context.Context, vehicleID, routeID string, departTime float64) error {
	depart := strconv.FormatFloat(departTime, 'f', -1, 64)

	var p payload
	p.ubyte(varAddFull).string(vehicleID)
	p.ubyte(typeCompound).int32(14)
	p.typedString(routeID)
	p.typedString("DEFAULT_VEHTYPE")
	p.typedString(depart)
	p.typedString("first")   // depart lane
	p.typedString("base")    // depart pos
	p.typedString("0")       // depart speed
	p.typedString("current") // arrival lane
	p.typedString("max")     // arrival pos
	p.typedString("current") // arrival speed
	p.typedString("")        // from taz
	p.typedString("")        // to taz
	p.typedString("")        // line
	p.typedInt(0)            // person capacity
	p.typedInt(0)            // person number

	if _, err := c.exchange(ctx, cmdSetVehicleVariable, p.bytes()); err != nil {
		return fmt.Errorf("add vehicle %q on route %q: %w", vehicleID, routeID, err)
	}
	return nil
}

// RemoveVehicle takes a vehicle out of the simulation.
func (c *Client) RemoveVehicle(ctx context.Context, vehicleID string) error {
	var p payload
	p.ubyte(varRemove).string(vehicleID)
	p.ubyte(typeByte).ubyte(removeReasonVaporized)

	if _, err := c.exchange(ctx, cmdSetVehicleVariable, p.bytes()); err != nil {
		return fmt.Errorf("remove vehicle %q: %w", vehicleID, err)
	}
	return nil
}

// Close asks the simulator to shut down and closes the connection.
// It is safe to call more than once.
func (c *Client) Close() error {
	var closeErr error
	if c.isUsable() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, closeErr = c.exchange(ctx, cmdClose, nil)
		cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.conn.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if closeErr != nil {
		return fmt.Errorf("close traci connection: %w", closeErr)
	}
	return nil
}

func (c *Client) isUsable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.broken
}
