package simulation

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// TraCI command, variable and type identifiers used by the client.
const (
	cmdGetVersion           = 0x00
	cmdSimStep              = 0x02
	cmdClose                = 0x7F
	cmdGetVehicleVariable   = 0xA4
	cmdSetVehicleVariable   = 0xC4
	respGetVehicleVariable  = 0xB4
	varIDList               = 0x00
	varSpeed                = 0x40
	varRemove               = 0x81
	varAddFull              = 0x85
	typeInteger             = 0x09
	typeByte                = 0x08
	typeDouble              = 0x0B
	typeString              = 0x0C
	typeStringList          = 0x0E
	typeCompound            = 0x0F
	resultOK                = 0x00
	resultNotImplemented    = 0x01
	resultError             = 0xFF
	removeReasonVaporized   = 3
	maxShortCommandLength   = 255
	messageLengthHeaderSize = 4
)

var errShortMessage = errors.New("traci: message truncated")

// CommandError is a non-OK status returned by the simulator for a command.
type CommandError struct {
	Command     byte
	Result      byte
	Description string
}

func (e *CommandError) Error() string {
	kind := "error"
	if e.Result == resultNotImplemented {
		kind = "not implemented"
	}
	return fmt.Sprintf("traci command 0x%02x %s: %s", e.Command, kind, e.Description)
}

// payload accumulates the big-endian encoding of command content.
type payload struct {
	buf bytes.Buffer
}

func (p *payload) ubyte(b byte) *payload {
	p.buf.WriteByte(b)
	return p
}

func (p *payload) int32(v int32) *payload {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	p.buf.Write(b[:])
	return p
}

func (p *payload) double(f float64) *payload {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
	p.buf.Write(b[:])
	return p
}

func (p *payload) string(s string) *payload {
	p.int32(int32(len(s)))
	p.buf.WriteString(s)
	return p
}

func (p *payload) stringList(items []string) *payload {
	p.int32(int32(len(items)))
	for _, s := range items {
		p.string(s)
	}
	return p
}

// typedString writes a string prefixed with its type tag, as compounds require.
func (p *payload) typedString(s string) *payload {
	return p.ubyte(typeString).string(s)
}

func (p *payload) typedInt(v int32) *payload {
	return p.ubyte(typeInteger).int32(v)
}

func (p *payload) bytes() []byte { return p.buf.Bytes() }

// encodeCommand frames one command. Commands longer than 255 bytes use the
// extended form: a zero length byte followed by a 32-bit length.
func encodeCommand(id byte, content []byte) []byte {
	var p payload
	n := 1 + 1 + len(content)
	if n <= maxShortCommandLength {
		p.ubyte(byte(n))
	} else {
		p.ubyte(0).int32(int32(n + 4))
	}
	p.ubyte(id)
	p.buf.Write(content)
	return p.bytes()
}

// encodeMessage prefixes one or more framed commands with the total length.
func encodeMessage(commands ...[]byte) []byte {
	size := messageLengthHeaderSize
	for _, c := range commands {
		size += len(c)
	}

	var p payload
	p.int32(int32(size))
	for _, c := range commands {
		p.buf.Write(c)
	}
	return p.bytes()
}

// reader decodes a received message body.
type reader struct {
	b   []byte
	off int
}

func (r *reader) remaining() int { return len(r.b) - r.off }

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errShortMessage
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) ubyte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) int32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *reader) double() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (r *reader) string() (string, error) {
	n, err := r.int32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) stringList() ([]string, error) {
	n, err := r.int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("traci: negative string list length %d", n)
	}

	out := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// commandHeader reads a command frame header and returns the command id and
// the length of its content.
func (r *reader) commandHeader() (byte, int, error) {
	l, err := r.ubyte()
	if err != nil {
		return 0, 0, err
	}

	length := int(l) - 2
	if l == 0 {
		ext, err := r.int32()
		if err != nil {
			return 0, 0, err
		}
		length = int(ext) - 6
	}

	id, err := r.ubyte()
	if err != nil {
		return 0, 0, err
	}
	if length < 0 || length > r.remaining() {
		return 0, 0, errShortMessage
	}
	return id, length, nil
}

// status reads the status response for a command and converts a non-OK
// result into a *CommandError.
func (r *reader) status(expected byte) error {
	id, _, err := r.commandHeader()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if id != expected {
		return fmt.Errorf("read status: got response for command 0x%02x, want 0x%02x", id, expected)
	}

	result, err := r.ubyte()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	desc, err := r.string()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	if result != resultOK {
		return &CommandError{Command: expected, Result: result, Description: desc}
	}
	return nil
}
