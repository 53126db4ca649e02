// Package discord is a small client for Discord's local Rich Presence IPC.
//
// A [Client] owns at most one socket. [Client.Connect] dials and performs the
// handshake; [Client.SetActivity] and [Client.ClearActivity] send
// SET_ACTIVITY and wait for Discord's reply, answering keepalive pings on the
// way. Every operation runs under an I/O deadline so a stalled Discord can
// never block the caller indefinitely. Socket discovery is per platform
// (conn_unix.go, conn_windows.go).
package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// ErrNotConnected is returned when an operation requires an active connection.
var ErrNotConnected = errors.New("not connected")

// ErrClosedByPeer is returned when Discord sends a CLOSE frame.
var ErrClosedByPeer = errors.New("connection closed by discord")

// DefaultTimeout bounds each dial, handshake and command round trip.
const DefaultTimeout = 5 * time.Second

// Error is an ERROR event returned by Discord in reply to a command.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
}

// ///////////////////////////////////////////////
// Activity
// ///////////////////////////////////////////////

// Timestamps holds the start of the elapsed timer, in unix seconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Assets holds image keys and tooltip text for an activity.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity is the SET_ACTIVITY payload.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Dialer opens a raw IPC connection within timeout.
type Dialer func(timeout time.Duration) (net.Conn, error)

// Option configures a [Client].
type Option func(*Client)

// WithTimeout sets the per-operation deadline. Non-positive values are
// ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDialer replaces platform socket discovery, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// Client manages a connection to Discord's IPC socket. It is safe for
// concurrent use, though the daemon drives it from a single goroutine.
type Client struct {
	// appID is the Discord application (OAuth2 client) identifier.
	appID string
	// timeout is the deadline applied to each operation.
	timeout time.Duration
	// dial opens the socket.
	dial Dialer
	// pid is reported to Discord so it can tie the activity to a process.
	pid int

	// mu protects conn and nonce.
	mu sync.Mutex
	// conn is the active socket, or nil when disconnected.
	conn net.Conn
	// nonce tags each command so its reply can be matched.
	nonce uint64
}

// NewClient creates a client for the given application ID.
func NewClient(appID string, opts ...Option) *Client {
	c := &Client{
		appID:   appID,
		timeout: DefaultTimeout,
		dial:    dialDiscord,
		pid:     os.Getpid(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials Discord and performs the handshake. An existing connection
// is closed first.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()

	conn, err := c.dial(c.timeout)
	if err != nil {
		return err
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		c.dropLocked()
		return err
	}
	return nil
}

// SetActivity publishes activity.
func (c *Client) SetActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.call("SET_ACTIVITY", map[string]any{
		"pid":      c.pid,
		"activity": activity,
	})
}

// ClearActivity removes the published activity.
func (c *Client) ClearActivity() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.call("SET_ACTIVITY", map[string]any{
		"pid":      c.pid,
		"activity": nil,
	})
}

// Close sends a CLOSE frame and releases the socket. It does not clear the
// activity; Discord drops it when the socket closes. Closing a disconnected
// client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	_ = WriteFrame(c.conn, OpClose, []byte(`{}`))

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether the client has an active connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// ///////////////////////////////////////////////
// Protocol
// ///////////////////////////////////////////////

// reply is the envelope of an OpFrame payload sent by Discord.
type reply struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

// closeData is the payload of an OpClose frame or an ERROR event.
type closeData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handshake sends the HANDSHAKE frame and waits for READY. The caller must
// hold c.mu.
func (c *Client) handshake() error {
	payload, err := json.Marshal(map[string]any{
		"v":         1,
		"client_id": c.appID,
	})
	if err != nil {
		return fmt.Errorf("marshaling handshake: %w", err)
	}

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if err := WriteFrame(c.conn, OpHandshake, payload); err != nil {
		return fmt.Errorf("writing handshake: %w", err)
	}

	r, err := c.awaitReply("")
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if r.Evt != "READY" {
		return fmt.Errorf("handshake: unexpected event %q", r.Evt)
	}
	return nil
}

// call sends one command and waits for the reply carrying the same nonce.
// Transport failures drop the connection; an ERROR reply does not. The
// caller must hold c.mu.
func (c *Client) call(cmd string, args map[string]any) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	c.nonce++
	nonce := strconv.FormatUint(c.nonce, 10)

	payload, err := json.Marshal(map[string]any{
		"cmd":   cmd,
		"args":  args,
		"nonce": nonce,
	})
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", cmd, err)
	}

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if err := WriteFrame(c.conn, OpFrame, payload); err != nil {
		c.dropLocked()
		return fmt.Errorf("sending %s: %w", cmd, err)
	}

	if _, err := c.awaitReply(nonce); err != nil {
		var de *Error
		if !errors.As(err, &de) {
			c.dropLocked()
		}
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

// awaitReply reads frames until an OpFrame reply arrives whose nonce equals
// want (any reply when want is empty). PINGs are answered in place. ERROR
// events are returned as *Error.
func (c *Client) awaitReply(want string) (reply, error) {
	for {
		op, payload, err := DecodeFrame(c.conn)
		if err != nil {
			return reply{}, err
		}

		switch op {
		case OpPing:
			if err := WriteFrame(c.conn, OpPong, payload); err != nil {
				return reply{}, err
			}
			continue
		case OpPong:
			continue
		case OpClose:
			var cd closeData
			_ = json.Unmarshal(payload, &cd)
			return reply{}, fmt.Errorf("%w: %d %s", ErrClosedByPeer, cd.Code, cd.Message)
		case OpFrame:
		default:
			return reply{}, fmt.Errorf("unexpected opcode %s", op)
		}

		var r reply
		if err := json.Unmarshal(payload, &r); err != nil {
			return reply{}, fmt.Errorf("parsing reply: %w", err)
		}
		if want != "" && r.Nonce != want {
			continue
		}
		if r.Evt == "ERROR" {
			var cd closeData
			_ = json.Unmarshal(r.Data, &cd)
			return reply{}, &Error{Code: cd.Code, Message: cd.Message}
		}
		return r, nil
	}
}

// dropLocked closes and forgets the socket. The caller must hold c.mu.
func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
