package presence

import (
	"fmt"
	"log/slog"

	"tools.zach/dev/tekkencord/internal/discord"
)

// loggedFailures is how many consecutive connection failures are logged at
// warn level. Later failures go to debug so a closed Discord does not flood
// the log.
const loggedFailures = 3

// Client is the Discord session the connector drives. [*discord.Client]
// satisfies it.
type Client interface {
	Connect() error
	SetActivity(activity *discord.Activity) error
	ClearActivity() error
	Close() error
	// Connected reports whether the transport is still open. Discord may
	// close it on its own, e.g. with a CLOSE frame while idle.
	Connected() bool
}

// ConnectionState is the connector's view of the session.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// ///////////////////////////////////////////////
// Connector
// ///////////////////////////////////////////////

// Connector owns one logical Discord session. Any failed call drops it to
// [Disconnected]; the caller decides when to reconnect. It is not safe for
// concurrent use.
type Connector struct {
	client   Client
	state    ConnectionState
	attempts int
}

// NewConnector returns a disconnected connector over client.
func NewConnector(client Client) *Connector {
	return &Connector{client: client}
}

// State returns the current connection state. A session the client has
// already lost is reported as [Disconnected].
func (c *Connector) State() ConnectionState {
	if c.state == Connected && !c.client.Connected() {
		slog.Info("Discord closed the connection")
		c.state = Disconnected
	}
	return c.state
}

// Attempts returns the number of consecutive failed connection attempts.
func (c *Connector) Attempts() int { return c.attempts }

// Connect performs the handshake. Success resets the attempt counter;
// failure increments it. Connecting while connected is a no-op.
func (c *Connector) Connect() error {
	if c.State() == Connected {
		return nil
	}

	if err := c.client.Connect(); err != nil {
		c.attempts++
		if c.attempts <= loggedFailures {
			slog.Warn("Discord connection failed", "attempt", c.attempts, "error", err)
		} else {
			slog.Debug("Discord connection failed", "attempt", c.attempts, "error", err)
		}
		return fmt.Errorf("connect attempt %d: %w", c.attempts, err)
	}

	if c.attempts > 0 {
		slog.Info("connected to Discord", "after_attempts", c.attempts)
	} else {
		slog.Info("connected to Discord")
	}
	c.state = Connected
	c.attempts = 0
	return nil
}

// Push publishes d. It fails with [discord.ErrNotConnected] when
// disconnected.
func (c *Connector) Push(d Descriptor) error {
	if c.State() != Connected {
		return discord.ErrNotConnected
	}

	if err := c.client.SetActivity(d.Activity()); err != nil {
		c.state = Disconnected
		slog.Warn("Discord update failed", "error", err)
		return fmt.Errorf("pushing presence: %w", err)
	}

	slog.Info("presence updated", "details", d.Details, "state", d.State)
	return nil
}

// Clear removes the published presence. Failures are logged and dropped.
func (c *Connector) Clear() {
	if c.State() != Connected {
		return
	}
	if err := c.client.ClearActivity(); err != nil {
		c.state = Disconnected
		slog.Debug("clearing presence failed", "error", err)
		return
	}
	slog.Debug("presence cleared")
}

// Close clears the presence and releases the session. It is safe to call
// more than once and from the disconnected state.
func (c *Connector) Close() {
	c.Clear()
	if err := c.client.Close(); err != nil {
		slog.Debug("closing Discord session failed", "error", err)
	}
	c.state = Disconnected
}

// ///////////////////////////////////////////////
// Wire conversion
// ///////////////////////////////////////////////

// Activity converts d into the SET_ACTIVITY payload, omitting empty
// optional sections.
func (d Descriptor) Activity() *discord.Activity {
	a := &discord.Activity{
		Details: d.Details,
		State:   d.State,
	}
	if !d.Start.IsZero() {
		a.Timestamps = &discord.Timestamps{Start: d.Start.Unix()}
	}
	if d.LargeImage != "" || d.LargeText != "" || d.SmallImage != "" || d.SmallText != "" {
		a.Assets = &discord.Assets{
			LargeImage: d.LargeImage,
			LargeText:  d.LargeText,
			SmallImage: d.SmallImage,
			SmallText:  d.SmallText,
		}
	}
	return a
}
