// Package platform defines the surface the session layer consumes from a
// real-time messaging platform. Adapters live in subpackages; everything
// above this package works against these interfaces only.
package platform

import (
	"context"

	"github.com/user/botmux/internal/types"
)

// Client opens connections to the platform.
type Client interface {
	// Connect authenticates with the credential and returns a live
	// connection, or an error terminal for this attempt.
	Connect(ctx context.Context, token string) (Conn, error)
}

// Conn is one tenant's live connection. Interactions and Errs deliver
// inbound events until the connection closes; both channels are closed on
// teardown. Sends after Close must fail with an error, never panic.
type Conn interface {
	Identity() types.Identity
	GuildCount() int
	Interactions() <-chan Interaction
	Errs() <-chan error
	Close() error
}

// Interaction is a single inbound command invocation. Reply delivers the
// first response; FollowUp delivers additional messages after a reply has
// already gone out.
type Interaction interface {
	Command() string
	UserID() string
	ChannelID() string
	Reply(text string, private bool) error
	FollowUp(text string) error
}

// CommandDescriptor is the remote registry's view of one command.
type CommandDescriptor struct {
	Name        string
	Description string
}

// Registrar performs the bulk replace against the platform's command
// registry, scoped to the connected identity.
type Registrar interface {
	ReplaceCommands(ctx context.Context, identity types.Identity, token string, commands []CommandDescriptor) error
}
