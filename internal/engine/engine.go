// Package engine runs one diagnostic session against the vehicle bus.
package engine

import (
	"context"
	"io"

	"github.com/sweeney/diag-logger/internal/logic"
	"github.com/sweeney/diag-logger/internal/profile"
)

// Engine runs a diagnostic session. RunSession blocks until the session
// ends, copying session data to w. Cancelling ctx asks the engine to stop;
// it then returns UserTerminated.
type Engine interface {
	RunSession(ctx context.Context, p profile.Profile, w io.Writer, debug bool) logic.SessionResult
}
