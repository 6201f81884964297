// Package intake turns raw client command lines into staged steer commands.
package intake

import (
	"context"
	"errors"
	"strconv"

	"snake-arena/server/internal/net/proto"
	"snake-arena/server/logging"
	"snake-arena/server/logging/network"
)

// maxLoggedLine bounds how much of a malformed line is copied into an event.
const maxLoggedLine = 256

// Steerer stages direction changes.
type Steerer interface {
	Steer(id int, moving string) (bool, string)
}

// CommandContext carries what StageClientCommand needs besides the line.
type CommandContext struct {
	Hub       Steerer
	Publisher logging.Publisher
	TraceID   string
	Tick      func() uint64
}

// StageClientCommand decodes one line and forwards it to the hub. A malformed
// line is reported and returned as an error; the caller moves on to the next
// line.
func StageClientCommand(ctx CommandContext, playerID int, line []byte) (bool, string, error) {
	cmd, err := proto.DecodeCommand(line)
	if err != nil {
		tick := uint64(0)
		if ctx.Tick != nil {
			tick = ctx.Tick()
		}
		logged := line
		if len(logged) > maxLoggedLine {
			logged = logged[:maxLoggedLine]
		}
		network.MalformedLine(context.Background(), ctx.Publisher, tick, logging.EntityRef{
			ID:   strconv.Itoa(playerID),
			Kind: logging.EntityKindPlayer,
		}, ctx.TraceID, network.MalformedLinePayload{Line: string(logged), Error: err.Error()})
		return false, "", err
	}
	if ctx.Hub == nil {
		return false, "", errors.New("intake: no hub")
	}
	ok, reason := ctx.Hub.Steer(playerID, cmd.Moving)
	return ok, reason, nil
}
