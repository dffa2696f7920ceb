package controller

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mfi-tools/mpowerctl/internal/pkg/logging"
	"github.com/mfi-tools/mpowerctl/internal/pkg/mfi"
)

// Operation keywords accepted on the command line, matched
// case-insensitively.
const (
	OpStatus = "STATUS"
	OpOn     = "ON"
	OpOff    = "OFF"
)

// UsageError reports command line input the device flow cannot act on.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func (e *UsageError) ExitCode() int { return 1 }

// RunConfig is one invocation's intent, built once from the parsed
// command line and never mutated.
type RunConfig struct {
	Device      string
	Port        int
	Operation   string
	DimLevel    int
	StatusAfter bool
	JSON        bool
}

// Run drives a single authenticated operation: login, the requested
// action, logout. Cleanup ordering matters:
//   - a login failure aborts outright, no session was established
//   - any later failure gets a best-effort logout before it propagates
//   - on success the explicit logout is the last call, and its own
//     failure is fatal because logout is itself the cleanup step
func Run(dev mfi.PowerSwitch, cfg RunConfig, out io.Writer) error {
	if err := dev.Login(); err != nil {
		return err
	}

	if err := operate(dev, cfg, out); err != nil {
		if lerr := dev.Logout(); lerr != nil {
			ctx := logging.WithSessionID(context.Background(), dev.SessionID())
			logging.Logger(ctx).WithError(lerr).Warn("logging out after failed operation")
		}
		return err
	}

	return dev.Logout()
}

func operate(dev mfi.PowerSwitch, cfg RunConfig, out io.Writer) error {
	switch strings.ToUpper(cfg.Operation) {
	case OpStatus:
		return printStatus(dev, cfg, out)

	case OpOn:
		if err := dev.TurnOn(cfg.Port, cfg.DimLevel); err != nil {
			return err
		}
		if cfg.StatusAfter {
			return printStatus(dev, cfg, out)
		}
		return nil

	case OpOff:
		if err := dev.TurnOff(cfg.Port); err != nil {
			return err
		}
		if cfg.StatusAfter {
			return printStatus(dev, cfg, out)
		}
		return nil

	default:
		return &UsageError{Msg: fmt.Sprintf("unsupported operation %q (want ON, OFF or STATUS)", cfg.Operation)}
	}
}
