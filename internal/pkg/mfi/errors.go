package mfi

import "fmt"

// TransportError means an HTTP call to the device could not complete at
// all: DNS failure, refused connection, timeout.
type TransportError struct {
	Op      string
	Device  string
	Session string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: device %s, session %s: %v", e.Op, e.Device, e.Session, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) ExitCode() int { return 2 }

// ProtocolError means the call completed but the device rejected it: the
// JSON status field was something other than "success".
type ProtocolError struct {
	Op      string
	Device  string
	Session string
	Status  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: device %s, session %s: device reported %q", e.Op, e.Device, e.Session, e.Status)
}

func (e *ProtocolError) ExitCode() int { return 1 }
