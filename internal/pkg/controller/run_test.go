package controller

import (
	"bytes"
	"io"
	"reflect"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/mfi-tools/mpowerctl/internal/pkg/mfi"
)

// fakeSwitch records the order of device calls so tests can assert the
// login/operate/logout sequencing.
type fakeSwitch struct {
	calls     []string
	reading   mfi.SensorReading
	loginErr  error
	sensorErr error
	turnErr   error
	logoutErr error
}

func (f *fakeSwitch) WithCredentials(username, password string) mfi.PowerSwitch { return f }
func (f *fakeSwitch) WithTimeout(d time.Duration) mfi.PowerSwitch               { return f }
func (f *fakeSwitch) SessionID() string                                         { return "01234567890123456789012345678901" }

func (f *fakeSwitch) Login() error {
	f.calls = append(f.calls, "login")
	return f.loginErr
}

func (f *fakeSwitch) Logout() error {
	f.calls = append(f.calls, "logout")
	return f.logoutErr
}

func (f *fakeSwitch) Sensor(port int) (*mfi.SensorReading, error) {
	f.calls = append(f.calls, "sensor")
	if f.sensorErr != nil {
		return nil, f.sensorErr
	}
	r := f.reading
	r.Port = port
	return &r, nil
}

func (f *fakeSwitch) TurnOn(port int, level int) error {
	f.calls = append(f.calls, "on")
	return f.turnErr
}

func (f *fakeSwitch) TurnOff(port int) error {
	f.calls = append(f.calls, "off")
	return f.turnErr
}

func run(t *testing.T, dev mfi.PowerSwitch, cfg RunConfig, out io.Writer) error {
	t.Helper()
	if out == nil {
		out = io.Discard
	}
	return Run(dev, cfg, out)
}

func TestRunOnSequence(t *testing.T) {
	dev := &fakeSwitch{}
	if err := run(t, dev, RunConfig{Operation: "on", Port: 1, DimLevel: 100}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"login", "on", "logout"}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Fatalf("expected %v, got %v", want, dev.calls)
	}
}

func TestRunOnWithStatusAfter(t *testing.T) {
	dev := &fakeSwitch{reading: mfi.SensorReading{Output: 1, DimmerMode: mfi.ModeSwitch}}
	if err := run(t, dev, RunConfig{Operation: "ON", Port: 1, StatusAfter: true}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"login", "on", "sensor", "logout"}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Fatalf("expected %v, got %v", want, dev.calls)
	}
}

func TestRunOffSequence(t *testing.T) {
	dev := &fakeSwitch{}
	if err := run(t, dev, RunConfig{Operation: "off", Port: 2}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"login", "off", "logout"}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Fatalf("expected %v, got %v", want, dev.calls)
	}
}

func TestRunStatusSequence(t *testing.T) {
	dev := &fakeSwitch{reading: mfi.SensorReading{Output: 1, DimmerLevel: 60, DimmerMode: mfi.ModeDimmer}}
	var out bytes.Buffer
	if err := run(t, dev, RunConfig{Operation: "status", Port: 1}, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"login", "sensor", "logout"}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Fatalf("expected %v, got %v", want, dev.calls)
	}
	if !bytes.Contains(out.Bytes(), []byte("is now ON")) {
		t.Fatalf("expected a status line, got %q", out.String())
	}
}

func TestLoginFailureSkipsLogout(t *testing.T) {
	boom := &mfi.TransportError{Op: "logging in", Device: "d", Session: "s"}
	dev := &fakeSwitch{loginErr: boom}

	err := run(t, dev, RunConfig{Operation: "STATUS"}, nil)
	if err != boom {
		t.Fatalf("expected the login error back, got %v", err)
	}
	want := []string{"login"}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Fatalf("no further calls expected after a failed login, got %v", dev.calls)
	}
}

func TestOperationFailureStillLogsOut(t *testing.T) {
	boom := &mfi.ProtocolError{Op: "setting output", Status: "failure"}
	dev := &fakeSwitch{turnErr: boom}

	err := run(t, dev, RunConfig{Operation: "ON"}, nil)
	if err != boom {
		t.Fatalf("expected the operation error back, got %v", err)
	}
	want := []string{"login", "on", "logout"}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Fatalf("expected a best-effort logout, got %v", dev.calls)
	}
}

func TestOperationFailureKeepsOriginalErrorWhenLogoutFails(t *testing.T) {
	boom := &mfi.ProtocolError{Op: "fetching sensors", Status: "failure"}
	dev := &fakeSwitch{
		sensorErr: boom,
		logoutErr: &mfi.TransportError{Op: "logging out"},
	}

	err := run(t, dev, RunConfig{Operation: "STATUS"}, nil)
	if err != boom {
		t.Fatalf("expected the original error back, got %v", err)
	}
}

func TestUnknownOperation(t *testing.T) {
	dev := &fakeSwitch{}

	err := run(t, dev, RunConfig{Operation: "FOO"}, nil)
	var uerr *UsageError
	if !pkgerrors.As(err, &uerr) {
		t.Fatalf("expected UsageError, got %v", err)
	}
	if uerr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", uerr.ExitCode())
	}

	// logout still happens, but the port is never touched
	want := []string{"login", "logout"}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Fatalf("expected %v, got %v", want, dev.calls)
	}
}

func TestLogoutFailureOnSuccessPathIsFatal(t *testing.T) {
	boom := &mfi.TransportError{Op: "logging out"}
	dev := &fakeSwitch{logoutErr: boom}

	err := run(t, dev, RunConfig{Operation: "OFF"}, nil)
	if err != boom {
		t.Fatalf("expected the logout error back, got %v", err)
	}
}

func TestStatusJSONOutput(t *testing.T) {
	dev := &fakeSwitch{reading: mfi.SensorReading{Output: 1, DimmerLevel: 35, DimmerMode: mfi.ModeDimmer}}
	var out bytes.Buffer
	if err := run(t, dev, RunConfig{Operation: "STATUS", Port: 1, JSON: true}, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"dimmer_level": 35`)) {
		t.Fatalf("expected JSON output, got %q", out.String())
	}
}
