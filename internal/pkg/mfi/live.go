package mfi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mfi-tools/mpowerctl/internal/pkg/logging"
)

const (
	sessionCookie = "AIROS_SESSIONID"

	// Factory default credentials on mFi hardware.
	DefaultUsername = "ubnt"
	DefaultPassword = "ubnt"
)

// Live talks to a real mPower device over plain HTTP.
type Live struct {
	device   string
	baseURL  string
	username string
	password string
	session  string
	timeout  time.Duration
	ctx      context.Context
}

func NewLiveClient(device string) *Live {
	session := NewSessionID()

	return &Live{
		device:   device,
		baseURL:  "http://" + device,
		username: DefaultUsername,
		password: DefaultPassword,
		session:  session,
		ctx:      logging.WithSessionID(context.Background(), session),
	}
}

func (c *Live) WithCredentials(username, password string) PowerSwitch {
	nc := *c
	nc.username = username
	nc.password = password
	return &nc
}

func (c *Live) WithTimeout(d time.Duration) PowerSwitch {
	nc := *c
	nc.timeout = d
	return &nc
}

// WithBaseURL overrides the http://<device> default, for tests.
func (c *Live) WithBaseURL(u string) *Live {
	nc := *c
	nc.baseURL = strings.TrimSuffix(u, "/")
	return &nc
}

func (c *Live) SessionID() string {
	return c.session
}

// Login establishes the session with a form POST. The device does not
// report credential failures here; a bad login only surfaces when a
// later call is rejected.
func (c *Live) Login() error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	_, err := c.do("logging in", http.MethodPost, "/login.cgi", form)
	return err
}

func (c *Live) Logout() error {
	_, err := c.do("logging out", http.MethodGet, "/logout.cgi", nil)
	return err
}

// Sensor fetches the device's sensor collection and returns the entry
// for the given port.
func (c *Live) Sensor(port int) (*SensorReading, error) {
	const op = "fetching sensors"

	body, err := c.do(op, http.MethodGet, "/sensors", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Sensors []SensorReading `json:"sensors"`
		Status  string          `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decoding sensors response")
	}
	if resp.Status != "success" {
		return nil, &ProtocolError{Op: op, Device: c.device, Session: c.session, Status: resp.Status}
	}

	for i := range resp.Sensors {
		if resp.Sensors[i].Port == port {
			return &resp.Sensors[i], nil
		}
	}

	return nil, &ProtocolError{Op: op, Device: c.device, Session: c.session, Status: fmt.Sprintf("no sensor entry for port %d", port)}
}

// TurnOn energises the port. The requested level is accepted for CLI
// compatibility but never transmitted: the port is forced to switch mode
// and only the binary output state is written, matching the stock
// firmware control flow.
func (c *Live) TurnOn(port int, level int) error {
	logging.Logger(c.ctx).Debugf("turning on port %d (requested level %d)", port, level)
	return c.setOutput(port, 1)
}

func (c *Live) TurnOff(port int) error {
	logging.Logger(c.ctx).Debugf("turning off port %d", port)
	return c.setOutput(port, 0)
}

// setOutput is the two-step mutation the device expects: force the port
// into switch mode, then write the output and relay state together.
func (c *Live) setOutput(port int, output int) error {
	path := "/sensors/" + strconv.Itoa(port)

	mode := url.Values{}
	mode.Set("dimmer_mode", ModeSwitch)
	body, err := c.do("setting dimmer mode", http.MethodPut, path, mode)
	if err != nil {
		return err
	}
	if err := c.checkStatus("setting dimmer mode", body); err != nil {
		return err
	}

	state := url.Values{}
	state.Set("output", strconv.Itoa(output))
	state.Set("relay", strconv.Itoa(output))
	body, err = c.do("setting output", http.MethodPut, path, state)
	if err != nil {
		return err
	}
	return c.checkStatus("setting output", body)
}

// do issues one HTTP call with the session cookie attached and returns
// the raw response body.
func (c *Live) do(op, method, path string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", op)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.session})

	logging.Logger(c.ctx).Debugf("%s: %s %s", op, method, req.URL)

	client := http.Client{Timeout: c.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Device: c.device, Session: c.session, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Device: c.device, Session: c.session, Err: errors.Wrap(err, "reading response body")}
	}

	logging.Logger(c.ctx).Debugf("%s: HTTP %s, %d bytes", op, resp.Status, len(body))
	return body, nil
}

func (c *Live) checkStatus(op string, body []byte) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.Wrapf(err, "decoding response for %s", op)
	}
	if resp.Status != "success" {
		return &ProtocolError{Op: op, Device: c.device, Session: c.session, Status: resp.Status}
	}
	return nil
}
