package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mfi-tools/mpowerctl/internal/pkg/mfi"
)

const timestampFormat = "2006-01-02 15:04:05"

func printStatus(dev mfi.PowerSwitch, cfg RunConfig, out io.Writer) error {
	reading, err := dev.Sensor(cfg.Port)
	if err != nil {
		return err
	}

	if cfg.JSON {
		b, err := json.MarshalIndent(reading, "", "    ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}

	fmt.Fprintln(out, statusLine(time.Now(), *reading))
	return nil
}

// statusLine renders one reading. Ports in switch mode always report a
// full-scale level so the figure shown is 100 with no qualifier; dimmer
// ports may sit partially off, hence the "(mostly)" hedge.
func statusLine(now time.Time, r mfi.SensorReading) string {
	state := "OFF"
	if r.On() {
		state = "ON"
	}

	level := r.DimmerLevel
	qualifier := ""
	if r.DimmerMode == mfi.ModeSwitch {
		level = 100
	} else {
		qualifier = " (mostly)"
	}

	return fmt.Sprintf("%s  port %d is now %s, level %d%s", now.Format(timestampFormat), r.Port, state, level, qualifier)
}
