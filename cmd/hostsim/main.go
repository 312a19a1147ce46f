// Command hostsim runs the presenter firmware on a workstation. By default
// it opens a terminal UI where keys drive the buttons and a peer console
// plays the part of the phone app over the in-memory radio. With
// --radio=ble it serves the real GATT database through the host adapter.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"presenter-fw/version"
	"presenter-fw/x/logx"
)

// Options are the command-line flags.
type Options struct {
	Profile  string  `help:"YAML file overlaid on the embedded host profile." type:"existingfile" placeholder:"FILE"`
	Flash    string  `help:"Back the update store with this file instead of RAM." type:"path" placeholder:"FILE"`
	Radio    string  `help:"Radio to serve on." enum:"mem,ble" default:"mem"`
	Temp     float64 `help:"Initial sensor reading in degrees Celsius." default:"21.5"`
	Log      string  `help:"Firmware log file while the UI owns the terminal." type:"path" default:"hostsim.log"`
	Headless bool    `help:"Run without the UI and log to stderr until interrupted."`

	Version kong.VersionFlag `help:"Print the firmware version."`
}

// TempDeci is the initial reading in tenths of a degree.
func (o Options) TempDeci() int16 { return int16(math.Round(o.Temp * 10)) }

func main() {
	var opts Options
	kctx := kong.Parse(&opts,
		kong.Name("hostsim"),
		kong.Description("Run the presenter firmware on this machine."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	kctx.FatalIfErrorf(run(opts))
}

func run(opts Options) error {
	if !opts.Headless {
		f, err := os.OpenFile(opts.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logx.SetOutput(f)
	}

	sim, err := newSim(opts)
	if err != nil {
		return err
	}
	defer sim.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if opts.Headless {
		return sim.App.Run(ctx)
	}

	if err := sim.App.Start(ctx); err != nil {
		return err
	}
	m := newModel(ctx, sim)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
