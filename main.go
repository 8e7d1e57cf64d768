// Argus RidePlan - Ride time and weather planning for GPS routes.
// Copyright (C) 2026  Paulo Sérgio
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"argus-rideplan/internal/config"
	"argus-rideplan/internal/logging"
	"argus-rideplan/internal/service/export"
	"argus-rideplan/internal/service/weather"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `Usage: rideplan <command> [flags]

Commands:
  plan <file.gpx>   estimate ride time and schedule forecasts for a route
  serve             run the HTTP API
  history           list stored plans
  models            list forecast models

Run "rideplan <command> --help" for the flags of a command.
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "rideplan:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}
	cmd := args[0]

	if cmd == "models" {
		for _, m := range weather.Models() {
			fmt.Fprintf(out, "%-24s %s\n", m.ID, m.Name)
		}
		return nil
	}

	fs := pflag.NewFlagSet("rideplan "+cmd, pflag.ContinueOnError)
	config.Flags(fs)
	exports := map[string]*string{}
	limit := 20

	switch cmd {
	case "plan":
		for _, name := range export.Names() {
			exports[name] = fs.String(name, "", "also write the plan as "+name+" to this path")
		}
	case "history":
		fs.IntVar(&limit, "limit", limit, "number of plans to show")
	case "serve":
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.App.Environment, cfg.App.LogLevel); err != nil {
		return err
	}
	defer func() { _ = logging.Sync() }()

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.Warn("close storage", zap.Error(err))
		}
	}()

	switch cmd {
	case "plan":
		if fs.NArg() != 1 {
			return fmt.Errorf("plan needs exactly one GPX file, got %d", fs.NArg())
		}
		plan, err := app.PlanFile(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		printSummary(out, plan)
		for _, name := range export.Names() {
			path := *exports[name]
			if path == "" {
				continue
			}
			written, err := app.ExportPlan(plan, name, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s\n", written)
		}
		return nil

	case "history":
		plans, err := app.History(limit)
		if err != nil {
			return err
		}
		printHistory(out, plans)
		return nil

	default:
		return app.Serve(ctx)
	}
}
