// Command shotcall fuses near and far camera detections into made/missed
// shot verdicts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/shotcall/internal/config"
	"github.com/banshee-data/shotcall/internal/monitoring"
	"github.com/banshee-data/shotcall/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: shotcall <command> [flags]

Commands:
  fuse     run both camera streams and write fused verdicts
  compare  compare the verdicts of two stored runs
  migrate  manage the run store schema (up, down, version)
  version  print the build version

Run 'shotcall <command> -h' for command flags.`)
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}
	if settings.Quiet {
		monitoring.SetLogger(nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	args := os.Args[2:]
	switch os.Args[1] {
	case "fuse":
		err = runFuse(ctx, args, settings, os.Stdout)
	case "compare":
		err = runCompare(args, settings, os.Stdout)
	case "migrate":
		err = runMigrate(args, settings, os.Stdout)
	case "version":
		fmt.Println(version.String())
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		stop()
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}

	code := exitCode(os.Args[1], settings, err)
	stop()
	os.Exit(code)
}

// exitCode writes the metrics file when one is configured and maps the
// command error to a process exit status. An interrupted fuse has already
// written its partial results, so it exits 130 rather than failing.
func exitCode(cmd string, settings *config.Settings, err error) int {
	if settings.MetricsFile != "" {
		if werr := monitoring.WriteMetricsFile(settings.MetricsFile); werr != nil {
			log.Printf("Failed to write metrics file: %v", werr)
		}
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		log.Printf("%s: interrupted: %v", cmd, err)
		return 130
	}
	log.Printf("%s: %v", cmd, err)
	return 1
}
