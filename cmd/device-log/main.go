// Command device-log views and analyzes protocol capture files.
//
// Capture files are written by device-host and device-proxy when run with
// the -protocol-log flag.
//
// Usage:
//
//	device-log <command> [flags] <file.dlog>
//
// Commands:
//
//	view     View events in human-readable format
//	export   Export events to JSONL or CSV
//	filter   Filter events and write them to a new capture
//	stats    Show statistics about the capture
//
// Examples:
//
//	# View all events
//	device-log view host.dlog
//
//	# View only control activity
//	device-log view -category activity host.dlog
//
//	# Export to CSV
//	device-log export -format csv -o host.csv host.dlog
//
//	# Keep one session
//	device-log filter -session 5f0c2a1e -o session.dlog host.dlog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/cmd/device-log/commands"
)

const usage = `device-log - Device Protocol Log Analyzer

Usage:
  device-log <command> [flags] <file.dlog>

Commands:
  view     View events in human-readable format
  export   Export events to JSONL or CSV
  filter   Filter events and write them to a new capture
  stats    Show statistics about the capture

Use "device-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "device-log %s - %s\n\nUsage:\n  device-log %s [flags] <file.dlog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

// filterFlags registers the shared filter flags on fs.
func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.SessionID, "session", "", "Filter by session ID")
	fs.IntVar(&opts.DeviceID, "device-id", 0, "Filter by device ID")
	fs.IntVar(&opts.ControlID, "control-id", 0, "Filter by control ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, tree, control)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out, local)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, activity, state, error)")
	return opts
}

func inputPath(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return "", fmt.Errorf("log file path required")
	}
	return fs.Arg(0), nil
}

func runView(args []string) error {
	fs := newFlagSet("view", "View events in human-readable format")
	opts := filterFlags(fs)
	path, err := inputPath(fs, args)
	if err != nil {
		return err
	}
	filter, err := opts.Build()
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runExport(args []string) error {
	fs := newFlagSet("export", "Export events to JSONL or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path, err := inputPath(fs, args)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return commands.RunExport(path, *format, w)
}

func runFilter(args []string) error {
	fs := newFlagSet("filter", "Filter events and write them to a new capture")
	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)
	path, err := inputPath(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		fs.Usage()
		return fmt.Errorf("output file (-o) required")
	}
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	count, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", count, *output)
	return nil
}

func runStats(args []string) error {
	fs := newFlagSet("stats", "Show statistics about the capture")
	path, err := inputPath(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, os.Stdout)
}
