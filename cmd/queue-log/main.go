// Command queue-log views and summarizes queue hub protocol traces.
//
// Trace files are written by queue-watch with the -protocol-log flag.
//
// Usage:
//
//	queue-log <command> [flags] <file.qlog>
//
// Commands:
//
//	view     View trace events in human-readable format
//	stats    Show statistics about the trace
//
// Examples:
//
//	# View all events
//	queue-log view watch.qlog
//
//	# View only notifications for one room
//	queue-log view -target QueueUpdated -topic "site-1|room-1" watch.qlog
//
//	# View state changes of the last hour
//	queue-log view -category state -since 1h watch.qlog
//
//	# Show statistics
//	queue-log stats watch.qlog
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/queuesync/queuesync-go/cmd/queue-log/commands"
)

const usage = `queue-log - Queue Hub Protocol Trace Viewer

Usage:
  queue-log <command> [flags] <file.qlog>

Commands:
  view     View trace events in human-readable format
  stats    Show statistics about the trace

Use "queue-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `queue-log view - View trace events in human-readable format

Usage:
  queue-log view [flags] <file.qlog>

Flags:
`)
		fs.PrintDefaults()
	}

	opts := commands.ViewOptions{}
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, hub)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, control, state, error)")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.Topic, "topic", "", "Filter by topic key (site or site|room)")
	fs.StringVar(&opts.Target, "target", "", "Filter by hub method or event name")
	since := fs.Duration("since", 0, "Only events newer than this duration before now")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	if *since > 0 {
		start := time.Now().Add(-*since)
		opts.TimeStart = &start
	}

	if err := commands.RunView(fs.Arg(0), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `queue-log stats - Show statistics about the trace

Usage:
  queue-log stats <file.qlog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunStats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
