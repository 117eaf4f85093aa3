package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/omartijn/ozo/bench"
	"github.com/omartijn/ozo/logger"
)

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: %s --benchmark [flags] <scenario>\n\n", os.Args[0])
	fmt.Fprintf(fs.Output(), "Scenarios:\n  %s\n\nFlags:\n", strings.Join(bench.Scenarios, "\n  "))
	fs.PrintDefaults()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("ozobench", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { usage(fs) }

	var (
		benchmark   = fs.Bool("benchmark", false, "run the benchmark")
		duration    = fs.Int("duration", 31, "benchmark duration in seconds")
		coroutines  = fs.Int("coroutines", 1, "concurrent tasks per thread")
		connections = fs.Int("connections", 0, "pool capacity (defaults to coroutines)")
		threads     = fs.Int("threads", 1, "thread groups sharing the pool")
		queue       = fs.Int("queue", 0, "pool queue capacity (0: fail fast)")
		conninfo    = fs.String("conninfo", "", "connection info string")
		query       = fs.String("query", "simple", "query kind: simple or complex")
		format      = fs.String("format", "text", "report format: text or json")
		verbose     = fs.Bool("verbose", false, "verbose logging")
		listen      = fs.String("listen", "", "serve live stats on this address while running")
		historyDir  = fs.String("history-dir", "", "store run reports in this directory")
		cpuprofile  = fs.String("cpuprofile", "", "write a CPU profile to this file")
		memprofile  = fs.String("memprofile", "", "write a memory profile to this file")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return -1
	}

	if !*benchmark {
		fmt.Fprintln(os.Stderr, "error: --benchmark is required")
		usage(fs)
		return -1
	}
	scenario := fs.Arg(0)
	if scenario == "" {
		fmt.Fprintln(os.Stderr, "error: no scenario given")
		usage(fs)
		return -1
	}

	if *verbose {
		logger.SetLogLevel(slog.LevelDebug)
	}

	opts := bench.Options{
		Scenario:    scenario,
		Duration:    time.Duration(*duration) * time.Second,
		Coroutines:  *coroutines,
		Connections: *connections,
		Threads:     *threads,
		Queue:       *queue,
		ConnInfo:    *conninfo,
		Query:       *query,
		Format:      *format,
		Verbose:     *verbose,
		Listen:      *listen,
		HistoryDir:  *historyDir,
		CPUProfile:  *cpuprofile,
		MemProfile:  *memprofile,
	}

	rep, err := bench.Run(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "benchmark failed: %v\n", err)
		return -1
	}

	out, err := rep.Render(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rendering report failed: %v\n", err)
		return -1
	}
	fmt.Print(out)
	return 0
}
