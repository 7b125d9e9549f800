// Command server launches one herd member, per spec.md §6: `server
// <ServerName>`. Process launch/stop scripting and the on-disk config
// format's own loading mechanics are out of this repo's scope; this is
// simply the binary that loads config, builds a herd.Member, and runs it
// until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/heitortanoue/serverherd/internal/config"
	"github.com/heitortanoue/serverherd/internal/herd"
	"github.com/heitortanoue/serverherd/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "path to the herd's YAML configuration")
	fs.Usage = func() { printUsage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		printUsage(fs)
		return 2
	}
	name := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		return 1
	}

	view, err := config.NewView(cfg, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		return 1
	}

	w, logFile, err := logging.Open(view.Logging.Filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: open log file: %v\n", err)
		return 1
	}
	if logFile != nil {
		defer logFile.Close()
	}

	member := herd.New(view, w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := member.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := member.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "server: shutdown: %v\n", err)
		return 1
	}
	return 0
}

// defaultConfigPath honors SERVERHERD_CONFIG when set, matching the
// environment-driven config discovery original_source/server.py's
// companion launch scripts used (they exported the path rather than
// passing it as an argument, since the positional argument is reserved
// for the server name per spec.md §6).
func defaultConfigPath() string {
	if p := os.Getenv("SERVERHERD_CONFIG"); p != "" {
		return p
	}
	return "config.yml"
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: %s [-config path] <ServerName>\n\n", os.Args[0])
	fs.PrintDefaults()
}
