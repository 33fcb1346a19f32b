// Command condacore is a thin command-line front end over the condacore
// library: it resolves repodata, runs the solver, and lists a prefix's
// installed packages. It owns process concerns only (flags,
// signals, exit codes); every operation it performs is implemented by the
// condacore packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/condacore/conda-core/internal/config"
)

type commonConfig struct {
	cfg        *config.Context
	prefix     string
	repoCache  string
}

type subcmd func(context.Context, *commonConfig, []string) error

func main() {
	var exit int
	defer func() {
		if exit != 0 {
			os.Exit(exit)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var cc commonConfig
	fs := flag.NewFlagSet("condacore", flag.ExitOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintln(out, "\nSubcommands")
		fmt.Fprintln(out, "\tsolve\trun the dependency solver against a set of specs")
		fmt.Fprintln(out, "\tlist\tlist a prefix's installed packages")
	}

	configPath := fs.String("config", "", "path to a condarc-style YAML configuration file")
	fs.StringVar(&cc.prefix, "p", "", "target prefix")
	fs.StringVar(&cc.repoCache, "repodata-cache", "", "sqlite database path for the repodata cache (default: in-memory)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	var err error
	cc.cfg, err = config.Load(*configPath, os.Environ())
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	var cmd subcmd
	switch n := fs.Arg(0); n {
	case "solve":
		cmd = Solve
	case "list":
		cmd = List
	case "":
		fs.Usage()
		os.Exit(99)
	default:
		fs.Usage()
		fmt.Fprintf(os.Stderr, "\nunknown subcommand %q\n", n)
		os.Exit(99)
	}

	if err := cmd(ctx, &cc, fs.Args()[1:]); err != nil {
		log.Print(err)
		exit = 1
	}
}
