package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

const usage = `tcpfs - TCP binary object store

Usage:
  tcpfs <command> [flags]

Server commands:
  init              Generate a sample configuration file
  start             Start the server
  gc                Run one reconciliation sweep against the configured stores

Client commands:
  ns create         Create a namespace and print its id
  ns delete <ns>    Delete a namespace and everything in it
  put <ns> <path> <file|->
                    Upload a file (or stdin) as <path>
  get <ns> <path> [file]
                    Download <path> to a file (or stdout)
  rm <ns> <path>    Delete an object
  ls <ns> [prefix]  List objects and directories under prefix

Run 'tcpfs <command> --help' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	command, args := os.Args[1], os.Args[2:]

	var err error
	switch command {
	case "init":
		err = runInit(args)
	case "start":
		err = runStart(ctx, args)
	case "gc":
		err = runGC(ctx, args)
	case "ns":
		err = runNamespace(ctx, args)
	case "put":
		err = runPut(ctx, args)
	case "get":
		err = runGet(ctx, args)
	case "rm":
		err = runRemove(ctx, args)
	case "ls":
		err = runList(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set that reports parse errors instead of exiting.
func newFlagSet(name, args string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tcpfs %s %s\n\nFlags:\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}
