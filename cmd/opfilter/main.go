package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: opfilter <command> [flags]

commands:
  run       filter items with a condition and print matches as JSON lines
  validate  check a condition document
  explain   draw a condition tree, optionally evaluated against a sample item
  import    load entities into the entity store
  version   print the version
`

// errInvalid signals a failure already reported to the user.
var errInvalid = errors.New("invalid")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg.apply()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		err = runFilter(ctx, cfg, rest, stdin, stdout, stderr)
	case "validate":
		err = runValidate(ctx, cfg, rest, stdin, stdout, stderr)
	case "explain":
		err = runExplain(ctx, cfg, rest, stdin, stdout, stderr)
	case "import":
		err = runImport(ctx, cfg, rest, stdin, stdout, stderr)
	case "version":
		printVersion(stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errInvalid):
		return 1
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}
