package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	env := &environment{stdin: stdin, stdout: stdout, stderr: stderr}

	var err error
	switch command := args[0]; command {
	case "keygen":
		err = runKeygen(args[1:], env)
	case "encrypt":
		err = runEncrypt(ctx, args[1:], env)
	case "decrypt":
		err = runDecrypt(ctx, args[1:], env)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	case "version", "--version", "-v":
		printVersion(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	usage := `Envelope CLI - envelope encryption for files

Usage:
  envelope <command> [options]

Available Commands:
  keygen      Generate a master key file
  encrypt     Encrypt a file into a sealed record
  decrypt     Decrypt a sealed record
  help        Show this help message
  version     Show version information

Common Flags:
  --config PATH     YAML config file
  --key-file PATH   Master key file (overrides config and ENVELOPE_KEY_FILE)

Examples:
  # Create a master key
  envelope keygen --key-file=master.json

  # Encrypt and decrypt a file
  envelope encrypt --key-file=master.json --in=notes.txt --out=notes.env
  envelope decrypt --key-file=master.json --in=notes.env --out=notes.txt

Use "envelope <command> --help" for more information about a command.
`
	fmt.Fprint(w, usage)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Envelope CLI v%s\n", version)
}
