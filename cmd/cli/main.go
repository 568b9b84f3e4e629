// Command ek is a CLI client for the event-keeper service. It keeps a local
// change-tracking session per event and pushes only what changed.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc/status"

	"github.com/and161185/event-keeper/internal/client"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "ek",
		Usage:   "edit event documents and push incremental changes",
		Version: fmt.Sprintf("%s (%s)", version, buildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:8443", Usage: "server addr", EnvVars: []string{"EK_ADDR"}},
			&cli.StringFlag{Name: "cacert", Usage: "CA cert (PEM)", EnvVars: []string{"EK_CACERT"}},
			&cli.BoolFlag{Name: "insecure", Usage: "skip cert verify (dev)"},
			&cli.BoolFlag{Name: "plaintext", Usage: "no TLS (local dev server)", EnvVars: []string{"EK_PLAINTEXT"}},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "per-command RPC timeout"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored output", EnvVars: []string{"NO_COLOR"}},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Commands: []*cli.Command{
			tokenCommand(),
			getCommand(),
			editCommand(),
			diffCommand(),
			pushCommand(),
			saveCommand(),
			historyCommand(),
			statusCommand(),
		},
	}
}

// main loads .env and dispatches subcommands.
func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fail(err)
	}
}

// dial connects with the saved token.
func dial(c *cli.Context) (*client.Client, context.Context, context.CancelFunc, error) {
	token, err := loadToken()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	cl, err := client.Dial(ctx, c.String("addr"), client.Options{
		Token:     token,
		CAPath:    c.String("cacert"),
		Insecure:  c.Bool("insecure"),
		Plaintext: c.Bool("plaintext"),
	})
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return cl, ctx, cancel, nil
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
