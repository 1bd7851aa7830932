package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/erwinvanhunen/presentink/src/commands"
	"github.com/erwinvanhunen/presentink/src/config"
	"github.com/erwinvanhunen/presentink/src/logutil"
	"github.com/erwinvanhunen/presentink/src/singleinstance"
)

type cliOptions struct {
	jsonOutput bool
	verbose    bool
	standalone bool
	envPath    string
	timeout    time.Duration
}

// localFactory builds an in-process service able to run command.
type localFactory func(opts cliOptions, command string) (*commands.Service, error)

type cli struct {
	opts   cliOptions
	client singleinstance.Client
	local  localFactory
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	c := &cli{
		client: singleinstance.NewClient(),
		local:  standaloneService,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	if err := c.newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "presentctl",
		Short:         "Control a running PresentInk, or run its capture and typing engines directly",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "error"
			if c.opts.verbose {
				level = "debug"
			}
			logutil.Setup(level, false)
			// Load .env so SINGLEINSTANCE_PORT_* apply before the resident scan
			_, err := config.LoadWithOptions(config.LoadOptions{EnvPathOverride: c.opts.envPath})
			return err
		},
	}
	cmd.SetIn(c.stdin)
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)

	pf := cmd.PersistentFlags()
	pf.BoolVar(&c.opts.jsonOutput, "json", false, "Output results as JSON")
	pf.BoolVarP(&c.opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	pf.BoolVar(&c.opts.standalone, "standalone", false, "Never delegate to a running PresentInk")
	pf.StringVar(&c.opts.envPath, "env", "", "Path to .env file (highest precedence)")
	pf.DurationVar(&c.opts.timeout, "timeout", 0, "Give up after this long (0 waits for the command)")

	cmd.AddCommand(
		c.newMonitorsCmd(),
		c.newCaptureCmd(),
		c.newTypeCmd(),
		c.newNextCmd(),
		c.newLexCmd(),
		c.newScreenshotCmd(),
		c.newCloseCmd(),
		c.newDrawCmd(),
		c.newTrayIconCmd(),
		c.newBreakCmd(),
	)
	return cmd
}

func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.opts.timeout > 0 {
		return context.WithTimeout(ctx, c.opts.timeout)
	}
	return context.WithCancel(ctx)
}

// execute delegates req to the resident when one answers, otherwise runs
// it in-process.
func (c *cli) execute(ctx context.Context, req commands.Request) (commands.Response, error) {
	if !c.opts.standalone {
		delivered, resp, err := c.client.Send(ctx, req)
		if err != nil {
			return commands.Response{}, fmt.Errorf("resident did not answer: %w", err)
		}
		if delivered {
			c.verbosef("delegated %s to resident", req.Command)
			return resp, nil
		}
		c.verbosef("no resident detected, running %s standalone", req.Command)
	}
	svc, err := c.local(c.opts, req.Command)
	if err != nil {
		return commands.Response{}, err
	}
	return svc.Dispatch(ctx, req), nil
}

// run executes req and prints the outcome. render prints successful data
// in text mode; nil prints "ok".
func (c *cli) run(cmd *cobra.Command, req commands.Request, render func(w io.Writer, resp commands.Response) error) error {
	ctx, cancel := c.context(cmd)
	defer cancel()
	resp, err := c.execute(ctx, req)
	if err != nil {
		return err
	}
	if c.opts.jsonOutput {
		if err := writeJSON(c.stdout, resp); err != nil {
			return err
		}
		if !resp.OK {
			return responseError(resp)
		}
		return nil
	}
	if !resp.OK {
		return responseError(resp)
	}
	if render != nil {
		return render(c.stdout, resp)
	}
	fmt.Fprintln(c.stdout, "ok")
	return nil
}

func (c *cli) verbosef(format string, args ...any) {
	if c.opts.verbose {
		fmt.Fprintf(c.stderr, "[verbose] "+format+"\n", args...)
	}
}

func responseError(resp commands.Response) error {
	if resp.Code == "" {
		return fmt.Errorf("%s", resp.Error)
	}
	return fmt.Errorf("%s (%s)", resp.Error, resp.Code)
}

// decodeData re-decodes Data into v. Delegated responses carry generic JSON
// values; in-process ones carry typed values.
func decodeData(resp commands.Response, v any) error {
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func joinArgs(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}
	return strings.Join(args, " "), nil
}
