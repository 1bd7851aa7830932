package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erwinvanhunen/presentink/src/commands"
	"github.com/erwinvanhunen/presentink/src/macro"
	"github.com/erwinvanhunen/presentink/src/monitor"
)

func (c *cli) newMonitorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitors",
		Short: "List connected monitors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, commands.Request{Command: commands.ListMonitors}, renderMonitors)
		},
	}
}

func renderMonitors(w io.Writer, resp commands.Response) error {
	var descs []monitor.Descriptor
	if err := decodeData(resp, &descs); err != nil {
		return fmt.Errorf("unexpected monitor list: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tX\tY\tWIDTH\tHEIGHT\tSCALE")
	for _, d := range descs {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%.2f\n", d.Index, d.X, d.Y, d.Width, d.Height, d.ScaleFactor)
	}
	return tw.Flush()
}

func (c *cli) newCaptureCmd() *cobra.Command {
	var a commands.TakeRegionScreenshotArgs
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a region of a monitor to a file (--out) or the clipboard",
		Long: "Capture a region given in logical pixels relative to the monitor origin.\n" +
			"With --out the image is written to that path (.png, .bmp, .tif); otherwise it goes to the clipboard.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.Save = a.Path != ""
			req, err := commands.NewRequest(commands.TakeRegionScreenshot, a)
			if err != nil {
				return err
			}
			return c.run(cmd, req, nil)
		},
	}
	f := cmd.Flags()
	f.Uint32VarP(&a.MonitorIndex, "monitor", "m", 0, "Monitor index (see 'presentctl monitors')")
	f.IntVar(&a.X, "x", 0, "Left edge")
	f.IntVar(&a.Y, "y", 0, "Top edge")
	f.IntVar(&a.Width, "width", 0, "Region width")
	f.IntVar(&a.Height, "height", 0, "Region height")
	f.StringVarP(&a.Path, "out", "o", "", "Write the image to this file instead of the clipboard")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func (c *cli) newTypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "type TEXT...",
		Short: "Type text, interpreting [left] [right] [up] [down] [enter] and [pause:N]",
		Long:  "Type text into the focused window. Use '-' to read the text from stdin.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := joinArgs(args, c.stdin)
			if err != nil {
				return err
			}
			req, err := commands.NewRequest(commands.TypeText, commands.TypeTextArgs{Text: text})
			if err != nil {
				return err
			}
			return c.run(cmd, req, nil)
		},
	}
}

func (c *cli) newNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Type the next segment of the resident's script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, commands.Request{Command: commands.TypeNext}, nil)
		},
	}
}

// newLexCmd never delegates: lexing is pure.
func (c *cli) newLexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lex TEXT...",
		Short: "Show the tokens a macro text produces without typing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := joinArgs(args, c.stdin)
			if err != nil {
				return err
			}
			tokens := macro.Lex(text)
			if c.opts.jsonOutput {
				out := make([]string, len(tokens))
				for i, t := range tokens {
					out[i] = t.String()
				}
				return writeJSON(c.stdout, out)
			}
			for _, t := range tokens {
				fmt.Fprintln(c.stdout, t.String())
			}
			return nil
		},
	}
}

func (c *cli) newScreenshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "screenshot",
		Short: "Open the region selection overlays on every monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, commands.Request{Command: commands.StartScreenshot}, nil)
		},
	}
}

func (c *cli) newCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close every screenshot overlay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, commands.Request{Command: commands.CloseScreenshotWindows}, nil)
		},
	}
}

func (c *cli) newDrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Start or stop drawing mode",
	}
	for _, sub := range []struct{ use, command, short string }{
		{"start", commands.StartDraw, "Enter drawing mode"},
		{"stop", commands.StopDraw, "Leave drawing mode"},
	} {
		command := sub.command
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd, commands.Request{Command: command}, nil)
			},
		})
	}
	return cmd
}

func (c *cli) newTrayIconCmd() *cobra.Command {
	var a commands.ChangeTrayIconArgs
	cmd := &cobra.Command{
		Use:   "tray-icon",
		Short: "Change the tray icon to reflect a pen color",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := commands.NewRequest(commands.ChangeTrayIcon, a)
			if err != nil {
				return err
			}
			return c.run(cmd, req, nil)
		},
	}
	cmd.Flags().StringVar(&a.Color, "color", "", "Pen color, e.g. #ff0000")
	cmd.Flags().BoolVar(&a.IsDrawing, "drawing", false, "Whether drawing mode is active")
	return cmd
}

func (c *cli) newBreakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "break",
		Short: "Show the break countdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, commands.Request{Command: commands.ShowBreakTime}, nil)
		},
	}
}
