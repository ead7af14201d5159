// Package cli wires the streamsnip command line: an interactive clip session,
// a one-shot batch mode and the clips and formats listings.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"streamsnip/internal/config"
	"streamsnip/internal/entity"
	"streamsnip/internal/service"
	"streamsnip/pkg/ansi"

	"github.com/spf13/cobra"
)

// ErrBatchFailed is returned when at least one clip failed. The failures were already printed.
var ErrBatchFailed = errors.New("some clips failed")

// ClipSource lists the clips recorded for a video.
type ClipSource interface {
	Fetch(ctx context.Context, videoID string) ([]entity.Clip, error)
}

// FormatSource lists the selectable formats of a video.
type FormatSource interface {
	Get(ctx context.Context, source string) ([]entity.Format, error)
}

// Runtime holds the collaborators a command runs against.
type Runtime struct {
	Log      *slog.Logger
	Clips    ClipSource
	Formats  FormatSource
	Clipper  service.Clipper
	Shutdown func()
}

// Factory builds the runtime once flags have been applied to cfg.
type Factory func(ctx context.Context, cfg *config.Config) (*Runtime, error)

// Streams are the terminal streams of a run.
type Streams struct {
	In  io.Reader
	Out ansi.Terminal
	Err io.Writer
}

type batchFlags struct {
	selection string
	pad       float64
	formatID  string
	container string
	keyframes bool
	proxies   string
}

// CLI is one invocation of the streamsnip command.
type CLI struct {
	cfg     *config.Config
	factory Factory
	streams Streams
	painter ansi.Painter

	flags batchFlags
	rt    *Runtime
}

// New creates the command line. Flags write into cfg.
func New(cfg *config.Config, factory Factory, streams Streams) *CLI {
	return &CLI{
		cfg:     cfg,
		factory: factory,
		streams: streams,
		painter: ansi.Painter{Enabled: streams.Out.TTY && cfg.Display.Colors()},
	}
}

// Execute runs the command with args and releases the runtime afterwards.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	cmd := c.Command()
	cmd.SetArgs(args)
	cmd.SetIn(c.streams.In)
	cmd.SetOut(c.streams.Out.Out)
	cmd.SetErr(c.streams.Err)

	err := cmd.ExecuteContext(ctx)

	if c.rt != nil && c.rt.Shutdown != nil {
		c.rt.Shutdown()
	}

	if err != nil && !errors.Is(err, ErrBatchFailed) {
		fmt.Fprintln(c.streams.Err, c.painter.Error("%v", err))
	}

	return err
}

// Command builds the cobra command tree.
func (c *CLI) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "streamsnip [URL]",
		Short: "Cut community clips out of YouTube streams",
		Long: `Fetches the clips recorded for a stream and cuts them out of the video.
Without --select the session is interactive and asks for URLs until q is entered.`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE:              c.runRoot,
	}

	pf := root.PersistentFlags()
	pf.Float64Var(&c.flags.pad, "pad", 0, "seconds added before and after every clip")
	pf.IntVarP(&c.cfg.Job.Workers, "workers", "w", c.cfg.Job.Workers, "clips downloaded at once")
	pf.StringVarP(&c.cfg.Dir.Clips, "dir", "d", c.cfg.Dir.Clips, "root directory for clips")
	pf.StringVar(&c.cfg.API.Endpoint, "endpoint", c.cfg.API.Endpoint, "clip metadata endpoint")
	pf.StringVar(&c.cfg.App.LogLevel, "log-level", c.cfg.App.LogLevel, "debug, info, warn or error")
	pf.StringVar(&c.flags.proxies, "proxy", "", "comma-separated proxy URLs for the engine")

	f := root.Flags()
	f.StringVarP(&c.flags.selection, "select", "s", "", `clip numbers, e.g. "1,3-5" or "*"; skips the prompts`)
	f.StringVarP(&c.flags.formatID, "format", "f", "", "format id from the formats listing")
	f.StringVarP(&c.flags.container, "container", "c", c.cfg.Engine.Container, "output extension without a custom format")
	f.BoolVar(&c.flags.keyframes, "keyframes", false, "force keyframes at the cut points")

	root.AddCommand(c.clipsCommand(), c.formatsCommand())

	return root
}

// setup applies flag-only settings and builds the runtime.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("proxy") {
		c.cfg.Proxy.SetList(c.flags.proxies)
	}

	rt, err := c.factory(cmd.Context(), c.cfg)
	if err != nil {
		return err
	}

	c.rt = rt

	return nil
}

func (c *CLI) runRoot(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("select") {
		if len(args) == 0 {
			return errors.New("--select needs a URL")
		}

		return c.runOnce(cmd.Context(), args[0])
	}

	var first string
	if len(args) == 1 {
		first = args[0]
	}

	return c.interactive(cmd.Context(), first)
}
