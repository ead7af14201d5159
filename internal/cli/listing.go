package cli

import (
	"fmt"

	"streamsnip/internal/consts"
	"streamsnip/internal/storage"
	"streamsnip/pkg/calc"
	"streamsnip/pkg/urls"

	"github.com/spf13/cobra"
)

func (c *CLI) clipsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clips URL",
		Short: "List the clips of a video with their cut windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, clips, err := c.fetchClips(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			for i, clip := range clips {
				w := clip.Window(c.flags.pad, consts.DefaultDelay)
				c.println(fmt.Sprintf("%d) %s [ID:%s] %d-%d (%ds) %s", i+1, clip.Message, clip.ID,
					w.Start, w.End, w.Seconds(), storage.OutputPath(c.cfg.Dir.Clips, clip, w, c.cfg.Engine.Container)))
			}

			return nil
		},
	}
}

func (c *CLI) formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats URL",
		Short: "List the formats that can be passed to --format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			if id, err := urls.VideoID(source); err == nil {
				source = urls.WatchURL(id)
			}

			formats, err := c.rt.Formats.Get(cmd.Context(), source)
			if err != nil {
				return err
			}

			for _, f := range formats {
				size := "-"
				if f.Filesize > 0 {
					size = calc.Bytes(f.Filesize)
				}

				c.println(fmt.Sprintf("%-6s %-5s %-12s %-10s %s", f.ID, f.Extension, f.Note, f.Resolution, size))
			}

			return nil
		},
	}
}
