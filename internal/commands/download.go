package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-netkit/httpclient"
	"github.com/gaborage/go-netkit/request"
)

// DownloadOptions holds options for the download command.
type DownloadOptions struct {
	RequestOptions
	Force    bool
	Progress bool
}

// NewDownloadCommand creates the download command.
func NewDownloadCommand(global *GlobalOptions) *cobra.Command {
	opts := &DownloadOptions{}

	cmd := &cobra.Command{
		Use:   "download URL DESTINATION",
		Short: "Stream a response body into a file",
		Long: `Downloads URL into DESTINATION. The body is written to a temporary file
in the same directory and renamed into place once complete. An existing
DESTINATION is kept unless --force is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, global, func(ctx context.Context, rt *session) error {
				return runDownload(ctx, rt, opts, args[0], args[1], cmd.OutOrStdout())
			})
		},
	}

	opts.bind(cmd)
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Overwrite an existing destination")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Print progress percentages")
	return cmd
}

func runDownload(ctx context.Context, rt *session, opts *DownloadOptions, rawURL, destination string, out io.Writer) error {
	d, err := opts.descriptor(request.MethodGet, rawURL)
	if err != nil {
		return err
	}

	dl := httpclient.DownloadOptions{Force: opts.Force}
	if opts.Progress {
		last := -1
		dl.Progress = func(fraction float64) {
			if pct := int(fraction * 100); pct/10 != last/10 {
				last = pct
				fmt.Fprintf(out, "%3d%%\n", pct)
			}
		}
	}

	_, statErr := os.Stat(destination)
	existed := statErr == nil

	n, err := rt.manager.Download(ctx, d, destination, dl)
	if err != nil {
		return err
	}
	if existed && !opts.Force {
		fmt.Fprintf(out, "%s exists, skipped\n", destination)
		return nil
	}
	fmt.Fprintf(out, "wrote %d bytes to %s\n", n, destination)
	return nil
}
