package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/LJTian/PttHub/internal/service"
)

const commandTimeout = 2 * time.Minute

// runWith 组装服务并在带超时的 context 中执行 fn，结果按 --output 输出
func runWith(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, svc *service.Service) (any, error)) error {
	a, err := opts.build()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	v, err := fn(ctx, a.Service)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), opts.output, v)
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var pageURL string
	cmd := &cobra.Command{
		Use:   "list [board]",
		Short: "List articles of a board (default Gossiping)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			board := "Gossiping"
			if len(args) == 1 {
				board = args[0]
			}
			return runWith(cmd, opts, func(ctx context.Context, svc *service.Service) (any, error) {
				return svc.GetList(ctx, board, pageURL)
			})
		},
	}
	cmd.Flags().StringVar(&pageURL, "page-url", "", "continue from a prev_page_link returned by an earlier call")
	return cmd
}

func newArticleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "article <url>",
		Short: "Fetch a full article with pushes and media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, opts, func(ctx context.Context, svc *service.Service) (any, error) {
				return svc.GetDetail(ctx, args[0])
			})
		},
	}
}

func newPreviewsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "previews <url>...",
		Short: "Fetch previews for several articles concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, opts, func(ctx context.Context, svc *service.Service) (any, error) {
				return svc.GetPreviewBatch(ctx, args), nil
			})
		},
	}
}

func newHotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hot",
		Short: "Recent articles across the hot boards ranked by push score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, opts, func(ctx context.Context, svc *service.Service) (any, error) {
				return svc.GetHot(ctx)
			})
		},
	}
}

func newGalleryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gallery",
		Short: "Image and video highlights from the gallery boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, opts, func(ctx context.Context, svc *service.Service) (any, error) {
				return svc.GetGallery(ctx)
			})
		},
	}
}

func newFeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "feed <board>",
		Short: "Read the board's Atom feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, opts, func(ctx context.Context, svc *service.Service) (any, error) {
				return svc.GetFeed(ctx, args[0])
			})
		},
	}
}

func newImageCmd(opts *rootOptions) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "image <url>",
		Short: "Download an image through the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			body, contentType, err := a.Service.RelayImage(ctx, args[0])
			if err != nil {
				return err
			}
			defer body.Close()

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := io.Copy(w, body)
			if err != nil {
				return err
			}
			if outFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %s (%s, %d bytes)\n", outFile, contentType, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "file", "f", "", "write the image to this file instead of stdout")
	return cmd
}
