package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LJTian/PttHub/internal/app"
	"github.com/LJTian/PttHub/internal/config"
)

type rootOptions struct {
	cfgFile  string
	output   string
	useCache bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "pttctl",
		Short:         "PTT scraper CLI",
		Long:          "Fetch PTT boards, articles, previews and aggregated views from the command line.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unsupported output %q (json|yaml)", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: $"+config.ConfigEnv+")")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format: json|yaml")
	root.PersistentFlags().BoolVar(&opts.useCache, "cache", false, "read and write the redis cache configured by redis_addr")

	root.AddCommand(
		newListCmd(opts),
		newArticleCmd(opts),
		newPreviewsCmd(opts),
		newHotCmd(opts),
		newGalleryCmd(opts),
		newFeedCmd(opts),
		newImageCmd(opts),
	)
	return root
}

// build 加载配置并组装服务；命令行默认不走缓存，保证拿到的是实时数据
func (o *rootOptions) build() (*app.App, error) {
	load := config.Load
	if o.cfgFile != "" {
		load = func() (*config.Config, error) { return config.LoadFile(o.cfgFile) }
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, o.useCache), nil
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		// 先转成 JSON 的通用结构，让 YAML 的键名与 json tag 保持一致
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var generic any
		if err := dec.Decode(&generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
}
