package main

import (
	"github.com/nao1215/politecrawl/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// addFetchFlags registers the flags shared by commands that send requests.
func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User agent sent with requests and matched against robots.txt")
	cmd.Flags().Duration("min-delay", config.DefaultMinDelay,
		"Minimum delay between requests to the same host")
	cmd.Flags().Duration("max-wait", config.DefaultMaxWait,
		"Longest time a request waits for its rate limit slot")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent workers")
	cmd.Flags().StringP("proxy", "x", "",
		"Send requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("embedded-tor", false,
		"Start an embedded Tor daemon and send requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
}

// applyFlags overlays explicitly set flags on cfg. Flags left at their
// defaults do not override the configuration file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	set := func(name string, apply func(f *pflag.FlagSet) error) {
		if err != nil {
			return
		}
		if f := flags.Lookup(name); f != nil && f.Changed {
			err = apply(flags)
		}
	}

	set("verbose", func(f *pflag.FlagSet) (e error) { cfg.Verbose, e = f.GetBool("verbose"); return })
	set("json", func(f *pflag.FlagSet) (e error) { cfg.JSONReport, e = f.GetBool("json"); return })
	set("markdown", func(f *pflag.FlagSet) (e error) { cfg.MarkdownReport, e = f.GetBool("markdown"); return })
	set("output", func(f *pflag.FlagSet) (e error) { cfg.ReportFile, e = f.GetString("output"); return })
	set("db-dir", func(f *pflag.FlagSet) (e error) { cfg.DBDir, e = f.GetString("db-dir"); return })
	set("metrics-addr", func(f *pflag.FlagSet) (e error) { cfg.MetricsAddr, e = f.GetString("metrics-addr"); return })
	set("user-agent", func(f *pflag.FlagSet) (e error) { cfg.UserAgent, e = f.GetString("user-agent"); return })
	set("min-delay", func(f *pflag.FlagSet) (e error) { cfg.MinDelay, e = f.GetDuration("min-delay"); return })
	set("max-wait", func(f *pflag.FlagSet) (e error) { cfg.MaxWait, e = f.GetDuration("max-wait"); return })
	set("timeout", func(f *pflag.FlagSet) (e error) { cfg.RequestTimeout, e = f.GetDuration("timeout"); return })
	set("workers", func(f *pflag.FlagSet) (e error) { cfg.Workers, e = f.GetInt("workers"); return })
	set("proxy", func(f *pflag.FlagSet) (e error) { cfg.ProxyAddress, e = f.GetString("proxy"); return })
	set("embedded-tor", func(f *pflag.FlagSet) (e error) { cfg.EmbeddedTor, e = f.GetBool("embedded-tor"); return })
	set("tor-timeout", func(f *pflag.FlagSet) (e error) { cfg.TorStartupTimeout, e = f.GetDuration("tor-timeout"); return })
	set("depth", func(f *pflag.FlagSet) (e error) { cfg.CrawlDepth, e = f.GetInt("depth"); return })
	set("max-pages", func(f *pflag.FlagSet) (e error) { cfg.MaxPages, e = f.GetInt("max-pages"); return })

	// The embedded daemon replaces any proxy from the configuration file.
	if err == nil && cfg.EmbeddedTor && !flags.Changed("proxy") {
		cfg.ProxyAddress = ""
	}
	return err
}

// stringFlag returns a string flag, or "" when the command does not define it.
func stringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	return cmd.Flags().GetString(name)
}
