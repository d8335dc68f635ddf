package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/robots"
	"github.com/spf13/cobra"
)

// NewRobotsCmd creates the robots command.
func NewRobotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "robots [flags] <url>",
		Short: "Show the robots.txt policy that applies to a URL",
		Long: `Robots retrieves the robots.txt policy of the URL's host and prints its
groups, crawl delays and sitemaps, and whether the user agent may fetch
the URL.

A robots.txt that does not exist allows everything. One that cannot be
retrieved (5xx, 429 or network failure) denies everything until it can.

Examples:
  # Show the policy for a URL
  politecrawl robots https://example.com/private/page

  # Check the decision for another user agent
  politecrawl robots -u Googlebot https://example.com/search?q=go`,
		Args: cobra.ExactArgs(1),
		RunE: runRobotsCmd,
	}

	addFetchFlags(cmd)
	return cmd
}

// robotsView is the output of the robots command.
type robotsView struct {
	URL        string      `json:"url"`
	Host       string      `json:"host"`
	Source     string      `json:"source"`
	FetchedAt  time.Time   `json:"fetched_at,omitzero"`
	TTL        string      `json:"ttl"`
	UserAgent  string      `json:"user_agent"`
	Allowed    bool        `json:"allowed"`
	CrawlDelay string      `json:"crawl_delay,omitempty"`
	Groups     []groupView `json:"groups"`
	Sitemaps   []string    `json:"sitemaps"`
}

type groupView struct {
	Agents     []string   `json:"agents"`
	CrawlDelay string     `json:"crawl_delay,omitempty"`
	Rules      []ruleView `json:"rules"`
}

type ruleView struct {
	Directive string `json:"directive"`
	Path      string `json:"path"`
}

// runRobotsCmd executes the robots command.
func runRobotsCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	u, _, err := crawler.ResolveURL(args[0])
	if err != nil {
		return err
	}

	eng, err := a.networkEngine(ctx)
	if err != nil {
		return err
	}
	policy, err := eng.Robots(ctx, u.String())
	if err != nil {
		return fmt.Errorf("failed to get robots.txt policy: %w", err)
	}

	view := newRobotsView(u.String(), crawler.RequestPath(u), a.cfg.UserAgent, policy)

	out, err := a.output()
	if err != nil {
		return err
	}

	if a.cfg.JSONReport {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printRobotsView(out, view)
	return nil
}

func newRobotsView(rawURL, path, agent string, p *robots.Policy) robotsView {
	v := robotsView{
		URL:       rawURL,
		Host:      p.Host,
		Source:    string(p.Source),
		FetchedAt: p.FetchedAt,
		TTL:       p.TTL.String(),
		UserAgent: agent,
		Allowed:   p.IsAllowed(path, agent),
		Groups:    make([]groupView, 0, len(p.Groups)),
		Sitemaps:  p.Sitemaps,
	}
	if d, ok := p.CrawlDelay(agent); ok {
		v.CrawlDelay = d.String()
	}
	for _, g := range p.Groups {
		gv := groupView{Agents: g.Agents, Rules: make([]ruleView, 0, len(g.Rules))}
		if g.HasCrawlDelay {
			gv.CrawlDelay = g.CrawlDelay.String()
		}
		for _, r := range g.Rules {
			gv.Rules = append(gv.Rules, ruleView{Directive: r.Directive.String(), Path: r.Path})
		}
		v.Groups = append(v.Groups, gv)
	}
	if v.Sitemaps == nil {
		v.Sitemaps = []string{}
	}
	return v
}

func printRobotsView(w io.Writer, v robotsView) {
	fmt.Fprintf(w, "Host:       %s\n", v.Host)
	fmt.Fprintf(w, "Source:     %s\n", v.Source)
	if !v.FetchedAt.IsZero() {
		fmt.Fprintf(w, "Fetched:    %s\n", v.FetchedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "TTL:        %s\n", v.TTL)
	fmt.Fprintln(w)

	decision := "allowed"
	if !v.Allowed {
		decision = "disallowed"
	}
	fmt.Fprintf(w, "%s is %s for %q\n", v.URL, decision, v.UserAgent)
	if v.CrawlDelay != "" {
		fmt.Fprintf(w, "Crawl-delay for %q: %s\n", v.UserAgent, v.CrawlDelay)
	}

	if len(v.Groups) > 0 {
		fmt.Fprintln(w, "\nGroups:")
		for _, g := range v.Groups {
			fmt.Fprintf(w, "  User-agent: %v\n", g.Agents)
			if g.CrawlDelay != "" {
				fmt.Fprintf(w, "    Crawl-delay: %s\n", g.CrawlDelay)
			}
			for _, r := range g.Rules {
				fmt.Fprintf(w, "    %-9s %s\n", r.Directive+":", r.Path)
			}
		}
	}

	if len(v.Sitemaps) > 0 {
		fmt.Fprintln(w, "\nSitemaps:")
		for _, s := range v.Sitemaps {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
}
