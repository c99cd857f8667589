package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/friendnet-labs/friendsync/clients"
	"github.com/friendnet-labs/friendsync/config"
	"github.com/friendnet-labs/friendsync/discovery"
	"github.com/friendnet-labs/friendsync/parser"
)

// discover prints the ranked feed candidates for a seed URL. It is the
// out-of-band entry point used when a user supplies a new site to follow.
func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: discover <seed-url>")
		os.Exit(2)
	}
	seedUrl := flag.Arg(0)

	cfg := config.Load()
	client := clients.NewDefaultHttpClient(cfg.UserAgent, parser.MaxFeedRedirects)

	registry := parser.NewRegistry()
	registry.Register(parser.NewRssParser(client))
	registry.Register(parser.NewNativeParser(client))

	d := discovery.NewDiscoverer(registry, cfg)
	candidates := d.DiscoverFeeds(context.Background(), seedUrl)
	if len(candidates) == 0 {
		fmt.Println("no feeds found")
		return
	}

	for _, candidate := range discovery.Rank(candidates) {
		marker := " "
		if candidate.Autoselect {
			marker = "*"
		}
		fmt.Printf("%s %-3d %-14s %-10s %s (%s)\n",
			marker, candidate.Confidence, candidate.ParserSlug, candidate.Rel, candidate.Url, candidate.Title)
	}
}
