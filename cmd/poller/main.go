package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/friendnet-labs/friendsync/clients"
	"github.com/friendnet-labs/friendsync/config"
	"github.com/friendnet-labs/friendsync/ingest"
	"github.com/friendnet-labs/friendsync/parser"
	"github.com/friendnet-labs/friendsync/scheduler"
	"github.com/friendnet-labs/friendsync/storage"
	Logger "github.com/friendnet-labs/friendsync/utils/log"
)

var (
	tick = flag.Duration("tick", time.Minute, "how often to run a scheduler pass")
	once = flag.Bool("once", false, "run a single pass and exit")
)

func main() {
	flag.Parse()
	cfg := config.Load()

	db, err := storage.ConnectDB(cfg.DatabaseDSN)
	if err != nil {
		Logger.LogV2.Errorf("cannot connect to database: ", err)
		os.Exit(1)
	}
	store := storage.NewGormStore(db)

	client := clients.NewDefaultHttpClient(cfg.UserAgent, parser.MaxFeedRedirects)
	registry := parser.NewRegistry()
	registry.Register(parser.NewRssParser(client))
	registry.Register(parser.NewNativeParser(client))

	sinks := []ingest.RetrievalSink{ingest.NewLogSink()}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, ingest.NewWebhookSink(cfg.WebhookURL, cfg.UserAgent))
	}
	processor := ingest.NewProcessor(store, cfg, sinks...)
	sched := scheduler.NewScheduler(store, registry, processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		if err := sched.RunPass(ctx); err != nil {
			Logger.LogV2.Errorf("scheduler pass failed: ", err)
			os.Exit(1)
		}
		return
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	Logger.LogV2.Info(fmt.Sprintf("poller started, tick %s", *tick))
	ticker := time.NewTicker(*tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			Logger.LogV2.Info("poller stopping")
			return
		case <-ticker.C:
			if err := sched.RunPass(ctx); err != nil {
				Logger.LogV2.Errorf("scheduler pass failed: ", err)
			}
		}
	}
}
