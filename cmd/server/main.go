package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ButyrinIA/community/internal/config"
	"github.com/ButyrinIA/community/internal/server"
	"github.com/ButyrinIA/community/internal/storage"
	"github.com/ButyrinIA/community/internal/storage/memory"
	"github.com/ButyrinIA/community/internal/storage/postgres"
	"github.com/golang/glog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	storageType := flag.String("storage", "memory", "storage backend: memory or postgres")
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load(*configPath)
	if err != nil {
		glog.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		glog.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Storage
	switch *storageType {
	case "postgres":
		glog.Infof("using postgres storage")
		store, err = postgres.New(cfg.Postgres.DSN)
		if err != nil {
			glog.Fatalf("init postgres: %v", err)
		}
	case "memory":
		glog.Infof("using memory storage")
		store = memory.New()
	default:
		glog.Fatalf("unknown storage type: %s", *storageType)
	}
	defer store.Close()

	srv := server.New(cfg, store)
	if err := srv.Run(ctx); err != nil {
		glog.Errorf("server: %v", err)
		return
	}
	glog.Infof("server stopped")
}
