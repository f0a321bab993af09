// Command shmdf-buffer runs a single pkg/buffer.Buffer between two
// addresses named in its topology config, rate-decoupling a fast
// producer from a slow consumer (spec §4.5).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/oatfabric/shmdf/internal/logx"
	"github.com/oatfabric/shmdf/internal/topology"
	"github.com/oatfabric/shmdf/pkg/buffer"
	"github.com/oatfabric/shmdf/pkg/health"
)

var log = logx.New("shmdf-buffer", os.Stderr)

func main() {
	configPath := flag.String("config", "shmdf-buffer.yaml", "path to the topology YAML config")
	flag.Parse()

	cfg, err := topology.Load(*configPath)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	if len(cfg.Sources) != 1 || cfg.Sink == nil {
		log.Errorf("config %s must name exactly one upstream source and one downstream sink", *configPath)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buf, err := buffer.New(ctx, cfg.Sources[0], cfg.Sink.Address, nil)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	defer func() {
		if err := buf.Close(); err != nil {
			log.Warnf("close: %v", err)
		}
	}()

	if cfg.HealthAddr != "" {
		h := health.NewHandler(10000)
		go func() {
			if err := http.ListenAndServe(cfg.HealthAddr, h); err != nil {
				log.Warnf("health server: %v", err)
			}
		}()
	}

	if err := buf.Run(ctx); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stdout, "buffer exited cleanly")
}
