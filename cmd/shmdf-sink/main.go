// Command shmdf-sink binds one node and publishes synthetic samples at
// a configured rate, standing in for a real producer (a camera driver,
// a position-detection process) in examples and integration tests.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/oatfabric/shmdf/internal/logx"
	"github.com/oatfabric/shmdf/internal/topology"
	"github.com/oatfabric/shmdf/pkg/component"
	"github.com/oatfabric/shmdf/pkg/health"
	"github.com/oatfabric/shmdf/pkg/node"
)

var log = logx.New("shmdf-sink", os.Stderr)

type sinkParticipant struct {
	cfg     topology.SinkConfig
	sink    *node.Sink
	counter byte
}

func (p *sinkParticipant) Connect(ctx context.Context) error {
	desc, err := p.cfg.Descriptor.Descriptor()
	if err != nil {
		return err
	}
	sink, err := node.Bind(ctx, p.cfg.Address, desc, nil)
	if err != nil {
		return err
	}
	p.sink = sink
	return nil
}

func (p *sinkParticipant) Process(ctx context.Context) (node.NodeState, error) {
	if err := p.sink.Wait(ctx); err != nil {
		return node.StateRunning, err
	}
	buf, err := p.sink.Retrieve()
	if err != nil {
		return node.StateRunning, err
	}
	for i := range buf {
		buf[i] = p.counter
	}
	p.counter++
	if err := p.sink.Post(ctx); err != nil {
		return node.StateRunning, err
	}

	select {
	case <-ctx.Done():
		return node.StateEndReached, nil
	case <-time.After(p.cfg.Interval()):
	}
	return node.StateRunning, nil
}

func (p *sinkParticipant) Close() error {
	if p.sink == nil {
		return nil
	}
	return p.sink.Close()
}

func main() {
	configPath := flag.String("config", "shmdf-sink.yaml", "path to the topology YAML config")
	flag.Parse()

	cfg, err := topology.Load(*configPath)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	if cfg.Sink == nil {
		log.Errorf("config %s has no sink section", *configPath)
		os.Exit(1)
	}

	p := &sinkParticipant{cfg: *cfg.Sink}

	if cfg.HealthAddr != "" {
		h := health.NewHandler(10000, health.Endpoint{
			Name:     cfg.Sink.Address,
			Poisoned: func() bool { return p.sink != nil && p.sink.Poisoned() },
		})
		go func() {
			if err := http.ListenAndServe(cfg.HealthAddr, h); err != nil {
				log.Warnf("health server: %v", err)
			}
		}()
	}

	if err := component.Run(context.Background(), p); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
