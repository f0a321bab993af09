// Command shmdf-source touches one or more nodes and drains every
// sample it sees until each reports end of stream, standing in for a
// real consumer (a viewer, a recorder) in examples and integration
// tests.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/oatfabric/shmdf/internal/logx"
	"github.com/oatfabric/shmdf/internal/topology"
	"github.com/oatfabric/shmdf/pkg/component"
	"github.com/oatfabric/shmdf/pkg/health"
	"github.com/oatfabric/shmdf/pkg/node"
)

var log = logx.New("shmdf-source", os.Stderr)

type sourceParticipant struct {
	addresses []string
	sources   []*node.Source
	received  []uint64
}

func (p *sourceParticipant) Connect(ctx context.Context) error {
	sources, err := component.TouchAll(ctx, nil, p.addresses)
	if err != nil {
		return err
	}
	p.sources = sources
	p.received = make([]uint64, len(sources))
	return nil
}

func (p *sourceParticipant) Process(ctx context.Context) (node.NodeState, error) {
	allEnded := true
	for i, src := range p.sources {
		if src == nil {
			continue
		}
		state, err := src.Wait(ctx)
		if err != nil {
			return node.StateRunning, err
		}
		if state == node.StateEndReached {
			p.sources[i] = nil
			continue
		}
		allEnded = false
		if _, err := src.Retrieve(); err != nil {
			return node.StateRunning, err
		}
		p.received[i]++
		if err := src.Post(ctx); err != nil {
			return node.StateRunning, err
		}
	}
	if allEnded {
		return node.StateEndReached, nil
	}
	return node.StateRunning, nil
}

func (p *sourceParticipant) Close() error {
	var firstErr error
	for i, src := range p.sources {
		if src == nil {
			continue
		}
		log.Infof("source %s received %d samples", p.addresses[i], p.received[i])
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func main() {
	configPath := flag.String("config", "shmdf-source.yaml", "path to the topology YAML config")
	flag.Parse()

	cfg, err := topology.Load(*configPath)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	if len(cfg.Sources) == 0 {
		log.Errorf("config %s has no sources section", *configPath)
		os.Exit(1)
	}

	p := &sourceParticipant{addresses: cfg.Sources}

	if cfg.HealthAddr != "" {
		endpoints := make([]health.Endpoint, len(p.addresses))
		for i, addr := range p.addresses {
			i, addr := i, addr
			endpoints[i] = health.Endpoint{
				Name: addr,
				Poisoned: func() bool {
					return i < len(p.sources) && p.sources[i] != nil && p.sources[i].Poisoned()
				},
			}
		}
		h := health.NewHandler(10000, endpoints...)
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
