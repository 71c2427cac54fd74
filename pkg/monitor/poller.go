// Package monitor drives the poll loop: it gathers per-node routing facts,
// reconciles them against the topology model, runs attack detection, and
// publishes one immutable Snapshot per cycle to registered sinks.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netsecsim/netsec-monitor/pkg/detector"
	"github.com/netsecsim/netsec-monitor/pkg/models"
	"github.com/netsecsim/netsec-monitor/pkg/topology"
	"github.com/netsecsim/netsec-monitor/pkg/vtysh"
)

// Sink consumes published snapshots. OnSnapshot is called once per completed
// cycle from the poll goroutine; implementations must copy or queue the
// snapshot and return promptly, or they delay the next cycle.
type Sink interface {
	OnSnapshot(models.Snapshot)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(models.Snapshot)

// OnSnapshot calls f.
func (f SinkFunc) OnSnapshot(s models.Snapshot) { f(s) }

// LivenessProber reports which containers are currently running, letting the
// poller mark stopped nodes offline without paying command timeouts. A nil
// map means the probe itself failed and every node should be polled anyway.
type LivenessProber interface {
	RunningContainers(ctx context.Context) map[string]bool
}

// Options tunes the poll loop.
type Options struct {
	// Interval is the sleep between successful cycles. Default 2s.
	Interval time.Duration
	// Backoff is the longer sleep after an unexpected cycle fault. Default 5s.
	Backoff time.Duration
	// Prober is the optional container liveness probe.
	Prober LivenessProber
	// Metrics is optional instrumentation.
	Metrics *Metrics
}

// Poller runs the monitoring state machine: poll every node, aggregate,
// publish, sleep, repeat until stopped. Polling-path faults degrade to
// reduced information for the cycle; the loop itself never terminates on
// error.
type Poller struct {
	runner  vtysh.Runner
	topo    *topology.Model
	det     *detector.Detector
	opts    Options
	sinks   []Sink
	metrics *Metrics

	cycles      atomic.Uint64
	cycleFaults atomic.Uint64
	running     atomic.Bool
	done        chan struct{}
	wg          sync.WaitGroup

	mu     sync.RWMutex
	latest models.Snapshot
	seen   bool
}

// New creates a poller over a validated topology model.
func New(runner vtysh.Runner, topo *topology.Model, det *detector.Detector, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 5 * time.Second
	}
	return &Poller{
		runner:  runner,
		topo:    topo,
		det:     det,
		opts:    opts,
		metrics: opts.Metrics,
		done:    make(chan struct{}),
	}
}

// AddSink registers a snapshot consumer. Must be called before Start.
func (p *Poller) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Start begins the poll loop in a goroutine.
func (p *Poller) Start() {
	if p.running.Swap(true) {
		log.Printf("poller: already running")
		return
	}
	p.wg.Add(1)
	go p.loop()
	log.Printf("poller: started (interval=%v backoff=%v nodes=%d)",
		p.opts.Interval, p.opts.Backoff, len(p.topo.Nodes()))
}

// Stop requests a cooperative shutdown. The stop is observed at the next
// cycle boundary; in-flight per-node calls finish under their own timeouts.
func (p *Poller) Stop() {
	if !p.running.Swap(false) {
		return
	}
	close(p.done)
	p.wg.Wait()
	log.Printf("poller: stopped (cycles=%d faults=%d)", p.cycles.Load(), p.cycleFaults.Load())
}

// Latest returns the most recently published snapshot, if any.
func (p *Poller) Latest() (models.Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.seen
}

// Stats returns loop counters for periodic status logging.
func (p *Poller) Stats() map[string]interface{} {
	snap, ok := p.Latest()
	stats := map[string]interface{}{
		"cycles": p.cycles.Load(),
		"faults": p.cycleFaults.Load(),
	}
	if ok {
		stats["nodes_online"] = snap.OnlineCount()
		stats["routes"] = snap.TotalRoutes()
		stats["attacks"] = len(snap.Events)
	}
	return stats
}

func (p *Poller) loop() {
	defer p.wg.Done()

	for p.running.Load() {
		cycle := p.cycles.Add(1)
		start := time.Now()

		snap, err := p.runCycle(cycle)
		delay := p.opts.Interval
		if err != nil {
			p.cycleFaults.Add(1)
			p.metrics.observeFailure()
			log.Printf("poller: cycle %d failed: %v, retrying in %v", cycle, err, p.opts.Backoff)
			delay = p.opts.Backoff
		} else {
			p.publish(snap)
			p.metrics.observeCycle(time.Since(start))
		}

		select {
		case <-p.done:
			return
		case <-time.After(delay):
		}
	}
}

// observation carries one node's poll results until the cycle barrier.
type observation struct {
	name     string
	online   bool
	sessions []models.SessionStatus
	routes   []models.RouteEntry
}

// runCycle polls every declared node concurrently, waits for all results,
// then reconciles, detects, and assembles the snapshot. A panic anywhere in
// the cycle is converted into a CycleFailure error so the loop survives.
func (p *Poller) runCycle(cycle uint64) (snap models.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal fault: %v", r)
		}
	}()

	ctx := context.Background()
	nodes := p.topo.Nodes()

	var alive map[string]bool
	if p.opts.Prober != nil {
		alive = p.opts.Prober.RunningContainers(ctx)
	}

	// Per-node polls are independent I/O-bound calls; run them concurrently,
	// one worker per node, and collect everything before aggregation so the
	// snapshot never mixes cycles.
	results := make([]observation, len(nodes))
	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node models.Node) {
			defer wg.Done()
			results[i] = p.pollNode(ctx, node, alive)
		}(i, node)
	}
	wg.Wait()

	for _, obs := range results {
		p.topo.ApplyObservation(obs.name, obs.online, obs.sessions, len(obs.routes))
	}

	var events []models.AttackEvent
	nodeStates := make(map[string]models.NodeState, len(results))
	for _, obs := range results {
		nodeEvents := p.det.Evaluate(obs.name, obs.routes, cycle)
		events = append(events, nodeEvents...)
		state, _ := p.topo.NodeState(obs.name)
		state.UnderAttack = len(nodeEvents) > 0
		nodeStates[obs.name] = state
	}

	return models.Snapshot{
		Timestamp: time.Now(),
		Cycle:     cycle,
		Nodes:     nodeStates,
		Links:     p.topo.LinkHealth(),
		Events:    events,
	}, nil
}

// pollNode issues both inspection queries against one node. The queries are
// independent: a failure in one does not block the other. An unreachable
// node yields an offline observation with zero facts, never an error.
func (p *Poller) pollNode(ctx context.Context, node models.Node, alive map[string]bool) observation {
	obs := observation{name: node.Name}

	if alive != nil && !alive[node.Name] {
		p.metrics.observeUnreachable(node.Name)
		return obs
	}

	rawSessions, okSessions := p.runner.Run(ctx, node.Name, vtysh.QuerySessionSummary)
	rawRoutes, okRoutes := p.runner.Run(ctx, node.Name, vtysh.QueryRouteTable)

	obs.online = okSessions || okRoutes
	if okSessions {
		obs.sessions = vtysh.ParseSessions(rawSessions)
	}
	if okRoutes {
		obs.routes = vtysh.ParseRoutes(rawRoutes)
	}
	if !obs.online {
		p.metrics.observeUnreachable(node.Name)
	}
	return obs
}

func (p *Poller) publish(snap models.Snapshot) {
	p.mu.Lock()
	p.latest = snap
	p.seen = true
	p.mu.Unlock()

	for _, sink := range p.sinks {
		sink.OnSnapshot(snap)
	}
	p.metrics.observeSnapshot(snap.OnlineCount(), len(snap.Events))
}
