// Package actuator pushes attack configurations into lab routers over
// vtysh. It exists to exercise the detector: inject a hijack or an
// AS-path poison, watch the monitor flag it, then clean everything up.
// The poll loop never calls into this package.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/netsecsim/netsec-monitor/pkg/models"
	"github.com/netsecsim/netsec-monitor/pkg/topology"
	"github.com/netsecsim/netsec-monitor/pkg/vtysh"
)

// poisonRouteMap is the route-map name used for AS-path poisoning.
// Cleanup removes it from every node unconditionally.
const poisonRouteMap = "POISON"

// Actuator applies and removes attack configurations on lab nodes.
type Actuator struct {
	pusher vtysh.ConfigPusher
	nodes  map[string]models.Node
	order  []string
}

// New creates an actuator for the nodes declared in cfg.
func New(pusher vtysh.ConfigPusher, cfg topology.Config) *Actuator {
	nodes := make(map[string]models.Node, len(cfg.Nodes))
	order := make([]string, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		nodes[n.Name] = n
		order = append(order, n.Name)
	}
	return &Actuator{
		pusher: pusher,
		nodes:  nodes,
		order:  order,
	}
}

// InjectHijack makes node originate prefix as if it owned it. The
// announcement propagates on the node's next soft refresh, so the
// monitor picks it up one or two poll cycles later.
func (a *Actuator) InjectHijack(ctx context.Context, node, prefix string) error {
	n, ok := a.nodes[node]
	if !ok {
		return fmt.Errorf("unknown node %q", node)
	}
	script := strings.Join([]string{
		"configure terminal",
		fmt.Sprintf("router bgp %d", n.ASN),
		fmt.Sprintf("network %s", prefix),
		"end",
		"clear ip bgp * soft",
	}, "\n")
	if out, ok := a.pusher.Exec(ctx, node, script); !ok {
		return fmt.Errorf("hijack injection on %s failed: %s", node, strings.TrimSpace(out))
	}
	log.Printf("Injected hijack: %s now originates %s", node, prefix)
	return nil
}

// InjectPoison attaches an outbound route-map on node that prepends
// the given AS path toward neighbor, making routes through node look
// like they traverse ASes they never touched.
func (a *Actuator) InjectPoison(ctx context.Context, node, neighbor string, path []uint32) error {
	n, ok := a.nodes[node]
	if !ok {
		return fmt.Errorf("unknown node %q", node)
	}
	if len(path) == 0 {
		return errors.New("poison path must name at least one AS")
	}
	asns := make([]string, len(path))
	for i, asn := range path {
		asns[i] = fmt.Sprintf("%d", asn)
	}
	script := strings.Join([]string{
		"configure terminal",
		fmt.Sprintf("route-map %s permit 10", poisonRouteMap),
		fmt.Sprintf("set as-path prepend %s", strings.Join(asns, " ")),
		"exit",
		fmt.Sprintf("router bgp %d", n.ASN),
		fmt.Sprintf("neighbor %s route-map %s out", neighbor, poisonRouteMap),
		"end",
		"clear ip bgp * soft",
	}, "\n")
	if out, ok := a.pusher.Exec(ctx, node, script); !ok {
		return fmt.Errorf("poison injection on %s failed: %s", node, strings.TrimSpace(out))
	}
	log.Printf("Injected poison: %s prepends %s toward %s", node, strings.Join(asns, " "), neighbor)
	return nil
}

// Cleanup removes every attack configuration from every node: the
// poison route-map and any network statement for the given prefixes.
// It keeps going past per-node failures so one dead container does
// not leave the rest of the lab dirty.
func (a *Actuator) Cleanup(ctx context.Context, prefixes []string) error {
	var errs []error
	for _, name := range a.order {
		n := a.nodes[name]
		lines := []string{
			"configure terminal",
			fmt.Sprintf("router bgp %d", n.ASN),
		}
		for _, prefix := range prefixes {
			lines = append(lines, fmt.Sprintf("no network %s", prefix))
		}
		lines = append(lines,
			"exit",
			fmt.Sprintf("no route-map %s", poisonRouteMap),
			"end",
			"clear ip bgp * soft",
		)
		script := strings.Join(lines, "\n")
		if out, ok := a.pusher.Exec(ctx, name, script); !ok {
			errs = append(errs, fmt.Errorf("cleanup on %s failed: %s", name, strings.TrimSpace(out)))
			continue
		}
		log.Printf("Cleaned attack config on %s", name)
	}
	return errors.Join(errs...)
}
