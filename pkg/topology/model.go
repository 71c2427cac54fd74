package topology

import (
	"sync"

	"github.com/netsecsim/netsec-monitor/pkg/models"
)

// observation is the best-known state for one node, replaced each cycle.
type observation struct {
	online     bool
	sessions   []models.SessionStatus
	routeCount int
}

// Model is the static declared graph plus the last observation per node.
// The declaration is immutable after New; observations are replaced by the
// poll loop each cycle.
type Model struct {
	nodes map[string]models.Node
	order []string // declaration order, for stable iteration
	links []models.Link

	mu       sync.RWMutex
	observed map[string]observation
}

// New builds a model from a validated configuration.
func New(cfg Config) *Model {
	m := &Model{
		nodes:    make(map[string]models.Node, len(cfg.Nodes)),
		order:    make([]string, 0, len(cfg.Nodes)),
		links:    append([]models.Link(nil), cfg.Links...),
		observed: make(map[string]observation, len(cfg.Nodes)),
	}
	for _, n := range cfg.Nodes {
		m.nodes[n.Name] = n
		m.order = append(m.order, n.Name)
	}
	return m
}

// Nodes returns the declared nodes in declaration order.
func (m *Model) Nodes() []models.Node {
	out := make([]models.Node, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.nodes[name])
	}
	return out
}

// Node looks up a declared node by name.
func (m *Model) Node(name string) (models.Node, bool) {
	n, ok := m.nodes[name]
	return n, ok
}

// ApplyObservation replaces a node's best-known state for this cycle.
// Unknown node names are ignored.
func (m *Model) ApplyObservation(name string, online bool, sessions []models.SessionStatus, routeCount int) {
	if _, ok := m.nodes[name]; !ok {
		return
	}
	m.mu.Lock()
	m.observed[name] = observation{online: online, sessions: sessions, routeCount: routeCount}
	m.mu.Unlock()
}

// NodeState returns the assembled per-node view from the latest observation.
// A node never observed reports StatusUnknown.
func (m *Model) NodeState(name string) (models.NodeState, bool) {
	node, ok := m.nodes[name]
	if !ok {
		return models.NodeState{}, false
	}

	m.mu.RLock()
	obs, seen := m.observed[name]
	m.mu.RUnlock()

	state := models.NodeState{Node: node, Status: models.StatusUnknown}
	if !seen {
		return state, true
	}
	if obs.online {
		state.Status = models.StatusOnline
	} else {
		state.Status = models.StatusOffline
	}
	state.RouteCount = obs.routeCount
	for _, s := range obs.sessions {
		state.Neighbors++
		if s.State == models.SessionEstablished {
			state.Established++
		}
	}
	return state, true
}

// LinkHealth derives the health of every declared link from the latest
// observations. A link is healthy only when both endpoints report an
// established session whose peer address equals the other endpoint's
// declared address; sessions are matched by peer, never merely counted.
func (m *Model) LinkHealth() []models.LinkState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.LinkState, 0, len(m.links))
	for _, l := range m.links {
		healthy := m.sessionEstablished(l.A, m.nodes[l.B].Address) &&
			m.sessionEstablished(l.B, m.nodes[l.A].Address)
		out = append(out, models.LinkState{
			Link:            l,
			ExpectedPeering: true,
			Healthy:         healthy,
		})
	}
	return out
}

// sessionEstablished reports whether node has an established session with
// the given peer address. Callers hold m.mu.
func (m *Model) sessionEstablished(node, peerAddr string) bool {
	obs, ok := m.observed[node]
	if !ok || !obs.online {
		return false
	}
	for _, s := range obs.sessions {
		if s.Peer == peerAddr && s.State == models.SessionEstablished {
			return true
		}
	}
	return false
}
