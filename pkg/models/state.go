// Package models defines data structures for monitored routing state and attack events.
package models

import "time"

// NodeStatus describes the last-observed liveness of an AS node.
type NodeStatus string

// Node statuses
const (
	StatusUnknown NodeStatus = "unknown"
	StatusOnline  NodeStatus = "online"
	StatusOffline NodeStatus = "offline"
)

// SessionState describes one observed BGP peering session state.
type SessionState string

// Session states
const (
	SessionUnknown     SessionState = "unknown"
	SessionEstablished SessionState = "established"
	SessionIdle        SessionState = "idle"
	SessionConnecting  SessionState = "connecting"
)

// Event types
const (
	EventPrefixHijack = "prefix_hijack"
)

// Node identifies one AS/router in the declared topology.
type Node struct {
	Name    string `json:"name" yaml:"name"`
	ASN     uint32 `json:"asn" yaml:"asn"`
	Address string `json:"address" yaml:"address"` // management/peering address inside the lab network
}

// Link is an undirected declared adjacency between two nodes.
type Link struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

// SessionStatus is one peering session reported by a node this cycle.
// Raw keeps the source line for diagnostics.
type SessionStatus struct {
	Peer  string       `json:"peer"`
	State SessionState `json:"state"`
	Raw   string       `json:"-"`
}

// RouteEntry is one route observed on a node this cycle.
type RouteEntry struct {
	Prefix  string `json:"prefix"`
	NextHop string `json:"next_hop"`
	Best    bool   `json:"best"`
}

// AuthorizationRule declares which nodes may originate a prefix.
// An empty Origins list means no node is authorized: any best-path
// observation of the prefix is suspect.
type AuthorizationRule struct {
	Prefix  string   `json:"prefix" yaml:"prefix"`
	Origins []string `json:"origins" yaml:"origins"`
}

// AttackEvent is a detector verdict for one poll cycle. Events are
// re-emitted every cycle the condition persists; deduplication is a
// consumer concern.
type AttackEvent struct {
	Type       string    `json:"type"`
	Node       string    `json:"node"`
	Prefix     string    `json:"prefix"`
	Cycle      uint64    `json:"cycle"`
	DetectedAt time.Time `json:"detected_at"`
}

// NodeState is the per-node view assembled after a poll cycle.
type NodeState struct {
	Node        Node       `json:"node"`
	Status      NodeStatus `json:"status"`
	Neighbors   int        `json:"neighbors"`
	Established int        `json:"established"`
	RouteCount  int        `json:"route_count"`
	UnderAttack bool       `json:"under_attack"`
}

// LinkState is the per-link view assembled after a poll cycle.
// Healthy is true only when both endpoints report an established
// session keyed to the other endpoint's address.
type LinkState struct {
	Link            Link `json:"link"`
	ExpectedPeering bool `json:"expected_peering"`
	Healthy         bool `json:"healthy"`
}

// Snapshot is the atomic view published once per poll cycle. A Snapshot
// is built fresh each cycle and never mutated after publication, so
// multiple consumers may read it concurrently.
type Snapshot struct {
	Timestamp time.Time            `json:"timestamp"`
	Cycle     uint64               `json:"cycle"`
	Nodes     map[string]NodeState `json:"nodes"`
	Links     []LinkState          `json:"links"`
	Events    []AttackEvent        `json:"events"`
}

// OnlineCount returns how many nodes were observed online.
func (s Snapshot) OnlineCount() int {
	n := 0
	for _, ns := range s.Nodes {
		if ns.Status == StatusOnline {
			n++
		}
	}
	return n
}

// TotalRoutes returns the sum of observed route counts across nodes.
func (s Snapshot) TotalRoutes() int {
	n := 0
	for _, ns := range s.Nodes {
		n += ns.RouteCount
	}
	return n
}
