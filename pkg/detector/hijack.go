// Package detector evaluates observed routes against authorization rules
// and flags unauthorized prefix origination.
package detector

import (
	"time"

	"github.com/netsecsim/netsec-monitor/pkg/models"
)

// Detector checks per-node route observations against the static
// authorization rule set. Exactly one rule governs each monitored prefix;
// a rule with no origins authorizes nobody.
//
// Detection is stateless per cycle: an event is re-emitted every cycle the
// condition persists. Deduplication and alerting belong to consumers.
type Detector struct {
	rules map[string]models.AuthorizationRule // prefix -> rule
}

// New creates a detector from the configured rule set.
func New(rules []models.AuthorizationRule) *Detector {
	d := &Detector{rules: make(map[string]models.AuthorizationRule, len(rules))}
	for _, r := range rules {
		d.rules[r.Prefix] = r
	}
	return d
}

// Evaluate returns one PrefixHijack event for every best-path route on node
// whose prefix is monitored and whose authorized origin is some other node.
// The authorized origin observing its own prefix is never flagged.
func (d *Detector) Evaluate(node string, routes []models.RouteEntry, cycle uint64) []models.AttackEvent {
	var events []models.AttackEvent
	for _, route := range routes {
		if !route.Best {
			continue
		}
		rule, monitored := d.rules[route.Prefix]
		if !monitored {
			continue
		}
		if authorizedOrigin(rule, node) {
			continue
		}
		events = append(events, models.AttackEvent{
			Type:       models.EventPrefixHijack,
			Node:       node,
			Prefix:     route.Prefix,
			Cycle:      cycle,
			DetectedAt: time.Now(),
		})
	}
	return events
}

// Monitored reports whether a prefix has an authorization rule.
func (d *Detector) Monitored(prefix string) bool {
	_, ok := d.rules[prefix]
	return ok
}

func authorizedOrigin(rule models.AuthorizationRule, node string) bool {
	for _, origin := range rule.Origins {
		if origin == node {
			return true
		}
	}
	return false
}
