package vtysh

import (
	"strings"

	"github.com/netsecsim/netsec-monitor/pkg/models"
)

const (
	// policyHoldMarker flags a neighbor that is configured but withholding
	// session establishment pending policy application. Such lines count as
	// neighbors but never as established sessions.
	policyHoldMarker = "(Policy)"

	// bestPathMarker starts every selected-route line in the route table dump.
	bestPathMarker = "*>"

	// sessionMinFields is the minimum column count of a summary neighbor row.
	sessionMinFields = 10
)

// ParseSessions extracts peering sessions from a "show ip bgp summary" dump.
// A line is a candidate session record only when its first field is an
// IPv4-shaped token and the row has the full summary column count. Malformed
// or empty input yields an empty list, never an error.
func ParseSessions(raw string) []models.SessionStatus {
	var sessions []models.SessionStatus
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) < sessionMinFields {
			continue
		}
		if !looksLikeIPv4(fields[0]) {
			continue
		}

		state := models.SessionEstablished
		if strings.Contains(line, policyHoldMarker) {
			state = models.SessionIdle
		}

		sessions = append(sessions, models.SessionStatus{
			Peer:  fields[0],
			State: state,
			Raw:   line,
		})
	}
	return sessions
}

// ParseRoutes extracts selected routes from a "show ip bgp" dump. A route
// record is any line beginning with the best-path marker; the prefix is the
// first token after the marker and the next hop the second when present.
func ParseRoutes(raw string) []models.RouteEntry {
	var routes []models.RouteEntry
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, bestPathMarker) {
			continue
		}

		rest := strings.TrimPrefix(trimmed, bestPathMarker)
		// FRR appends path-source flags to the marker (e.g. "*>i").
		rest = strings.TrimLeft(rest, "i e?")
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}

		entry := models.RouteEntry{Prefix: fields[0], Best: true}
		if len(fields) > 1 {
			entry.NextHop = fields[1]
		}
		routes = append(routes, entry)
	}
	return routes
}

// CountEstablished returns neighbor and established session counts. Policy
// hold neighbors count toward the first but not the second.
func CountEstablished(sessions []models.SessionStatus) (neighbors, established int) {
	for _, s := range sessions {
		neighbors++
		if s.State == models.SessionEstablished {
			established++
		}
	}
	return neighbors, established
}

// looksLikeIPv4 reports whether s has the shape of a dotted-quad address:
// four dot-separated runs of digits.
func looksLikeIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}
