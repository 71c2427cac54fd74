// Package vtysh runs routing-daemon inspection commands against lab
// containers and parses their free-text output into structured facts.
package vtysh

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Query is one of the enumerated inspection commands the monitor issues.
type Query int

// Query kinds
const (
	QuerySessionSummary Query = iota
	QueryRouteTable
)

// Command returns the vtysh command string for the query.
func (q Query) Command() string {
	switch q {
	case QuerySessionSummary:
		return "show ip bgp summary"
	case QueryRouteTable:
		return "show ip bgp"
	default:
		return ""
	}
}

func (q Query) String() string {
	switch q {
	case QuerySessionSummary:
		return "session_summary"
	case QueryRouteTable:
		return "route_table"
	default:
		return "unknown"
	}
}

// Runner executes inspection queries against a named node. ok=false means
// the node was unreachable this call (timeout, non-zero exit, exec failure);
// it is never a fatal condition. Retry policy belongs to the caller.
type Runner interface {
	Run(ctx context.Context, node string, q Query) (string, bool)
}

// ConfigPusher executes an arbitrary vtysh command line against a node.
// Used by the attack actuator for configuration pushes.
type ConfigPusher interface {
	Exec(ctx context.Context, node string, command string) (string, bool)
}

// DockerRunner runs vtysh commands through docker exec with a hard
// per-call timeout. One external process is spawned per call.
type DockerRunner struct {
	// Timeout bounds every spawned process. Mandatory; zero means 5s.
	Timeout time.Duration
}

// NewDockerRunner creates a runner with the given per-call timeout.
func NewDockerRunner(timeout time.Duration) *DockerRunner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DockerRunner{Timeout: timeout}
}

// Run executes one inspection query against a container.
func (r *DockerRunner) Run(ctx context.Context, node string, q Query) (string, bool) {
	return r.Exec(ctx, node, q.Command())
}

// Exec runs `docker exec <node> vtysh -c <command>` and captures stdout.
func (r *DockerRunner) Exec(ctx context.Context, node string, command string) (string, bool) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "docker", "exec", node, "vtysh", "-c", command)
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}

// RunningContainers returns the set of container names docker reports as
// running. A probe failure returns nil, which callers treat as "unknown,
// poll anyway" rather than an error.
func (r *DockerRunner) RunningContainers(ctx context.Context) map[string]bool {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(cctx, "docker", "ps", "--format", "{{.Names}}").Output()
	if err != nil {
		return nil
	}

	running := make(map[string]bool)
	for _, name := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		name = strings.TrimSpace(name)
		if name != "" {
			running[name] = true
		}
	}
	return running
}
