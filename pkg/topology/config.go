// Package topology holds the declared AS graph, its configuration, and the
// per-cycle reconciliation of observed sessions against declared adjacency.
package topology

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netsecsim/netsec-monitor/pkg/models"
)

// Config is the static monitor declaration loaded at startup. It is the
// only fatal error source in the system: a monitor with an undefined
// topology cannot produce meaningful snapshots.
type Config struct {
	PollInterval   time.Duration              `yaml:"poll_interval"`
	CommandTimeout time.Duration              `yaml:"command_timeout"`
	Backoff        time.Duration              `yaml:"backoff"`
	Nodes          []models.Node              `yaml:"nodes"`
	Links          []models.Link              `yaml:"links"`
	Rules          []models.AuthorizationRule `yaml:"rules"`
}

// Default returns the five-AS lab topology the simulator ships with:
// as100..as500 peering over 172.20.0.0/24, with as300 the authorized
// origin of the hijack target prefix.
func Default() Config {
	return Config{
		PollInterval:   2 * time.Second,
		CommandTimeout: 5 * time.Second,
		Backoff:        5 * time.Second,
		Nodes: []models.Node{
			{Name: "as100", ASN: 65100, Address: "172.20.0.10"},
			{Name: "as200", ASN: 65200, Address: "172.20.0.20"},
			{Name: "as300", ASN: 65300, Address: "172.20.0.30"},
			{Name: "as400", ASN: 65400, Address: "172.20.0.40"},
			{Name: "as500", ASN: 65500, Address: "172.20.0.50"},
		},
		Links: []models.Link{
			{A: "as100", B: "as200"},
			{A: "as200", B: "as300"},
			{A: "as200", B: "as400"},
			{A: "as300", B: "as500"},
			{A: "as400", B: "as500"},
		},
		Rules: []models.AuthorizationRule{
			{Prefix: "8.8.8.0/24", Origins: []string{"as300"}},
		},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes. Omitted timing
// fields fall back to the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Config{
		PollInterval:   2 * time.Second,
		CommandTimeout: 5 * time.Second,
		Backoff:        5 * time.Second,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the declaration for the startup-fatal error class:
// empty topology, duplicate names, dangling references, bad prefixes,
// non-positive intervals.
func (c Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("config: no nodes declared")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("config: command_timeout must be positive, got %v", c.CommandTimeout)
	}
	if c.Backoff <= 0 {
		return fmt.Errorf("config: backoff must be positive, got %v", c.Backoff)
	}

	names := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Name == "" {
			return fmt.Errorf("config: node with empty name")
		}
		if names[n.Name] {
			return fmt.Errorf("config: duplicate node %q", n.Name)
		}
		if n.Address == "" || net.ParseIP(n.Address) == nil {
			return fmt.Errorf("config: node %q has invalid address %q", n.Name, n.Address)
		}
		names[n.Name] = true
	}

	for _, l := range c.Links {
		if !names[l.A] {
			return fmt.Errorf("config: link references unknown node %q", l.A)
		}
		if !names[l.B] {
			return fmt.Errorf("config: link references unknown node %q", l.B)
		}
		if l.A == l.B {
			return fmt.Errorf("config: link from %q to itself", l.A)
		}
	}

	prefixes := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		if _, _, err := net.ParseCIDR(r.Prefix); err != nil {
			return fmt.Errorf("config: rule has invalid prefix %q: %w", r.Prefix, err)
		}
		if prefixes[r.Prefix] {
			return fmt.Errorf("config: duplicate rule for prefix %q", r.Prefix)
		}
		prefixes[r.Prefix] = true
		for _, origin := range r.Origins {
			if !names[origin] {
				return fmt.Errorf("config: rule for %q references unknown node %q", r.Prefix, origin)
			}
		}
	}

	return nil
}
