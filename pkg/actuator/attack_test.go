package actuator

import (
	"context"
	"strings"
	"testing"

	"github.com/netsecsim/netsec-monitor/pkg/topology"
)

type push struct {
	node   string
	script string
}

type fakePusher struct {
	pushes []push
	fail   map[string]bool
}

func (f *fakePusher) Exec(ctx context.Context, node, command string) (string, bool) {
	f.pushes = append(f.pushes, push{node: node, script: command})
	if f.fail[node] {
		return "vtysh: connection refused", false
	}
	return "", true
}

func testActuator(fail map[string]bool) (*Actuator, *fakePusher) {
	pusher := &fakePusher{fail: fail}
	return New(pusher, topology.Default()), pusher
}

func TestInjectHijack(t *testing.T) {
	act, pusher := testActuator(nil)

	if err := act.InjectHijack(context.Background(), "as500", "8.8.8.0/24"); err != nil {
		t.Fatalf("InjectHijack failed: %v", err)
	}
	if len(pusher.pushes) != 1 {
		t.Fatalf("Expected 1 push, got %d", len(pusher.pushes))
	}

	p := pusher.pushes[0]
	if p.node != "as500" {
		t.Errorf("Expected push to as500, got %s", p.node)
	}
	for _, want := range []string{"router bgp 65500", "network 8.8.8.0/24", "clear ip bgp * soft"} {
		if !strings.Contains(p.script, want) {
			t.Errorf("Script missing %q:\n%s", want, p.script)
		}
	}
}

func TestInjectHijack_UnknownNode(t *testing.T) {
	act, pusher := testActuator(nil)

	if err := act.InjectHijack(context.Background(), "as999", "8.8.8.0/24"); err == nil {
		t.Error("Expected error for unknown node")
	}
	if len(pusher.pushes) != 0 {
		t.Errorf("Expected no pushes, got %d", len(pusher.pushes))
	}
}

func TestInjectHijack_ExecFailure(t *testing.T) {
	act, _ := testActuator(map[string]bool{"as500": true})

	err := act.InjectHijack(context.Background(), "as500", "8.8.8.0/24")
	if err == nil {
		t.Fatal("Expected error when vtysh push fails")
	}
	if !strings.Contains(err.Error(), "as500") {
		t.Errorf("Error should name the node: %v", err)
	}
}

func TestInjectPoison(t *testing.T) {
	act, pusher := testActuator(nil)

	err := act.InjectPoison(context.Background(), "as400", "172.20.0.20", []uint32{65100, 65200, 65100})
	if err != nil {
		t.Fatalf("InjectPoison failed: %v", err)
	}

	p := pusher.pushes[0]
	if p.node != "as400" {
		t.Errorf("Expected push to as400, got %s", p.node)
	}
	for _, want := range []string{
		"route-map POISON permit 10",
		"set as-path prepend 65100 65200 65100",
		"router bgp 65400",
		"neighbor 172.20.0.20 route-map POISON out",
	} {
		if !strings.Contains(p.script, want) {
			t.Errorf("Script missing %q:\n%s", want, p.script)
		}
	}
}

func TestInjectPoison_EmptyPath(t *testing.T) {
	act, pusher := testActuator(nil)

	if err := act.InjectPoison(context.Background(), "as400", "172.20.0.20", nil); err == nil {
		t.Error("Expected error for empty poison path")
	}
	if len(pusher.pushes) != 0 {
		t.Errorf("Expected no pushes, got %d", len(pusher.pushes))
	}
}

func TestCleanup(t *testing.T) {
	act, pusher := testActuator(nil)

	if err := act.Cleanup(context.Background(), []string{"8.8.8.0/24"}); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if len(pusher.pushes) != 5 {
		t.Fatalf("Expected a push per node, got %d", len(pusher.pushes))
	}

	seen := make(map[string]bool)
	for _, p := range pusher.pushes {
		seen[p.node] = true
		if !strings.Contains(p.script, "no route-map POISON") {
			t.Errorf("Cleanup on %s missing route-map removal:\n%s", p.node, p.script)
		}
		if !strings.Contains(p.script, "no network 8.8.8.0/24") {
			t.Errorf("Cleanup on %s missing network removal:\n%s", p.node, p.script)
		}
	}
	for _, name := range []string{"as100", "as200", "as300", "as400", "as500"} {
		if !seen[name] {
			t.Errorf("Cleanup never touched %s", name)
		}
	}
}

func TestCleanup_ContinuesPastFailures(t *testing.T) {
	act, pusher := testActuator(map[string]bool{"as200": true})

	err := act.Cleanup(context.Background(), []string{"8.8.8.0/24"})
	if err == nil {
		t.Fatal("Expected error when one node fails")
	}
	if !strings.Contains(err.Error(), "as200") {
		t.Errorf("Error should name the failed node: %v", err)
	}
	if len(pusher.pushes) != 5 {
		t.Errorf("Expected cleanup to reach all 5 nodes despite failure, got %d", len(pusher.pushes))
	}
}
