package service

import (
	"context"
	"testing"
)

func TestAvailability(t *testing.T) {
	a := Available("client")
	if v, ok := a.Get(); !ok || v != "client" || a.Reason() != "" {
		t.Fatalf("Available = %v %v", v, ok)
	}

	u := Unavailable[string]("no api key")
	if _, ok := u.Get(); ok || u.OK() {
		t.Fatal("Unavailable should not be ok")
	}
	if u.Reason() != "no api key" || u.String() != "unavailable: no api key" {
		t.Fatalf("reason = %q", u.Reason())
	}

	var zero Availability[int]
	if zero.OK() || zero.Reason() != "not configured" {
		t.Fatalf("zero = %v", zero)
	}
}

func TestMap(t *testing.T) {
	n := Map(Available("abc"), func(s string) int { return len(s) })
	if v, ok := n.Get(); !ok || v != 3 {
		t.Fatalf("Map = %v %v", v, ok)
	}
	u := Map(Unavailable[string]("down"), func(s string) int { return len(s) })
	if u.OK() || u.Reason() != "down" {
		t.Fatalf("Map unavailable = %v", u)
	}
}

func TestLLMContextLabels(t *testing.T) {
	ctx := context.Background()
	if got := WorkflowFromContext(ctx); got != "unknown" {
		t.Fatalf("WorkflowFromContext = %q", got)
	}
	ctx = WithWorkflowProvider(ctx, " final ", "")
	if got := WorkflowFromContext(ctx); got != "final" {
		t.Errorf("WorkflowFromContext = %q", got)
	}
	if got := ProviderFromContext(ctx); got != "unknown" {
		t.Errorf("ProviderFromContext = %q", got)
	}
}
