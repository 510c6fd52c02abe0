package module

import "testing"

type fakePorts struct{ Tag string }

func TestRegistryRoundTrip(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	Register("tracking", fakePorts{Tag: "x"})

	got, ok := PortsAs[fakePorts]("tracking")
	if !ok || got.Tag != "x" {
		t.Fatalf("PortsAs = %#v, %v", got, ok)
	}

	if _, ok := PortsAs[fakePorts]("missing"); ok {
		t.Fatalf("expected miss for unknown module")
	}
	if _, ok := PortsAs[string]("tracking"); ok {
		t.Fatalf("expected type assertion failure")
	}
}
