package video

import "testing"

func TestRegistry(t *testing.T) {
	piapi := NewPiAPIAdapter(PiAPIOptions{APIKey: "k", Variant: "wan-1.3b"})
	minimax := NewMinimaxAdapter(MinimaxOptions{APIKey: "k"})
	reg := NewRegistry(piapi, minimax)

	got, err := reg.Get(Key{Provider: "piapi", Variant: "wan-1.3b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Adapter(piapi) {
		t.Fatal("wrong adapter returned")
	}

	if _, err := reg.Get(Key{Provider: "piapi", Variant: "wan-14b"}); err == nil {
		t.Fatal("expected an error for an unregistered variant")
	}
	if len(reg.Keys()) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(reg.Keys()))
	}
}
