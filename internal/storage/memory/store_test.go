package memory

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func TestStore_Items(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, err := s.GetItem(ctx, "missing"); ok || err != nil {
		t.Fatalf("GetItem(missing) = ok %v, err %v", ok, err)
	}

	if err := s.SetItem(ctx, "idbridge.session", `{"version":1}`); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.GetItem(ctx, "idbridge.session")
	if err != nil || !ok || v != `{"version":1}` {
		t.Errorf("GetItem() = %q, %v, %v", v, ok, err)
	}

	if err := s.RemoveItem(ctx, "idbridge.session"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveItem(ctx, "idbridge.session"); err != nil {
		t.Errorf("removing a missing key should not fail: %v", err)
	}
	if _, ok, _ := s.GetItem(ctx, "idbridge.session"); ok {
		t.Error("key should be gone")
	}
}

func TestStore_Keys(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.SetItem(ctx, "b", "2")
	_ = s.SetItem(ctx, "a", "1")

	keys := s.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Close()

	if _, _, err := s.GetItem(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("GetItem after Close err = %v", err)
	}
	if err := s.SetItem(ctx, "k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("SetItem after Close err = %v", err)
	}
}
