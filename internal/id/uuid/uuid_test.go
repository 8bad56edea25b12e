// Package uuid includes tests for the UUID generator wrapper.
package uuid

import (
	"bytes"
	"testing"
)

// TestGeneratorNewID ensures generated IDs are unique and valid UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	if id1.Version() != 7 || id2.Version() != 7 {
		t.Fatalf("expected version 7 UUIDs, got %d and %d", id1.Version(), id2.Version())
	}
}

// TestGeneratorIDsAreTimeOrdered checks v7 IDs sort by creation order.
func TestGeneratorIDsAreTimeOrdered(t *testing.T) {
	t.Parallel()

	gen := New()
	prev, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	for i := 0; i < 50; i++ {
		next, err := gen.NewID()
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if bytes.Compare(prev[:], next[:]) > 0 {
			t.Fatalf("expected %s <= %s", prev, next)
		}
		prev = next
	}
}
