package suggest_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/tomwolfe/ConvoCue/internal/suggest"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestMakeKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		recent []string
		want   string
	}{
		{name: "with history", recent: []string{"social", "conflict"}, want: "conflict_social_conflict_anxiety_normal"},
		{name: "empty history", recent: nil, want: "conflict__anxiety_normal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := suggest.MakeKey("conflict", tt.recent, "anxiety", suggest.BandNormal); got != tt.want {
				t.Errorf("MakeKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCache_RoundTripWithinTTL(t *testing.T) {
	t.Parallel()

	c := suggest.New(45*time.Second, 75)
	c.Put("k", "hello", t0)

	got, ok := c.Get("k", t0.Add(44*time.Second))
	if !ok {
		t.Fatal("Get within TTL: expected hit")
	}
	if got.Text != "hello" {
		t.Errorf("Text = %q, want %q", got.Text, "hello")
	}
}

func TestCache_ExpiredIsMiss(t *testing.T) {
	t.Parallel()

	c := suggest.New(45*time.Second, 75)
	c.Put("k", "hello", t0)

	if _, ok := c.Get("k", t0.Add(45*time.Second)); ok {
		t.Fatal("Get at TTL: expected miss")
	}
	if c.Len() != 0 {
		t.Errorf("Len after expired Get = %d, want 0", c.Len())
	}
}

func TestCache_EvictsOldestInsertion(t *testing.T) {
	t.Parallel()

	c := suggest.New(time.Hour, 75)
	for i := range 75 {
		c.Put(fmt.Sprintf("k%d", i), "v", t0)
	}
	if c.Len() != 75 {
		t.Fatalf("Len = %d, want 75", c.Len())
	}

	if evicted, ok := c.Put("k75", "v", t0); !ok || evicted != "k0" {
		t.Errorf("Put evicted %q, %v; want k0", evicted, ok)
	}

	if c.Len() != 75 {
		t.Errorf("Len after overflow = %d, want 75", c.Len())
	}
	if _, ok := c.Get("k0", t0); ok {
		t.Error("first-inserted key should have been evicted")
	}
	for _, k := range []string{"k1", "k74", "k75"} {
		if _, ok := c.Get(k, t0); !ok {
			t.Errorf("key %q unexpectedly evicted", k)
		}
	}
}

func TestCache_OverwriteKeepsInsertionPosition(t *testing.T) {
	t.Parallel()

	c := suggest.New(time.Hour, 3)
	c.Put("k0", "a", t0)
	c.Put("k1", "b", t0)
	c.Put("k2", "c", t0)
	if _, ok := c.Put("k0", "a2", t0.Add(time.Second)); ok {
		t.Error("overwrite should not evict")
	}

	if evicted, _ := c.Put("k3", "d", t0.Add(time.Second)); evicted != "k0" {
		t.Errorf("evicted %q, want k0", evicted)
	}
	if _, ok := c.Get("k0", t0.Add(time.Second)); ok {
		t.Error("k0 should have been evicted first")
	}
	for _, key := range []string{"k1", "k2", "k3"} {
		if _, ok := c.Get(key, t0.Add(time.Second)); !ok {
			t.Errorf("Get(%s): expected hit", key)
		}
	}
}

func TestCache_OverwriteRefreshesTTL(t *testing.T) {
	t.Parallel()

	c := suggest.New(10*time.Second, 5)
	c.Put("k", "old", t0)
	c.Put("k", "new", t0.Add(8*time.Second))

	got, ok := c.Get("k", t0.Add(15*time.Second))
	if !ok || got.Text != "new" {
		t.Errorf("Get = %+v, %v; want fresh entry", got, ok)
	}
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	c := suggest.New(0, 0)
	c.Put("a", "1", t0)
	c.Put("b", "2", t0)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get("a", t0); ok {
		t.Error("Get after Clear: expected miss")
	}
}
