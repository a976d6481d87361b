package cmap

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},  // invalid → default
		{-1, DefaultShardCount}, // invalid → default
		{3, DefaultShardCount},  // not power of 2 → default
		{1, 1},
		{4, 4},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 100)
	m.Set("key2", 200)
	m.Set("key1", 101)

	if val, ok := m.Get("key1"); !ok || val != 101 {
		t.Errorf("Get(key1) = (%d, %v), want (101, true)", val, ok)
	}
	if _, ok := m.Get("nonexistent"); ok {
		t.Error("Get(nonexistent) should miss")
	}

	m.Delete("key1")
	m.Delete("nonexistent")
	if m.Has("key1") {
		t.Error("key1 should not exist after deletion")
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}

	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", m.Count())
	}
}

func TestStructKey(t *testing.T) {
	type key struct {
		Kind int
		Dir  string
	}
	m := New[key, string]()

	m.Set(key{1, "a"}, "node")
	m.Set(key{2, "a"}, "edge")

	if v, ok := m.Get(key{1, "a"}); !ok || v != "node" {
		t.Errorf("Get = (%q, %v), want (node, true)", v, ok)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
}

func TestUpdate(t *testing.T) {
	m := New[string, []string]()

	appendName := func(name string) func([]string, bool) ([]string, error) {
		return func(names []string, _ bool) ([]string, error) {
			for _, n := range names {
				if n == name {
					return nil, errors.New("duplicate")
				}
			}
			return append(names, name), nil
		}
	}

	if err := m.Update("k", appendName("a")); err != nil {
		t.Fatalf("Update(a) error = %v", err)
	}
	if err := m.Update("k", appendName("b")); err != nil {
		t.Fatalf("Update(b) error = %v", err)
	}
	if err := m.Update("k", appendName("a")); err == nil {
		t.Fatal("Update(a) again should fail")
	}

	got, _ := m.Get("k")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("value = %v, want [a b]", got)
	}
}

func TestDeleteFuncAndRange(t *testing.T) {
	m := NewWithShards[int, int](4)
	for i := 0; i < 100; i++ {
		m.Set(i, i)
	}

	if n := m.DeleteFunc(func(k, _ int) bool { return k%2 == 0 }); n != 50 {
		t.Errorf("DeleteFunc removed %d, want 50", n)
	}

	sum := 0
	m.Range(func(k, v int) bool {
		if k%2 == 0 {
			t.Errorf("even key %d survived", k)
		}
		sum += v
		return true
	})
	if sum != 2500 {
		t.Errorf("sum of odd values = %d, want 2500", sum)
	}

	visited := 0
	m.Range(func(int, int) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("Range visited %d after stop, want 3", visited)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int, int]()
	var wg sync.WaitGroup
	numGoroutines := 50
	numOps := 200

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := base*numOps + j
				m.Set(key, j)
				m.Get(key)
				_ = m.Update(key, func(v int, _ bool) (int, error) { return v + 1, nil })
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != numGoroutines*numOps {
		t.Errorf("Count() = %d, want %d", m.Count(), numGoroutines*numOps)
	}
}
