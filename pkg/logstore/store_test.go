package logstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/modoterra/cmdhub/pkg/core"
)

func TestRegisterOnce(t *testing.T) {
	s := New()
	if !s.Register("7171") {
		t.Fatal("first register should succeed")
	}
	for i := 0; i < 3; i++ {
		if s.Register("7171") {
			t.Fatalf("register #%d should be refused", i+2)
		}
	}
	if got := s.Counts(); !cmp.Equal(got, map[core.InstanceID]int{"7171": 0}) {
		t.Errorf("counts: %v", got)
	}
}

func TestAppendImplicitRegistration(t *testing.T) {
	s := New()
	s.Append("6379", "GET foo")
	if !s.Registered("6379") {
		t.Fatal("append should register the instance")
	}
	if s.Register("6379") {
		t.Error("register after implicit registration should be refused")
	}
}

func TestGlobalIsUnionOfInstances(t *testing.T) {
	s := New()
	s.Register("a")
	s.Append("a", "SET 1")
	s.Append("b", "SET 2")
	s.Append("a", "SET 3")
	s.Append("c", "SET 4")
	s.Append("b", "SET 5")

	total := 0
	for _, id := range s.Instances() {
		log, _ := s.AllByInstance(id)
		total += len(log)
	}
	if total != len(s.All()) {
		t.Errorf("instance total %d != global %d", total, len(s.All()))
	}

	want := []string{"SET 1", "SET 2", "SET 3", "SET 4", "SET 5"}
	if diff := cmp.Diff(want, s.All()); diff != "" {
		t.Errorf("global order (-want +got):\n%s", diff)
	}
	a, _ := s.AllByInstance("a")
	if diff := cmp.Diff([]string{"SET 1", "SET 3"}, a); diff != "" {
		t.Errorf("instance a (-want +got):\n%s", diff)
	}
}

func TestLastIsPeek(t *testing.T) {
	s := New()
	if _, ok := s.Last(); ok {
		t.Fatal("empty store should have no last record")
	}
	s.Append("a", "one")
	s.Append("a", "two")

	for i := 0; i < 3; i++ {
		got, ok := s.Last()
		if !ok || got != "two" {
			t.Fatalf("last #%d: got %q, %v", i, got, ok)
		}
	}
	if s.Len() != 2 {
		t.Errorf("peek changed the log: len %d", s.Len())
	}
	got, ok := s.LastByInstance("a")
	if !ok || got != "two" {
		t.Errorf("last by instance: got %q, %v", got, ok)
	}
	if _, ok := s.LastByInstance("missing"); ok {
		t.Error("unknown instance should have no last record")
	}
}

func TestAllByInstanceEmpty(t *testing.T) {
	s := New()
	s.Register("a")
	if _, ok := s.AllByInstance("a"); ok {
		t.Error("empty instance log should report not found")
	}
	if _, ok := s.AllByInstance("zzz"); ok {
		t.Error("unknown instance should report not found")
	}
}

func TestCopiesAreIndependent(t *testing.T) {
	s := New()
	s.Append("a", "one")
	all := s.All()
	all[0] = "mutated"
	if got, _ := s.Last(); got != "one" {
		t.Errorf("store mutated through All(): %q", got)
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.Register("7171")
	s.Append("7171", "PING")
	s.Reset()

	if len(s.All()) != 0 {
		t.Error("global log should be empty after reset")
	}
	if len(s.Counts()) != 0 {
		t.Error("registry should be empty after reset")
	}
	if !s.Register("7171") {
		t.Error("register after reset should succeed")
	}
}
