package domain

import (
	"testing"
	"time"
)

func seedResolveStore(t *testing.T) *NodeStore {
	t.Helper()
	store := NewNodeStore()
	now := time.Now()
	store.Upsert(Node{Num: 101, NodeID: "!00000065", ShortName: "MK1", LongName: "Mesh Kit One", LastHeardAt: now})
	store.Upsert(Node{Num: 102, NodeID: "!00000066", ShortName: "MK2", LongName: "Mesh Kit Two", LastHeardAt: now.Add(-time.Hour)})

	return store
}

func TestResolve_ByNodeID(t *testing.T) {
	store := seedResolveStore(t)
	node, ok := store.Resolve("!00000066")
	if !ok || node.Num != 102 {
		t.Fatalf("expected node 102 by id, got %v ok=%v", node.Num, ok)
	}
}

func TestResolve_ByNodeIDCaseInsensitiveHex(t *testing.T) {
	store := NewNodeStore()
	store.Upsert(Node{Num: 0xAB, NodeID: "!000000ab", ShortName: "AB", LastHeardAt: time.Now()})

	node, ok := store.Resolve("!000000AB")
	if !ok || node.Num != 0xAB {
		t.Fatalf("expected uppercase hex id to resolve, got %v ok=%v", node.Num, ok)
	}
}

func TestResolve_ByShortNameCaseInsensitive(t *testing.T) {
	store := seedResolveStore(t)
	node, ok := store.Resolve("mk1")
	if !ok || node.Num != 101 {
		t.Fatalf("expected node 101 by short name, got %v ok=%v", node.Num, ok)
	}
}

func TestResolve_ByLongName(t *testing.T) {
	store := seedResolveStore(t)
	node, ok := store.Resolve("mesh kit two")
	if !ok || node.Num != 102 {
		t.Fatalf("expected node 102 by long name, got %v ok=%v", node.Num, ok)
	}
}

func TestResolve_ByNumericNodeNum(t *testing.T) {
	store := seedResolveStore(t)
	node, ok := store.Resolve("101")
	if !ok || node.Num != 101 {
		t.Fatalf("expected node 101 by number, got %v ok=%v", node.Num, ok)
	}
}

func TestResolve_ShortNameBeatsLongName(t *testing.T) {
	store := NewNodeStore()
	now := time.Now()
	store.Upsert(Node{Num: 1, ShortName: "BASE", LongName: "North Relay", LastHeardAt: now})
	store.Upsert(Node{Num: 2, ShortName: "NR", LongName: "BASE", LastHeardAt: now})

	node, ok := store.Resolve("BASE")
	if !ok || node.Num != 1 {
		t.Fatalf("expected short-name match to win, got %v ok=%v", node.Num, ok)
	}
}

func TestResolve_AmbiguousNamePrefersMostRecentlyHeard(t *testing.T) {
	store := NewNodeStore()
	now := time.Now()
	store.Upsert(Node{Num: 1, ShortName: "DUP", LastHeardAt: now.Add(-time.Hour)})
	store.Upsert(Node{Num: 2, ShortName: "DUP", LastHeardAt: now})

	node, ok := store.Resolve("DUP")
	if !ok || node.Num != 2 {
		t.Fatalf("expected most recently heard node 2, got %v ok=%v", node.Num, ok)
	}
}

func TestResolve_MissAndEmpty(t *testing.T) {
	store := seedResolveStore(t)
	if _, ok := store.Resolve("nope"); ok {
		t.Fatalf("expected miss for unknown reference")
	}
	if _, ok := store.Resolve("  "); ok {
		t.Fatalf("expected miss for blank reference")
	}
}
