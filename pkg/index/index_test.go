package index

import (
	"testing"
	"time"
)

func doc(id string, age float64, name string) BackfillDoc {
	return BackfillDoc{ID: id, Payload: map[string]any{"age": age, "name": name}}
}

func TestCreateIndex_BackfillsAndLooksUp(t *testing.T) {
	m := NewManager()
	existing := []BackfillDoc{doc("1", 30, "ada"), doc("2", 40, "bob")}

	if err := m.CreateIndex(Config{Name: "by_age", Fields: []string{"age"}, Kind: KindHash, CreatedAt: time.Now()}, existing); err != nil {
		t.Fatalf("create index: %v", err)
	}

	set, err := m.LookupExact("by_age", []any{float64(30)})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !set.has("1") || len(set) != 1 {
		t.Fatalf("expected {1}, got %v", set)
	}
}

func TestCreateIndex_DuplicateName(t *testing.T) {
	m := NewManager()
	cfg := Config{Name: "by_age", Fields: []string{"age"}, Kind: KindHash}
	if err := m.CreateIndex(cfg, nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := m.CreateIndex(cfg, nil); err == nil {
		t.Fatal("expected error creating duplicate index name")
	}
}

func TestUniqueIndex_RejectsConflict(t *testing.T) {
	m := NewManager()
	if err := m.CreateIndex(Config{Name: "by_name", Fields: []string{"name"}, Kind: KindHash, Unique: true}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.OnInsert("1", map[string]any{"name": "ada"}); err != nil {
		t.Fatalf("insert 1: %v", err)
	}
	if err := m.OnInsert("2", map[string]any{"name": "ada"}); err == nil {
		t.Fatal("expected unique violation")
	}

	set, _ := m.LookupExact("by_name", []any{"ada"})
	if len(set) != 1 {
		t.Fatalf("expected the rejected insert to leave the index untouched, got %v", set)
	}
}

func TestOnUpdate_MovesKey(t *testing.T) {
	m := NewManager()
	if err := m.CreateIndex(Config{Name: "by_name", Fields: []string{"name"}, Kind: KindOrdered}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.OnInsert("1", map[string]any{"name": "ada"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.OnUpdate("1", map[string]any{"name": "ada"}, map[string]any{"name": "grace"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	oldSet, _ := m.LookupExact("by_name", []any{"ada"})
	newSet, _ := m.LookupExact("by_name", []any{"grace"})
	if len(oldSet) != 0 {
		t.Errorf("expected old key bucket to be emptied, got %v", oldSet)
	}
	if !newSet.has("1") {
		t.Errorf("expected new key bucket to contain id 1, got %v", newSet)
	}
}

func TestOnDelete_RemovesFromEveryIndex(t *testing.T) {
	m := NewManager()
	m.CreateIndex(Config{Name: "by_name", Fields: []string{"name"}, Kind: KindHash}, nil)
	m.OnInsert("1", map[string]any{"name": "ada"})
	if err := m.OnDelete("1", map[string]any{"name": "ada"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	set, _ := m.LookupExact("by_name", []any{"ada"})
	if len(set) != 0 {
		t.Errorf("expected empty bucket after delete, got %v", set)
	}
}

func TestFindBestIndex_ExactThenPrefix(t *testing.T) {
	m := NewManager()
	m.CreateIndex(Config{Name: "by_name_age", Fields: []string{"name", "age"}, Kind: KindOrdered}, nil)

	name, ok := m.FindBestIndex([]string{"name", "age"})
	if !ok || name != "by_name_age" {
		t.Fatalf("expected exact match, got %s %v", name, ok)
	}

	name, ok = m.FindBestIndex([]string{"name"})
	if !ok || name != "by_name_age" {
		t.Fatalf("expected prefix match, got %s %v", name, ok)
	}

	// order-sensitive: {age} is NOT a prefix of {name, age}
	if _, ok := m.FindBestIndex([]string{"age"}); ok {
		t.Fatal("expected no match for non-prefix field order")
	}
}

func TestLookupRange_OrderedSingleField(t *testing.T) {
	m := NewManager()
	m.CreateIndex(Config{Name: "by_age", Fields: []string{"age"}, Kind: KindOrdered}, nil)
	for i, id := range []string{"1", "2", "3", "4"} {
		m.OnInsert(id, map[string]any{"age": float64(20 + i*10)})
	}

	set, err := m.LookupRange("by_age", float64(25), float64(45))
	if err != nil {
		t.Fatalf("range lookup: %v", err)
	}
	if len(set) != 2 || !set.has("2") || !set.has("3") {
		t.Fatalf("expected {2,3}, got %v", set)
	}
}

func TestLookupRange_CompositeOrderedRejected(t *testing.T) {
	m := NewManager()
	m.CreateIndex(Config{Name: "by_name_age", Fields: []string{"name", "age"}, Kind: KindOrdered}, nil)

	if _, err := m.LookupRange("by_name_age", "a", "z"); err == nil {
		t.Fatal("expected query-error for range on composite ordered index")
	}
}

func TestDropIndex(t *testing.T) {
	m := NewManager()
	m.CreateIndex(Config{Name: "by_age", Fields: []string{"age"}, Kind: KindHash}, nil)
	if err := m.DropIndex("by_age"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := m.DropIndex("by_age"); err == nil {
		t.Fatal("expected error dropping unknown index")
	}
}

func TestStats(t *testing.T) {
	m := NewManager()
	m.CreateIndex(Config{Name: "by_name", Fields: []string{"name"}, Kind: KindHash}, nil)
	m.OnInsert("1", map[string]any{"name": "ada"})
	m.OnInsert("2", map[string]any{"name": "ada"})
	m.OnInsert("3", map[string]any{"name": "grace"})

	stats, err := m.Stats("by_name")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntries != 3 || stats.UniqueValues != 2 {
		t.Fatalf("expected 3 entries / 2 unique values, got %+v", stats)
	}
}
