package types

import (
	"testing"
	"time"
)

func TestComparableStrings(t *testing.T) {
	now := time.Now()
	cases := []struct {
		key      Comparable
		expected string
	}{
		{IntKey(10), "10"},
		{VarcharKey("test"), "test"},
		{FloatKey(3.14), "3.14"},
		{BoolKey(true), "true"},
		{BoolKey(false), "false"},
		{NullKey{}, "null"},
		{DateKey(now), now.Format(time.RFC3339Nano)},
	}

	for _, tc := range cases {
		if s := tc.key.String(); s != tc.expected {
			t.Errorf("Expected %q, got %q", tc.expected, s)
		}
	}
}

// =============================================
// TESTES PARA IntKey.Compare
// =============================================

func TestIntKey_Compare_LessThan(t *testing.T) {
	k := IntKey(5)
	result := k.Compare(IntKey(10))
	if result != -1 {
		t.Errorf("Expected -1 for 5 < 10, got %d", result)
	}
}

func TestIntKey_Compare_GreaterThan(t *testing.T) {
	k := IntKey(10)
	result := k.Compare(IntKey(5))
	if result != 1 {
		t.Errorf("Expected 1 for 10 > 5, got %d", result)
	}
}

func TestIntKey_Compare_Equal(t *testing.T) {
	k := IntKey(10)
	result := k.Compare(IntKey(10))
	if result != 0 {
		t.Errorf("Expected 0 for 10 == 10, got %d", result)
	}
}

func TestIntKey_Compare_Negative(t *testing.T) {
	k := IntKey(-5)
	result := k.Compare(IntKey(5))
	if result != -1 {
		t.Errorf("Expected -1 for -5 < 5, got %d", result)
	}
}

func TestIntKey_Compare_AgainstFloatKey(t *testing.T) {
	k := IntKey(5)
	if result := k.Compare(FloatKey(5.0)); result != 0 {
		t.Errorf("Expected 0 for int 5 == float 5.0, got %d", result)
	}
}

// =============================================
// TESTES PARA VarcharKey.Compare
// =============================================

func TestVarcharKey_Compare_LessThan(t *testing.T) {
	k := VarcharKey("apple")
	result := k.Compare(VarcharKey("banana"))
	if result != -1 {
		t.Errorf("Expected -1 for 'apple' < 'banana', got %d", result)
	}
}

func TestVarcharKey_Compare_GreaterThan(t *testing.T) {
	k := VarcharKey("cherry")
	result := k.Compare(VarcharKey("banana"))
	if result != 1 {
		t.Errorf("Expected 1 for 'cherry' > 'banana', got %d", result)
	}
}

func TestVarcharKey_Compare_Equal(t *testing.T) {
	k := VarcharKey("test")
	result := k.Compare(VarcharKey("test"))
	if result != 0 {
		t.Errorf("Expected 0 for 'test' == 'test', got %d", result)
	}
}

func TestVarcharKey_Compare_CaseSensitive(t *testing.T) {
	k := VarcharKey("Apple")
	result := k.Compare(VarcharKey("apple"))
	if result != -1 {
		t.Errorf("Expected -1 for 'Apple' < 'apple', got %d", result)
	}
}

func TestVarcharKey_Compare_EmptyString(t *testing.T) {
	k := VarcharKey("")
	result := k.Compare(VarcharKey("a"))
	if result != -1 {
		t.Errorf("Expected -1 for '' < 'a', got %d", result)
	}
}

// =============================================
// TESTES PARA FloatKey.Compare
// =============================================

func TestFloatKey_Compare_LessThan(t *testing.T) {
	k := FloatKey(1.5)
	result := k.Compare(FloatKey(2.5))
	if result != -1 {
		t.Errorf("Expected -1 for 1.5 < 2.5, got %d", result)
	}
}

func TestFloatKey_Compare_GreaterThan(t *testing.T) {
	k := FloatKey(3.14)
	result := k.Compare(FloatKey(2.71))
	if result != 1 {
		t.Errorf("Expected 1 for 3.14 > 2.71, got %d", result)
	}
}

func TestFloatKey_Compare_Equal(t *testing.T) {
	k := FloatKey(3.14)
	result := k.Compare(FloatKey(3.14))
	if result != 0 {
		t.Errorf("Expected 0 for 3.14 == 3.14, got %d", result)
	}
}

// =============================================
// TESTES PARA BoolKey.Compare
// =============================================

func TestBoolKey_Compare_FalseLessThanTrue(t *testing.T) {
	k := BoolKey(false)
	result := k.Compare(BoolKey(true))
	if result != -1 {
		t.Errorf("Expected -1 for false < true, got %d", result)
	}
}

func TestBoolKey_Compare_TrueGreaterThanFalse(t *testing.T) {
	k := BoolKey(true)
	result := k.Compare(BoolKey(false))
	if result != 1 {
		t.Errorf("Expected 1 for true > false, got %d", result)
	}
}

// =============================================
// TESTES PARA DateKey.Compare
// =============================================

func TestDateKey_Compare_Before(t *testing.T) {
	earlier := DateKey(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	later := DateKey(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))

	if result := earlier.Compare(later); result != -1 {
		t.Errorf("Expected -1 for earlier < later, got %d", result)
	}
}

func TestDateKey_Compare_Equal(t *testing.T) {
	date1 := DateKey(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	date2 := DateKey(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))

	if result := date1.Compare(date2); result != 0 {
		t.Errorf("Expected 0 for equal dates, got %d", result)
	}
}

// =============================================
// Key ordering across kinds: null < bool < number < string
// =============================================

func TestCrossKindOrdering(t *testing.T) {
	if (NullKey{}).Compare(BoolKey(false)) >= 0 {
		t.Error("expected null < bool")
	}
	if (BoolKey(true)).Compare(IntKey(0)) >= 0 {
		t.Error("expected bool < number")
	}
	if (FloatKey(999)).Compare(VarcharKey("a")) >= 0 {
		t.Error("expected number < string")
	}
}

// =============================================
// CompositeKey
// =============================================

func TestCompositeKey_Compare(t *testing.T) {
	a := CompositeKey{VarcharKey("Eng"), IntKey(100)}
	b := CompositeKey{VarcharKey("Eng"), IntKey(200)}
	if a.Compare(b) != -1 {
		t.Errorf("expected a < b")
	}
	if !a.HasPrefix(CompositeKey{VarcharKey("Eng")}) {
		t.Errorf("expected prefix match")
	}
	if a.HasPrefix(CompositeKey{VarcharKey("Sales")}) {
		t.Errorf("expected prefix mismatch")
	}
}

// =============================================
// FromJSON / Canonicalize
// =============================================

func TestFromJSON(t *testing.T) {
	if _, ok := FromJSON(nil).(NullKey); !ok {
		t.Error("expected NullKey for nil")
	}
	if _, ok := FromJSON(true).(BoolKey); !ok {
		t.Error("expected BoolKey for bool")
	}
	if _, ok := FromJSON(float64(3)).(FloatKey); !ok {
		t.Error("expected FloatKey for float64")
	}
	if _, ok := FromJSON("hi").(VarcharKey); !ok {
		t.Error("expected VarcharKey for string")
	}
	k := FromJSON(map[string]any{"b": 1, "a": 2})
	if k.String() != `{"a":2,"b":1}` {
		t.Errorf("expected canonical object form, got %q", k.String())
	}
}

// =============================================
// ExtractPath
// =============================================

func TestExtractPath(t *testing.T) {
	doc := map[string]any{
		"dept": "Eng",
		"address": map[string]any{
			"city": "NYC",
		},
		"tags": []any{"a", "b"},
	}

	if v, ok := ExtractPath(doc, "dept"); !ok || v != "Eng" {
		t.Errorf("expected dept=Eng, got %v ok=%v", v, ok)
	}
	if v, ok := ExtractPath(doc, "address.city"); !ok || v != "NYC" {
		t.Errorf("expected address.city=NYC, got %v ok=%v", v, ok)
	}
	if v, ok := ExtractPath(doc, "tags[1]"); !ok || v != "b" {
		t.Errorf("expected tags[1]=b, got %v ok=%v", v, ok)
	}
	if _, ok := ExtractPath(doc, "missing.path"); ok {
		t.Error("expected missing path to report not found")
	}
	if _, ok := ExtractPath(doc, "tags[9]"); ok {
		t.Error("expected out of range index to report not found")
	}
}
