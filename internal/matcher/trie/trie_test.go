package trie

import (
	"slices"
	"testing"
)

func wordTrie(opts ...Option) *Trie[int] {
	tr := New[int](opts...)
	inserts := []struct {
		key string
		val int
	}{
		{"hi", 9}, {"hi", 17},
		{"hit", 1}, {"hit", 2},
		{"hip", 10}, {"hip", 20},
		{"hat", 7}, {"hat", 8}, {"hat", 9},
		{"a", 14},
		{"to", 22}, {"to", 23},
		{"tap", 19}, {"tap", 6}, {"tap", 32},
	}
	for _, in := range inserts {
		tr.Insert(in.key, in.val)
	}
	return tr
}

func sorted(v []int) []int {
	out := slices.Clone(v)
	slices.Sort(out)
	return out
}

func TestFind(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		exactOnly bool
		want      []int
	}{
		{"exact hit", "tap", true, []int{6, 19, 32}},
		{"exact prefix only", "ta", true, nil},
		{"exact miss", "hop", true, nil},
		{"fuzzy hit", "hit", false, []int{1, 2, 7, 8, 9, 10, 20}},
		{"fuzzy short key", "ha", false, []int{9, 17}},
		{"fuzzy substituted middle", "hop", false, []int{10, 20}},
		{"fuzzy two mismatches", "hum", false, nil},
		{"fuzzy substituted first", "sip", false, []int{10, 20}},
		{"fuzzy single char", "x", false, []int{14}},
	}
	tr := wordTrie()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sorted(tr.Find(tt.key, tt.exactOnly))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Find(%q, %v) = %v, want %v", tt.key, tt.exactOnly, got, tt.want)
			}
		})
	}
}

func TestFindAnchoredFirst(t *testing.T) {
	tr := wordTrie(WithAnchoredFirst())
	tests := []struct {
		key  string
		want []int
	}{
		{"hit", []int{1, 2, 7, 8, 9, 10, 20}},
		{"hop", []int{10, 20}},
		{"sip", nil},
		{"x", nil},
	}
	for _, tt := range tests {
		got := sorted(tr.Find(tt.key, false))
		if !slices.Equal(got, tt.want) {
			t.Errorf("anchored Find(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestInsertAccumulates(t *testing.T) {
	tr := New[int]()
	tr.Insert("ACGT", 1)
	tr.Insert("ACGT", 1)
	tr.Insert("", 5)

	if got := tr.Find("ACGT", true); !slices.Equal(got, []int{1, 1}) {
		t.Fatalf("Find = %v, want [1 1]", got)
	}
	if tr.Len() != 2 {
		t.Errorf("Len = %d, want 2", tr.Len())
	}
	if got := tr.Find("", false); got != nil {
		t.Errorf("Find(\"\") = %v, want nil", got)
	}
}

func TestFuzzyIsSupersetOfExact(t *testing.T) {
	tr := New[string]()
	keys := []string{"ACGT", "ACGA", "TCGT", "ACNT", "GGGG", "AC#T"}
	for _, k := range keys {
		tr.Insert(k, k)
	}
	for _, k := range append(keys, "ACCT", "TTTT") {
		exact := tr.Find(k, true)
		fuzzy := tr.Find(k, false)
		for _, v := range exact {
			if !slices.Contains(fuzzy, v) {
				t.Errorf("Find(%q, false) = %v is missing exact value %q", k, fuzzy, v)
			}
		}
	}
}

func TestOneSubstitutionSymmetry(t *testing.T) {
	tr := New[string]()
	stored := []string{"ACGT", "ACGA", "TCGT", "AC#T"}
	for _, k := range stored {
		tr.Insert(k, k)
	}
	for _, k := range stored {
		for i := 0; i < len(k); i++ {
			for _, c := range []byte("ACGTN#") {
				if c == k[i] {
					continue
				}
				variant := k[:i] + string(c) + k[i+1:]
				if got := tr.Find(variant, false); !slices.Contains(got, k) {
					t.Errorf("Find(%q, false) = %v, want it to contain %q", variant, got, k)
				}
			}
		}
	}
}

func TestFindReturnsOwnedSlice(t *testing.T) {
	tr := New[int]()
	tr.Insert("AAA", 1)
	got := tr.Find("AAA", true)
	got[0] = 99
	if again := tr.Find("AAA", true); again[0] != 1 {
		t.Errorf("stored value mutated through result slice: %v", again)
	}
}

func TestReset(t *testing.T) {
	tr := wordTrie()
	tr.Reset()
	if tr.Len() != 0 || tr.Nodes() != 1 {
		t.Fatalf("after Reset: Len=%d Nodes=%d, want 0 and 1", tr.Len(), tr.Nodes())
	}
	if got := tr.Find("tap", false); len(got) != 0 {
		t.Errorf("Find after Reset = %v, want empty", got)
	}
	tr.Insert("tap", 3)
	if got := tr.Find("tap", true); !slices.Equal(got, []int{3}) {
		t.Errorf("Find after re-insert = %v, want [3]", got)
	}
}

func BenchmarkFindFuzzy(b *testing.B) {
	tr := New[int]()
	bases := "ACGT"
	key := make([]byte, 10)
	for i := 0; i < 50000; i++ {
		x := i * 2654435761
		for j := range key {
			key[j] = bases[(x>>(2*j))&3]
		}
		tr.Insert(string(key), i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tr.Find("ACGTACGTAC", false)
	}
}
