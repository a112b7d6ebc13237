package matcher

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/genome-matcher/internal/genome"
)

const (
	genome1 = "CGGTGTACNACGACTGGGGATAGAATATCTTGACGTCGTACCGGTTGTAGTCGTTCGACCGAAGGGTTCCGCGCCAGTAC"
	genome2 = "TAACAGAGCGGTNATATTGTTACGAATCACGTGCGAGACTTAGAGCCAGAATATGAAGTAGTGATTCAGCAACCAAGCGG"
	genome3 = "TTTTGAGCCAGCGACGCGGCTTGCTTAACGAAGCGGAAGAGTAGGTTGGACACATTNGGCGGCACAGCGCTTTTGAGCCA"
)

func mustGenome(t testing.TB, name, bases string) genome.Genome {
	t.Helper()
	g, err := genome.New(name, bases)
	if err != nil {
		t.Fatalf("genome.New(%q): %v", name, err)
	}
	return g
}

func newMatcher(t testing.TB, k int, lib [][2]string, opts ...Option) *Matcher {
	t.Helper()
	m, err := New(k, opts...)
	if err != nil {
		t.Fatalf("New(%d): %v", k, err)
	}
	for _, entry := range lib {
		m.AddGenome(mustGenome(t, entry[0], entry[1]))
	}
	return m
}

func smallLibrary(t testing.TB, opts ...Option) *Matcher {
	return newMatcher(t, 3, [][2]string{
		{"Genome 1", "ACTG"},
		{"Genome 2", "TCGACT"},
		{"Genome 3", "TCTCG"},
	}, opts...)
}

func fixtureLibrary(t testing.TB, opts ...Option) *Matcher {
	return newMatcher(t, 4, [][2]string{
		{"Genome 1", genome1},
		{"Genome 2", genome2},
		{"Genome 3", genome3},
	}, opts...)
}

func TestNewRejectsNonPositiveSeed(t *testing.T) {
	for _, k := range []int{0, -3} {
		if _, err := New(k); err != ErrInvalidSeedLength {
			t.Errorf("New(%d) err = %v, want ErrInvalidSeedLength", k, err)
		}
	}
}

func TestAccessors(t *testing.T) {
	m := smallLibrary(t)
	if m.MinSearchLength() != 3 {
		t.Errorf("MinSearchLength = %d", m.MinSearchLength())
	}
	lib := m.Genomes()
	if len(lib) != 3 || lib[1].Name() != "Genome 2" {
		t.Fatalf("Genomes = %+v", lib)
	}
	// windows: 2 + 4 + 3
	if m.Seeds() != 9 {
		t.Errorf("Seeds = %d, want 9", m.Seeds())
	}
}

func TestFindFragmentSmallLibrary(t *testing.T) {
	m := smallLibrary(t)
	tests := []struct {
		name      string
		fragment  string
		minLength int
		exact     bool
		want      []DNAMatch
	}{
		{"fragment shorter than minimum", "A", 3, true, nil},
		{"minimum below seed length", "ACT", 2, false, nil},
		{"exact seed", "CGA", 3, true, []DNAMatch{{"Genome 2", 1, 3}}},
		{"exact extension", "CGACT", 3, true, []DNAMatch{{"Genome 2", 1, 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.FindFragment(tt.fragment, tt.minLength, tt.exact)
			if ok != (len(tt.want) > 0) {
				t.Fatalf("found = %v, want %v", ok, len(tt.want) > 0)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("FindFragment(%q, %d, %v) = %+v, want %+v", tt.fragment, tt.minLength, tt.exact, got, tt.want)
			}
		})
	}
}

func TestFindFragmentTwoGenomeScenario(t *testing.T) {
	m := newMatcher(t, 3, [][2]string{{"G1", "ACTG"}, {"G2", "TCGACT"}})
	got, ok := m.FindFragment("CGA", 3, true)
	want := []DNAMatch{{GenomeName: "G2", Position: 1, Length: 3}}
	if !ok || !slices.Equal(got, want) {
		t.Errorf("FindFragment = %+v, %v; want %+v", got, ok, want)
	}
}

var fragmentCases = []struct {
	fragment  string
	minLength int
	exact     bool
	want      []DNAMatch
}{
	{"GAAG", 3, true, nil},
	{"GAAG", 5, true, nil},
	{"GAATAC", 6, true, nil},
	{"GAAG", 4, true, []DNAMatch{{"Genome 1", 60, 4}, {"Genome 2", 54, 4}, {"Genome 3", 29, 4}}},
	{"GAATAC", 4, true, []DNAMatch{{"Genome 1", 22, 5}, {"Genome 2", 48, 5}}},
	{"GAATAC", 6, false, []DNAMatch{{"Genome 1", 22, 6}, {"Genome 2", 48, 6}}},
	{"GTATAT", 6, false, []DNAMatch{{"Genome 1", 22, 6}, {"Genome 2", 48, 6}}},
	{"GAATACG", 6, false, []DNAMatch{{"Genome 1", 22, 6}, {"Genome 2", 48, 7}}},
	{"GAAGGGTT", 5, false, []DNAMatch{{"Genome 1", 60, 8}, {"Genome 2", 54, 5}, {"Genome 3", 35, 7}}},
	{"GAAGGGTT", 6, false, []DNAMatch{{"Genome 1", 60, 8}, {"Genome 3", 35, 7}}},
	{"ACGTGCGAGACTTAGAGCC", 12, false, []DNAMatch{{"Genome 2", 28, 19}}},
	{"ACGTGCGAGACTTAGAGCG", 12, false, []DNAMatch{{"Genome 2", 28, 19}}},
}

func TestFindFragmentFixtureLibrary(t *testing.T) {
	modes := map[string][]Option{
		"default":  nil,
		"anchored": {WithAnchoredSeed()},
	}
	for mode, opts := range modes {
		m := fixtureLibrary(t, opts...)
		for _, tt := range fragmentCases {
			got, ok := m.FindFragment(tt.fragment, tt.minLength, tt.exact)
			if ok != (len(tt.want) > 0) || !slices.Equal(got, tt.want) {
				t.Errorf("%s: FindFragment(%q, %d, %v) = %+v, %v; want %+v",
					mode, tt.fragment, tt.minLength, tt.exact, got, ok, tt.want)
			}
		}
	}
}

func TestFindFragmentClipsAtGenomeEnd(t *testing.T) {
	m := newMatcher(t, 3, [][2]string{{"tail", "GGGACGT"}})
	got, ok := m.FindFragment("ACGTTT", 4, true)
	want := []DNAMatch{{"tail", 3, 4}}
	if !ok || !slices.Equal(got, want) {
		t.Errorf("FindFragment = %+v, %v; want %+v", got, ok, want)
	}
}

func TestFindFragmentPrefersEarliestOnTie(t *testing.T) {
	m := newMatcher(t, 3, [][2]string{{"rep", "ACGTTACGTT"}})
	got, ok := m.FindFragment("ACGT", 4, true)
	want := []DNAMatch{{"rep", 0, 4}}
	if !ok || !slices.Equal(got, want) {
		t.Errorf("FindFragment = %+v, %v; want %+v", got, ok, want)
	}
}

func TestFindRelated(t *testing.T) {
	m := fixtureLibrary(t)

	if got, ok := m.FindRelated("ABCD", 3, false, 23); ok || got != nil {
		t.Errorf("window below seed length: got %+v, %v", got, ok)
	}
	if got, ok := m.FindRelated("GAA", 4, false, 0); ok || got != nil {
		t.Errorf("query shorter than window: got %+v, %v", got, ok)
	}

	got, ok := m.FindRelated("GAAG", 4, true, 0)
	want := []GenomeMatch{{"Genome 1", 100}, {"Genome 2", 100}, {"Genome 3", 100}}
	if !ok || !slices.Equal(got, want) {
		t.Errorf("FindRelated(GAAG) = %+v, want %+v", got, want)
	}

	got, ok = m.FindRelated("GAAGACTT", 4, true, 50)
	want = []GenomeMatch{{"Genome 2", 100}, {"Genome 1", 50}, {"Genome 3", 50}}
	if !ok || !slices.Equal(got, want) {
		t.Errorf("FindRelated(GAAGACTT) = %+v, want %+v", got, want)
	}

	if got, ok := m.FindRelated("GAAGACTT", 4, true, 100.5); ok || got != nil {
		t.Errorf("threshold above 100: got %+v, %v", got, ok)
	}
}

func TestFindRelatedStride(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		query  string
		window int
		want   []GenomeMatch
	}{
		{"fixed stride whole genome", nil, genome2, 10,
			[]GenomeMatch{{"Genome 2", 100}, {"Genome 3", 12.5}}},
		{"legacy stride whole genome", []Option{WithLegacyStride()}, genome2, 10,
			[]GenomeMatch{{"Genome 2", 25}}},
		{"fixed stride seed windows", nil, genome2[:40], 4,
			[]GenomeMatch{{"Genome 1", 100}, {"Genome 2", 100}, {"Genome 3", 90}}},
		{"anchored fixed stride seed windows", []Option{WithAnchoredSeed()}, genome2[:40], 4,
			[]GenomeMatch{{"Genome 2", 100}, {"Genome 1", 90}, {"Genome 3", 90}}},
		{"legacy stride seed windows", []Option{WithLegacyStride()}, genome2[:40], 4,
			[]GenomeMatch{{"Genome 1", 30}, {"Genome 2", 30}, {"Genome 3", 30}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := fixtureLibrary(t, tt.opts...)
			got, ok := m.FindRelated(tt.query, tt.window, false, 0)
			if !ok || !slices.Equal(got, tt.want) {
				t.Errorf("FindRelated = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQueriesAreIdempotent(t *testing.T) {
	m := fixtureLibrary(t)
	first, _ := m.FindFragment("GAAGGGTT", 5, false)
	second, _ := m.FindFragment("GAAGGGTT", 5, false)
	if !slices.Equal(first, second) {
		t.Errorf("FindFragment not idempotent: %+v vs %+v", first, second)
	}
	r1, _ := m.FindRelated(genome3, 8, false, 0)
	r2, _ := m.FindRelated(genome3, 8, false, 0)
	if !slices.Equal(r1, r2) {
		t.Errorf("FindRelated not idempotent: %+v vs %+v", r1, r2)
	}
}

// bruteFragment scans every window of every genome without the index.
func bruteFragment(lib []genome.Genome, k int, fragment string, minLength int, exact bool) []DNAMatch {
	if len(fragment) < minLength || minLength < k {
		return nil
	}
	var out []DNAMatch
	for _, g := range lib {
		b := g.Bases()
		best := DNAMatch{Length: -1}
		for p := 0; p+k <= len(b); p++ {
			diff := 0
			for i := 0; i < k; i++ {
				if b[p+i] != fragment[i] {
					diff++
				}
			}
			if diff > 1 || (exact && diff > 0) {
				continue
			}
			n := matchLength(b[p:min(len(b), p+len(fragment))], fragment, exact)
			if n >= minLength && n > best.Length {
				best = DNAMatch{GenomeName: g.Name(), Position: p, Length: n}
			}
		}
		if best.Length >= 0 {
			out = append(out, best)
		}
	}
	return out
}

func TestFindFragmentAgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randomBases := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = "ACGT"[rng.Intn(4)]
		}
		return string(b)
	}

	const k = 4
	m, err := New(k)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 6; i++ {
		m.AddGenome(mustGenome(t, string(rune('a'+i)), randomBases(200)))
	}
	lib := m.Genomes()

	for trial := 0; trial < 300; trial++ {
		var fragment string
		if trial%2 == 0 {
			src := lib[rng.Intn(len(lib))].Bases()
			start := rng.Intn(len(src) - 12)
			fb := []byte(src[start : start+4+rng.Intn(8)])
			fb[rng.Intn(len(fb))] = "ACGT"[rng.Intn(4)]
			fragment = string(fb)
		} else {
			fragment = randomBases(4 + rng.Intn(8))
		}
		minLength := k + rng.Intn(len(fragment)-k+1)
		exact := trial%3 == 0

		got, _ := m.FindFragment(fragment, minLength, exact)
		want := bruteFragment(lib, k, fragment, minLength, exact)
		if !slices.Equal(got, want) {
			t.Fatalf("FindFragment(%q, %d, %v) = %+v, brute force = %+v", fragment, minLength, exact, got, want)
		}
		for _, dm := range got {
			if dm.Length < minLength {
				t.Fatalf("match %+v shorter than minimum %d", dm, minLength)
			}
		}
	}
}

func TestFindRelatedOrdering(t *testing.T) {
	m := fixtureLibrary(t)
	for _, threshold := range []float64{0, 10, 40} {
		got, _ := m.FindRelated(genome1+genome3, 5, false, threshold)
		for i, gm := range got {
			if gm.PercentMatch < threshold {
				t.Errorf("threshold %v: %+v below threshold", threshold, gm)
			}
			if i == 0 {
				continue
			}
			prev := got[i-1]
			if prev.PercentMatch < gm.PercentMatch ||
				(prev.PercentMatch == gm.PercentMatch && prev.GenomeName > gm.GenomeName) {
				t.Errorf("threshold %v: results out of order: %+v", threshold, got)
			}
		}
	}
}

func BenchmarkAddGenome(b *testing.B) {
	g := mustGenome(b, "Genome 1", genome1+genome2+genome3)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m, _ := New(8)
		m.AddGenome(g)
	}
}

func BenchmarkFindFragment(b *testing.B) {
	m := fixtureLibrary(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.FindFragment("GAAGGGTT", 5, false)
	}
}

func BenchmarkFindRelated(b *testing.B) {
	m := fixtureLibrary(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.FindRelated(genome2, 8, false, 0)
	}
}
