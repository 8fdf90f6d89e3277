package index

import "testing"

func TestSimhashMatchesForEquivalentText(t *testing.T) {
	a := simhash("The quick brown fox jumps over the lazy dog")
	b := simhash("the QUICK brown FOX jumps over the lazy dog")
	if a != b {
		t.Error("fingerprints differ for case-variant text")
	}

	// Token order does not matter: every token votes independently.
	c := simhash("dog lazy the over jumps fox brown quick the")
	if a != c {
		t.Error("fingerprints differ for reordered tokens")
	}
}

func TestSimhashEmptyText(t *testing.T) {
	if got := simhash(""); got != 0 {
		t.Errorf("simhash(\"\") = %#x, want 0", got)
	}
	if got := simhash("   \n"); got != 0 {
		t.Errorf("simhash(whitespace) = %#x, want 0", got)
	}
}

func TestHammingSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b uint64
		want float64
	}{
		{"identical", 0xdeadbeef, 0xdeadbeef, 1.0},
		{"all_bits_differ", 0, ^uint64(0), 0.0},
		{"one_bit_differs", 0, 1, 1.0 - 1.0/64},
		{"half_differ", 0, 0xffffffff, 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hammingSimilarity(tc.a, tc.b); got != tc.want {
				t.Errorf("hammingSimilarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDedupeNearDuplicatesDropsRepeatedText(t *testing.T) {
	shared := "mitochondria are the powerhouse of the cell and produce chemical energy"
	cands := []candidate{
		{text: shared, score: 0.9},
		{text: shared, score: 0.8},
		{text: "sedimentary rocks form through deposition over geologic time", score: 0.7},
	}

	kept := dedupeNearDuplicates(cands, 0.85)
	if len(kept) != 2 {
		t.Fatalf("kept %d candidates, want 2", len(kept))
	}
	if kept[0].score != 0.9 {
		t.Errorf("kept[0].score = %v, want the higher-scored duplicate 0.9", kept[0].score)
	}
	if kept[1].score != 0.7 {
		t.Errorf("kept[1].score = %v, want 0.7", kept[1].score)
	}
}

func TestDedupeNearDuplicatesKeepsDistinctText(t *testing.T) {
	cands := []candidate{
		{text: "authentication tokens expire after thirty minutes of inactivity", score: 0.9},
		{text: "glaciers carve valleys across mountain ranges during ice ages", score: 0.8},
		{text: "compilers translate source programs into executable machine code", score: 0.7},
	}

	kept := dedupeNearDuplicates(cands, 0.85)
	if len(kept) != 3 {
		t.Errorf("kept %d candidates, want all 3", len(kept))
	}
}

func TestDedupeNearDuplicatesPassesEmptyText(t *testing.T) {
	cands := []candidate{
		{text: "", score: 0.9},
		{text: "", score: 0.8},
		{text: "volcanic eruptions release ash and gases into the atmosphere", score: 0.7},
	}

	kept := dedupeNearDuplicates(cands, 0.85)
	if len(kept) != 3 {
		t.Errorf("kept %d candidates, want 3: empty text is never compared", len(kept))
	}
}
