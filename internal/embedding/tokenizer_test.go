package embedding

import (
	"testing"
)

func TestHashTokenizer(t *testing.T) {
	tok := &HashTokenizer{}
	ids, attn, types := tok.Tokenize("slept well and ran", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths = %d/%d/%d, want 10 each", len(ids), len(attn), len(types))
	}
	if ids[0] != bertCLS {
		t.Errorf("ids[0] = %d, want CLS %d", ids[0], bertCLS)
	}
	if ids[5] != bertSEP {
		t.Errorf("ids[5] = %d, want SEP after 4 words", ids[5])
	}
	for i := 0; i <= 5; i++ {
		if attn[i] != 1 {
			t.Errorf("attention[%d] = %d, want 1", i, attn[i])
		}
	}
	if attn[6] != 0 {
		t.Error("padding must not be attended")
	}
}

func TestHashTokenizerTruncatesLongText(t *testing.T) {
	tok := &HashTokenizer{}
	long := ""
	for i := 0; i < 50; i++ {
		long += "word "
	}
	ids, attn, _ := tok.Tokenize(long, 8)
	if len(ids) != 8 {
		t.Fatalf("len = %d, want 8", len(ids))
	}
	// CLS + 6 words + SEP fills the budget exactly.
	if ids[7] != bertSEP {
		t.Errorf("ids[7] = %d, want SEP", ids[7])
	}
	if attn[7] != 1 {
		t.Error("SEP position must be attended")
	}
}

func TestSplitWords(t *testing.T) {
	words := splitWords("  slept\twell\nand ran  ")
	if len(words) != 4 {
		t.Fatalf("words = %v, want 4", words)
	}
	if words[0] != "slept" || words[3] != "ran" {
		t.Errorf("words = %v", words)
	}
	if len(splitWords("")) != 0 {
		t.Error("empty text has no words")
	}
}

func TestHashStringDeterministic(t *testing.T) {
	if HashString("reflection") != HashString("reflection") {
		t.Error("hash must be stable")
	}
	if HashString("reflection") < 0 {
		t.Error("hash must be non-negative")
	}
	if HashString("energy") == HashString("emotion") {
		t.Error("distinct words should hash apart")
	}
}
