package model

import (
	"sort"
	"strings"
)

// Special token IDs. The tokenizer reserves the first slots of every
// vocabulary for them.
const (
	UnkID = 0
	BosID = 1
	EosID = 2
)

var specialTokens = []string{"<unk>", "<bos>", "<eos>"}

// Tokenizer maps between words and integer IDs over a vocabulary
// learned from the training corpus.
type Tokenizer struct {
	Words  []string       `json:"words"`
	byWord map[string]int `json:"-"`
}

// NewTokenizer builds a word-level vocabulary from the given texts,
// keeping the maxVocab most frequent words. maxVocab <= 0 keeps all.
func NewTokenizer(texts []string, maxVocab int) *Tokenizer {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, w := range strings.Fields(strings.ToLower(text)) {
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	// Most frequent first; ties broken lexically for determinism.
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if maxVocab > 0 && len(words) > maxVocab {
		words = words[:maxVocab]
	}

	tok := &Tokenizer{Words: append(append([]string{}, specialTokens...), words...)}
	tok.buildIndex()
	return tok
}

func (t *Tokenizer) buildIndex() {
	t.byWord = make(map[string]int, len(t.Words))
	for i, w := range t.Words {
		t.byWord[w] = i
	}
}

// VocabSize returns the vocabulary size including special tokens.
func (t *Tokenizer) VocabSize() int {
	return len(t.Words)
}

// Encode converts text to token IDs. Unknown words map to UnkID.
func (t *Tokenizer) Encode(text string) []int {
	fields := strings.Fields(strings.ToLower(text))
	ids := make([]int, 0, len(fields))
	for _, w := range fields {
		if id, ok := t.byWord[w]; ok {
			ids = append(ids, id)
		} else {
			ids = append(ids, UnkID)
		}
	}
	return ids
}

// Pairs converts text into consecutive (previous, next) token pairs,
// framed by the begin and end tokens. This is the unit both the
// trainer and the evaluator consume.
func (t *Tokenizer) Pairs(text string) [][2]int {
	ids := append([]int{BosID}, t.Encode(text)...)
	ids = append(ids, EosID)

	pairs := make([][2]int, 0, len(ids)-1)
	for i := 0; i < len(ids)-1; i++ {
		pairs = append(pairs, [2]int{ids[i], ids[i+1]})
	}
	return pairs
}

// Decode converts token IDs back to a space-joined string, dropping
// special tokens.
func (t *Tokenizer) Decode(ids []int) string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < len(specialTokens) || id >= len(t.Words) {
			continue
		}
		words = append(words, t.Words[id])
	}
	return strings.Join(words, " ")
}
