package devserver

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// chunkWords is the number of words per indexed chunk.
const chunkWords = 300

type chunk struct {
	source string
	text   string
	terms  map[string]bool
}

// Index is an in-memory keyword index over uploaded text documents.
type Index struct {
	mu     sync.RWMutex
	chunks []chunk
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Add splits text into chunks and indexes them under source. Binary content
// is ignored and reported as false.
func (x *Index) Add(source string, data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	words := strings.Fields(string(data))
	if len(words) == 0 {
		return false
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i := 0; i < len(words); i += chunkWords {
		end := min(i+chunkWords, len(words))
		text := strings.Join(words[i:end], " ")
		x.chunks = append(x.chunks, chunk{source: source, text: text, terms: terms(text)})
	}
	return true
}

// LoadDir indexes every regular file already present in dir.
func (x *Index) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		if x.Add(e.Name(), data) {
			n++
		}
	}
	return n, nil
}

// Search returns up to n chunks sharing the most terms with query, best
// first. Chunks sharing no terms are never returned.
func (x *Index) Search(query string, n int) []string {
	q := terms(query)
	if len(q) == 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	type hit struct {
		idx   int
		score int
	}
	var hits []hit
	for i, c := range x.chunks {
		score := 0
		for t := range q {
			if c.terms[t] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{idx: i, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = x.chunks[h.idx].text
	}
	return out
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "for": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "the": true,
	"to": true, "what": true, "who": true, "with": true,
}

func terms(text string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 2 || stopWords[w] {
			continue
		}
		out[w] = true
	}
	return out
}
