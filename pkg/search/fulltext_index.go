package search

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Default BM25 parameters.
const (
	defaultBM25K1 = 1.5 // term frequency saturation
	defaultBM25B  = 0.75
)

// FulltextIndex is a BM25-scored inverted index over tokenized documents.
type FulltextIndex struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	documents     map[string]string
	invertedIndex map[string]map[string]int // term -> docID -> term frequency
	docLengths    map[string]int
	avgDocLength  float64
	docCount      int
}

// NewFulltextIndex creates an empty full-text index with the default BM25
// parameters.
func NewFulltextIndex() *FulltextIndex {
	return NewFulltextIndexWithParams(defaultBM25K1, defaultBM25B)
}

// NewFulltextIndexWithParams creates an empty full-text index scoring with
// the given BM25 k1 and b. Non-positive k1 and out-of-range b fall back to
// the defaults.
func NewFulltextIndexWithParams(k1, b float64) *FulltextIndex {
	if k1 <= 0 {
		k1 = defaultBM25K1
	}
	if b < 0 || b > 1 {
		b = defaultBM25B
	}
	return &FulltextIndex{
		k1:            k1,
		b:             b,
		documents:     make(map[string]string),
		invertedIndex: make(map[string]map[string]int),
		docLengths:    make(map[string]int),
	}
}

// Index adds or replaces the document stored under id.
func (f *FulltextIndex) Index(id string, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removeInternal(id)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return
	}

	f.documents[id] = text
	f.docLengths[id] = len(tokens)
	f.docCount++

	termFreq := make(map[string]int)
	for _, token := range tokens {
		termFreq[token]++
	}
	for term, freq := range termFreq {
		if f.invertedIndex[term] == nil {
			f.invertedIndex[term] = make(map[string]int)
		}
		f.invertedIndex[term][id] = freq
	}

	f.updateAvgDocLength()
}

// Remove deletes id from the index, if present.
func (f *FulltextIndex) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeInternal(id)
}

func (f *FulltextIndex) removeInternal(id string) {
	if _, exists := f.documents[id]; !exists {
		return
	}

	tokens := tokenize(f.documents[id])
	termFreq := make(map[string]int)
	for _, token := range tokens {
		termFreq[token]++
	}
	for term := range termFreq {
		if docs, ok := f.invertedIndex[term]; ok {
			delete(docs, id)
			if len(docs) == 0 {
				delete(f.invertedIndex, term)
			}
		}
	}

	delete(f.documents, id)
	delete(f.docLengths, id)
	f.docCount--
	f.updateAvgDocLength()
}

// Search performs BM25 keyword search and returns up to limit hits sorted by
// score descending, ties broken by id ascending.
func (f *FulltextIndex) Search(query string, limit int) []IndexHit {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.docCount == 0 {
		return nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, term := range queryTerms {
		docs, exists := f.invertedIndex[term]
		if !exists {
			continue
		}
		idf := f.calculateIDF(term)
		for docID, termFreq := range docs {
			docLen := float64(f.docLengths[docID])
			tf := float64(termFreq)
			numerator := tf * (f.k1 + 1)
			denominator := tf + f.k1*(1-f.b+f.b*(docLen/f.avgDocLength))
			scores[docID] += idf * (numerator / denominator)
		}
	}

	results := make([]IndexHit, 0, len(scores))
	for id, score := range scores {
		results = append(results, IndexHit{ID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// calculateIDF uses the Lucene/Elasticsearch BM25 IDF variant, which adds 1
// inside the log so common terms never score negative.
func (f *FulltextIndex) calculateIDF(term string) float64 {
	df := float64(len(f.invertedIndex[term]))
	n := float64(f.docCount)

	idf := math.Log(1 + (n-df+0.5)/(df+0.5))
	if idf < 0 {
		idf = 0
	}
	return idf
}

func (f *FulltextIndex) updateAvgDocLength() {
	if f.docCount == 0 {
		f.avgDocLength = 0
		return
	}

	var total int
	for _, length := range f.docLengths {
		total += length
	}
	f.avgDocLength = float64(total) / float64(f.docCount)
}

// Count returns the number of indexed documents.
func (f *FulltextIndex) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.docCount
}

// GetDocument retrieves the original text stored under id.
func (f *FulltextIndex) GetDocument(id string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	text, exists := f.documents[id]
	return text, exists
}

// tokenize lowercases text, splits on non-alphanumeric runes, drops stop
// words and single-character tokens.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	words := strings.FieldsFunc(text, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < 2 || isStopWord(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// stopWords is a minimal list of truly generic words. Domain terms are
// deliberately left unfiltered.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"with": true, "this": true, "but": true, "they": true,
	"we": true, "you": true, "your": true, "my": true, "their": true,
	"been": true, "do": true, "does": true, "did": true,
}

func isStopWord(word string) bool {
	return stopWords[word]
}
