// Package stages provides concrete Stage implementations: Dictionary
// (lookup-table field extraction), Regex (pattern field extraction), and
// Remote (out-of-process stages reached over gRPC).
package stages

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/estuary/docpipe/document"
)

// compiledDictionary is a parsed lookup table: lowercased term -> output
// token. Whole-word matching is enforced with a word-boundary regex built
// once at compile time.
type compiledDictionary struct {
	terms   map[string]string
	pattern *regexp.Regexp // only set when onlyWholeWords; alternation of all terms
}

// dictionaryCacheSize bounds the LRU a Dictionary stage builds in Start,
// keyed by the dictionary file's SHA-256. The cache belongs to one stage
// instance and is rebuilt on every Start, so it is not shared between
// stages or kept across restarts.
const dictionaryCacheSize = 32

// Dictionary is a Stage that scans a source field against a checksum-
// addressed lookup table and writes matches into a destination field.
type Dictionary struct {
	name string
	// SourceField is read for candidate text.
	SourceField string
	// DestField receives the sequence of matched tokens.
	DestField string
	// DictionaryPath is the lookup-table file: one "term,TOKEN" pair per
	// line.
	DictionaryPath string
	// OnlyWholeWords requires matches to fall on word boundaries.
	OnlyWholeWords bool

	cache *lru.Cache[string, *compiledDictionary]
	dict  *compiledDictionary
}

// NewDictionary returns a Dictionary stage. name is used for logging and
// implements pipeline.Named.
func NewDictionary(name, sourceField, destField, dictionaryPath string, onlyWholeWords bool) *Dictionary {
	return &Dictionary{
		name:           name,
		SourceField:    sourceField,
		DestField:      destField,
		DictionaryPath: dictionaryPath,
		OnlyWholeWords: onlyWholeWords,
	}
}

// Name implements pipeline.Named.
func (d *Dictionary) Name() string { return d.name }

// Start builds a new cache, reads the dictionary file and compiles it.
// Because the cache is new on each Start, the lookup never finds an
// entry and the file is compiled on every Start.
func (d *Dictionary) Start() error {
	cache, err := lru.New[string, *compiledDictionary](dictionaryCacheSize)
	if err != nil {
		return fmt.Errorf("stages: dictionary %q: building cache: %w", d.name, err)
	}
	d.cache = cache

	raw, err := os.ReadFile(d.DictionaryPath)
	if err != nil {
		return fmt.Errorf("stages: dictionary %q: reading %s: %w", d.name, d.DictionaryPath, err)
	}
	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])

	if cached, ok := d.cache.Get(key); ok {
		d.dict = cached
		return nil
	}

	compiled, err := compileDictionary(raw, d.OnlyWholeWords)
	if err != nil {
		return fmt.Errorf("stages: dictionary %q: compiling %s: %w", d.name, d.DictionaryPath, err)
	}
	d.cache.Add(key, compiled)
	d.dict = compiled
	return nil
}

// Stop releases the compiled dictionary cache.
func (d *Dictionary) Stop() error {
	d.cache = nil
	d.dict = nil
	return nil
}

// ProcessDocument scans SourceField against the compiled dictionary and
// writes the matched tokens into DestField, replacing any existing value.
// With OnlyWholeWords the tokens follow the order of the matches in the
// text, one per occurrence; otherwise each term found contributes its
// token once, in no defined order.
func (d *Dictionary) ProcessDocument(doc *document.Document) ([]*document.Document, error) {
	if !doc.HasNonNull(d.SourceField) {
		return nil, nil
	}
	text, err := doc.GetString(d.SourceField)
	if err != nil {
		return nil, fmt.Errorf("stages: dictionary %q: reading %s: %w", d.name, d.SourceField, err)
	}

	var matches []string
	if d.dict.pattern != nil {
		for _, m := range d.dict.pattern.FindAllString(text, -1) {
			if token, ok := d.dict.terms[strings.ToLower(m)]; ok {
				matches = append(matches, token)
			}
		}
	} else {
		lower := strings.ToLower(text)
		for term, token := range d.dict.terms {
			if strings.Contains(lower, term) {
				matches = append(matches, token)
			}
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	values := make([]document.Value, len(matches))
	for i, m := range matches {
		values[i] = document.NewString(m)
	}
	if err := doc.WriteToField(d.DestField, true, values...); err != nil {
		return nil, fmt.Errorf("stages: dictionary %q: writing %s: %w", d.name, d.DestField, err)
	}
	return nil, nil
}

func compileDictionary(raw []byte, onlyWholeWords bool) (*compiledDictionary, error) {
	terms := make(map[string]string)
	var boundaries []string

	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed dictionary line %q", line)
		}
		term := strings.ToLower(strings.TrimSpace(parts[0]))
		token := strings.TrimSpace(parts[1])
		terms[term] = token
		boundaries = append(boundaries, regexp.QuoteMeta(term))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	d := &compiledDictionary{terms: terms}
	if onlyWholeWords && len(boundaries) > 0 {
		pattern, err := regexp.Compile(`(?i)\b(` + strings.Join(boundaries, "|") + `)\b`)
		if err != nil {
			return nil, err
		}
		d.pattern = pattern
	}
	return d, nil
}
