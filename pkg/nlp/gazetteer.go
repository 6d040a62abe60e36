package nlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/udem-taln/nerbridge/pkg/models"
)

var _ models.ModelLoader = &GazetteerLoader{}

var ErrInvalidUTF8 = errors.New("sentence is not valid UTF-8")

// GazetteerModel is the on-disk format of a gazetteer model, <model_dir>/<name>.yaml.
type GazetteerModel struct {
	CaseSensitive *bool              `yaml:"case_sensitive"`
	Patterns      []GazetteerPattern `yaml:"patterns"`
}

type GazetteerPattern struct {
	Label string `yaml:"label"`
	Text  string `yaml:"text"`
}

// GazetteerLoader reads pattern-list models from a directory. It stands in for a
// statistical pipeline where no NLP server is available.
type GazetteerLoader struct {
	dir string
}

func NewGazetteerLoader(dir string) *GazetteerLoader {
	return &GazetteerLoader{dir: dir}
}

func (l *GazetteerLoader) Load(_ context.Context, name string) (models.ModelHandle, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid model name %q", name)
	}

	path := filepath.Join(l.dir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't find model '%s': %w", name, err)
	}

	var m GazetteerModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error parsing model %s: %w", path, err)
	}

	handle, err := newGazetteerHandle(name, m)
	if err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}

	log.Debugf(
		"gazetteer model %s: %s, %d patterns",
		name,
		humanize.Bytes(uint64(len(data))),
		len(handle.patterns),
	)

	return handle, nil
}

type gazetteerHandle struct {
	name          string
	caseSensitive bool
	// longest first, so the longest pattern wins at a given position
	patterns []GazetteerPattern
}

func newGazetteerHandle(name string, m GazetteerModel) (*gazetteerHandle, error) {
	if len(m.Patterns) == 0 {
		return nil, errors.New("model has no patterns")
	}
	h := &gazetteerHandle{
		name:          name,
		caseSensitive: m.CaseSensitive == nil || *m.CaseSensitive,
		patterns:      make([]GazetteerPattern, 0, len(m.Patterns)),
	}
	for i, p := range m.Patterns {
		p.Text = strings.TrimSpace(p.Text)
		if p.Text == "" || p.Label == "" {
			return nil, fmt.Errorf("pattern %d needs both text and label", i)
		}
		h.patterns = append(h.patterns, p)
	}
	sort.SliceStable(h.patterns, func(i, j int) bool {
		return utf8.RuneCountInString(h.patterns[i].Text) > utf8.RuneCountInString(h.patterns[j].Text)
	})
	return h, nil
}

func (h *gazetteerHandle) Name() string { return h.name }

// Analyze returns non-overlapping, word-bounded pattern matches from left to right.
func (h *gazetteerHandle) Analyze(ctx context.Context, sentence string) ([]models.Entity, error) {
	if !utf8.ValidString(sentence) {
		return nil, ErrInvalidUTF8
	}

	var entities []models.Entity
	for i := 0; i < len(sentence); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !atWordStart(sentence, i) {
			_, size := utf8.DecodeRuneInString(sentence[i:])
			i += size
			continue
		}
		if p, end, ok := h.matchAt(sentence, i); ok {
			entities = append(entities, models.Entity{
				Text:  sentence[i:end],
				Label: p.Label,
				Start: i,
				End:   end,
			})
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(sentence[i:])
		i += size
	}
	return entities, nil
}

// matchAt returns the first pattern matching at byte offset i and the byte offset where
// the match ends in sentence.
func (h *gazetteerHandle) matchAt(sentence string, i int) (GazetteerPattern, int, bool) {
	for _, p := range h.patterns {
		var (
			end int
			ok  bool
		)
		if h.caseSensitive {
			end = i + len(p.Text)
			ok = strings.HasPrefix(sentence[i:], p.Text)
		} else {
			var n int
			n, ok = foldPrefix(sentence[i:], p.Text)
			end = i + n
		}
		if ok && atWordEnd(sentence, end) {
			return p, end, true
		}
	}
	return GazetteerPattern{}, 0, false
}

// foldPrefix reports whether s starts with prefix under Unicode case folding, and how many
// bytes of s the match covers. Folded runes may differ in encoded length.
func foldPrefix(s, prefix string) (int, bool) {
	n := 0
	for _, want := range prefix {
		if n >= len(s) {
			return 0, false
		}
		got, size := utf8.DecodeRuneInString(s[n:])
		if !equalFoldRune(got, want) {
			return 0, false
		}
		n += size
	}
	return n, true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func atWordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func atWordEnd(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	return !isWordRune(r)
}
