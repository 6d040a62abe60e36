// Package analyser scores NER predictions against an annotated corpus.
//
// Corpus lines mark entities inline as [text]_{TAG}, e.g.
//
//	Meet [Alice]_{PERSON} at [Montreal]_{LOC}.
//
// The first marked entity of a line is its target. Every tag is mapped with
// models.MapType and the resulting set is what predictions for the line are scored
// against.
package analyser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/udem-taln/nerbridge/pkg/models"
)

// annotation matches [text]_{TAG}. The [text_{TAG}] spelling is accepted too.
var annotation = regexp.MustCompile(`\[([^\[\]{}]+?)(?:\]_\{([^{}]*)\}|_\{([^{}]*)\}\])`)

var ErrSizeMismatch = errors.New("result and formatted corpus sizes differ")

// Pair is a formatted corpus line: the plain sentence and the entity to ask about.
type Pair struct {
	Target   string `json:"target"`
	Sentence string `json:"sentence"`
}

// Prediction holds the entity types predicted for the corpus line ID.
type Prediction struct {
	ID    int                 `json:"id"`
	Types []models.EntityType `json:"types"`
}

// LabelGetter is satisfied by gateway.Service.
type LabelGetter interface {
	Get(
		ctx context.Context,
		size models.ModelSize,
		sentence, target string,
	) (models.LabelsResponse, error)
}

// Analyser remembers the expected types of the last formatted corpus.
type Analyser struct {
	expected map[int][]models.EntityType
}

func New() *Analyser {
	return &Analyser{expected: map[int][]models.EntityType{}}
}

// Format strips the annotations from lines and returns them keyed by line index. With
// llm set the target keeps doubled brackets ([[Alice]]) so a language model can spot it.
// Expected types are recorded for Analyse.
func (a *Analyser) Format(lines []string, llm bool) map[int]Pair {
	a.expected = make(map[int][]models.EntityType, len(lines))
	result := make(map[int]Pair, len(lines))

	for id, line := range lines {
		var (
			pair  Pair
			types []models.EntityType
		)
		pair.Sentence = annotation.ReplaceAllStringFunc(line, func(m string) string {
			sub := annotation.FindStringSubmatch(m)
			text, tag := sub[1], sub[2]
			if tag == "" {
				tag = sub[3]
			}
			types = append(types, models.MapType(strings.TrimSpace(tag)))
			if pair.Target == "" {
				pair.Target = text
				if llm {
					return "[[" + text + "]]"
				}
			}
			return text
		})

		result[id] = pair
		a.expected[id] = types
	}

	return result
}

// Expected returns the types recorded for line id by the last Format call.
func (a *Analyser) Expected(id int) []models.EntityType {
	return a.expected[id]
}

// Analyse returns the share of lines whose predicted type set equals the expected set.
// Order and duplicates don't count. An empty result scores 0.
func (a *Analyser) Analyse(results []Prediction) (float64, error) {
	if len(results) == 0 {
		return 0, nil
	}
	if len(results) != len(a.expected) {
		return 0, fmt.Errorf("%w: %d results for %d lines", ErrSizeMismatch, len(results), len(a.expected))
	}

	predicted := make(map[int][]models.EntityType, len(results))
	for _, r := range results {
		predicted[r.ID] = r.Types
	}

	score := 0
	for id, want := range a.expected {
		if sameSet(want, predicted[id]) {
			score++
		}
	}
	return float64(score) / float64(len(a.expected)), nil
}

// Predict asks getter for the labels of every pair, in line order.
func Predict(
	ctx context.Context,
	getter LabelGetter,
	size models.ModelSize,
	pairs map[int]Pair,
) ([]Prediction, error) {
	ids := make([]int, 0, len(pairs))
	for id := range pairs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	predictions := make([]Prediction, 0, len(ids))
	for _, id := range ids {
		pair := pairs[id]
		labels, err := getter.Get(ctx, size, pair.Sentence, pair.Target)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", id, err)
		}
		predictions = append(predictions, Prediction{ID: id, Types: models.MapTypes(labels.Labels)})
	}
	return predictions, nil
}

// ReadLines reads a corpus, one sentence per line. Blank lines are skipped.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func sameSet(a, b []models.EntityType) bool {
	as := make(map[models.EntityType]struct{}, len(a))
	for _, t := range a {
		as[t] = struct{}{}
	}
	bs := make(map[models.EntityType]struct{}, len(b))
	for _, t := range b {
		bs[t] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for t := range as {
		if _, ok := bs[t]; !ok {
			return false
		}
	}
	return true
}

// OutputLines renders predictions as "<TYPE>,<TYPE>: <sentence>" lines, in line order.
func OutputLines(pairs map[int]Pair, predictions []Prediction) []string {
	lines := make([]string, 0, len(predictions))
	for _, p := range predictions {
		types := make([]string, len(p.Types))
		for i, t := range p.Types {
			types[i] = string(t)
		}
		lines = append(lines, strings.Join(types, ",")+": "+pairs[p.ID].Sentence)
	}
	return lines
}
