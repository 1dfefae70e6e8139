// Package dataset pairs waveform and label files under <root>/<split>/ and
// turns each pair into a feature/label training example on demand.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrDataIntegrity reports data and label files that cannot be paired
var ErrDataIntegrity = errors.New("dataset: data integrity error")

// Category of an example, negatives first
type Category string

const (
	CategoryNegative Category = "negative"
	CategoryPositive Category = "positive"
)

var categories = []Category{CategoryNegative, CategoryPositive}

// Pair is one waveform file and its label file
type Pair struct {
	Data     string   `json:"data" msgpack:"data"`
	Label    string   `json:"label" msgpack:"label"`
	Category Category `json:"category" msgpack:"category"`
}

// Positive reports whether the pair comes from the positive category
func (p Pair) Positive() bool {
	return p.Category == CategoryPositive
}

// Enumerate lists the pairs of one split. Within a category data and label
// files are matched by lexicographic order; negatives precede positives.
// A count mismatch is an ErrDataIntegrity. With verifyStems set the part of
// each name after "data_" and "label_" must also agree.
func Enumerate(root, split, labelExt string, verifyStems bool) ([]Pair, error) {
	dir := filepath.Join(root, split)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: split directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset: %s is not a directory", dir)
	}

	labelExt = strings.TrimPrefix(labelExt, ".")

	var pairs []Pair
	for _, category := range categories {
		data, err := sortedGlob(filepath.Join(dir, "data_"+string(category)+"*.wav"))
		if err != nil {
			return nil, err
		}
		labels, err := sortedGlob(filepath.Join(dir, "label_"+string(category)+"*."+labelExt))
		if err != nil {
			return nil, err
		}

		if len(data) != len(labels) {
			return nil, fmt.Errorf("%s: %d %s data files but %d label files: %w",
				dir, len(data), category, len(labels), ErrDataIntegrity)
		}

		for i := range data {
			if verifyStems {
				ds := stem(data[i], "data_")
				ls := stem(labels[i], "label_")
				if ds != ls {
					return nil, fmt.Errorf("%s pairs with %s: %w",
						filepath.Base(data[i]), filepath.Base(labels[i]), ErrDataIntegrity)
				}
			}
			pairs = append(pairs, Pair{Data: data[i], Label: labels[i], Category: category})
		}
	}

	return pairs, nil
}

func sortedGlob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("dataset: glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// stem strips the directory, the prefix and the extension:
// "dir/data_positive_7.wav" -> "positive_7".
func stem(path, prefix string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimPrefix(base, prefix)
}
