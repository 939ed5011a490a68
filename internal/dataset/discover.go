package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Sample is one labeled image on disk.
type Sample struct {
	Path  string
	Label int
}

// Split is the result of discovering one dataset split: a root directory
// holding one subdirectory per class. Class names sorted lexicographically
// define the label indices.
type Split struct {
	Root    string
	Classes []string
	Samples []Sample
}

// Discover scans root for the per-class subdirectory layout.
func Discover(root string) (*Split, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrap(err, "read dataset root")
	}
	classes := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	if len(classes) == 0 {
		return nil, errors.Errorf("no class directories under %s", root)
	}
	sort.Strings(classes)

	split := &Split{Root: root, Classes: classes}
	for label, class := range classes {
		dir := filepath.Join(root, class)
		var files []string
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if imageExts[strings.ToLower(filepath.Ext(d.Name()))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walk class %s", class)
		}
		sort.Strings(files)
		for _, path := range files {
			split.Samples = append(split.Samples, Sample{Path: path, Label: label})
		}
	}
	if len(split.Samples) == 0 {
		return nil, errors.Errorf("no images under %s", root)
	}
	return split, nil
}

// Counts returns the number of samples per class, indexed by label.
func (s *Split) Counts() []int {
	counts := make([]int, len(s.Classes))
	for _, sample := range s.Samples {
		counts[sample.Label]++
	}
	return counts
}
