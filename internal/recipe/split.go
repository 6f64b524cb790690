package recipe

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
)

// Splitter breaks one answer label into the labels it stands for, e.g. a
// free-text "vim, emacs" into "vim" and "emacs".
type Splitter struct {
	Name        string
	Description string
	Split       func(label string) []string
}

// splitters is the registry of built-in splitters keyed by name.
var splitters = map[string]Splitter{
	"comma": {
		Name:        "comma",
		Description: "Splits on commas.",
		Split:       splitOn(func(r rune) bool { return r == ',' }),
	},
	"semicolon": {
		Name:        "semicolon",
		Description: "Splits on semicolons.",
		Split:       splitOn(func(r rune) bool { return r == ';' }),
	},
	"slash": {
		Name:        "slash",
		Description: "Splits on forward slashes, as in \"vim/neovim\".",
		Split:       splitOn(func(r rune) bool { return r == '/' }),
	},
	"list": {
		Name:        "list",
		Description: "Splits on commas, semicolons and slashes.",
		Split:       splitOn(func(r rune) bool { return r == ',' || r == ';' || r == '/' }),
	},
	"whitespace": {
		Name:        "whitespace",
		Description: "Splits on runs of whitespace.",
		Split:       splitOn(unicode.IsSpace),
	},
}

// splitOn returns a split function that trims every part and drops empty
// ones. A label that yields no parts maps to itself so its count survives.
func splitOn(sep func(rune) bool) func(string) []string {
	return func(label string) []string {
		var parts []string
		for _, p := range strings.FieldsFunc(label, sep) {
			if p = strings.TrimSpace(p); p != "" && !slices.Contains(parts, p) {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			return []string{label}
		}
		return parts
	}
}

// LookupSplitter returns the named built-in splitter.
func LookupSplitter(name string) (Splitter, error) {
	s, ok := splitters[name]
	if !ok {
		return Splitter{}, fmt.Errorf("recipe: unknown splitter %q (available: %s)",
			name, strings.Join(slices.Sorted(maps.Keys(splitters)), ", "))
	}
	return s, nil
}
