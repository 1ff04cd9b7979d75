package session

import (
	"cmp"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// ScanEntry is a proposed group found by Scan: a title and one or two files
// relative to the scanned root, with forward slashes.
type ScanEntry struct {
	Title     string `json:"title"`
	FileName1 string `json:"file_name1"`
	FileName2 string `json:"file_name2,omitempty"`
}

// Rule pairs related files of one directory into groups.
// Match returns the entries it claims; the files it names are not grouped again.
type Rule interface {
	Match(files []string) []ScanEntry
}

// DefaultRules are applied by Scan when no rules are given.
var DefaultRules = []Rule{HoleElectronRule{}}

// HoleElectronRule pairs hole_N.cub with electron_N.cub (same N) into one
// group with the hole density as file 1. Unpaired files are left alone.
type HoleElectronRule struct{}

var (
	holePattern     = regexp.MustCompile(`(?:^|/)hole_(\d+)\.cube?$`)
	electronPattern = regexp.MustCompile(`(?:^|/)electron_(\d+)\.cube?$`)
)

// Match implements Rule. Pairs are keyed by the digit string, so hole_01
// pairs with electron_01 and hole_1 with electron_1.
func (HoleElectronRule) Match(files []string) []ScanEntry {
	type pair struct{ hole, electron string }
	pairs := make(map[string]*pair)

	get := func(n string) *pair {
		if pairs[n] == nil {
			pairs[n] = &pair{}
		}
		return pairs[n]
	}

	for _, f := range files {
		if m := holePattern.FindStringSubmatch(f); m != nil {
			if p := get(m[1]); p.hole == "" {
				p.hole = f
			}
			continue
		}
		if m := electronPattern.FindStringSubmatch(f); m != nil {
			if p := get(m[1]); p.electron == "" {
				p.electron = f
			}
		}
	}

	keys := make([]string, 0, len(pairs))
	for n := range pairs {
		keys = append(keys, n)
	}
	slices.SortFunc(keys, compareDigits)

	var out []ScanEntry
	for _, n := range keys {
		p := pairs[n]
		if p.hole == "" || p.electron == "" {
			continue
		}
		out = append(out, ScanEntry{
			Title:     "hole/electron " + n,
			FileName1: p.hole,
			FileName2: p.electron,
		})
	}
	return out
}

// compareDigits orders decimal digit strings by value, then by length,
// so "1" < "01" < "2" < "10".
func compareDigits(a, b string) int {
	ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if c := cmp.Compare(len(ta), len(tb)); c != 0 {
		return c
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	return cmp.Compare(len(a), len(b))
}

// Scan walks root and proposes groups for every .cub/.cube file. Within each
// directory the rules run in order over the files not yet claimed; every
// remaining file becomes a single-file group titled by its base name.
// Directories are visited in lexical order. Hidden directories are skipped.
func Scan(root string, rules ...Rule) ([]ScanEntry, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}

	byDir := make(map[string][]string)
	var dirs []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsViewerFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		dir := path.Dir(rel)
		if _, ok := byDir[dir]; !ok {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var entries []ScanEntry
	for _, dir := range dirs {
		files := byDir[dir]
		claimed := make(map[string]bool)

		for _, rule := range rules {
			var free []string
			for _, f := range files {
				if !claimed[f] {
					free = append(free, f)
				}
			}
			for _, e := range rule.Match(free) {
				entries = append(entries, e)
				claimed[e.FileName1] = true
				if e.FileName2 != "" {
					claimed[e.FileName2] = true
				}
			}
		}

		for _, f := range files {
			if claimed[f] {
				continue
			}
			entries = append(entries, ScanEntry{Title: baseTitle(f), FileName1: f})
		}
	}
	return entries, nil
}

// baseTitle strips the directory and extension: "a/b/homo.cub" -> "homo".
func baseTitle(rel string) string {
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}
