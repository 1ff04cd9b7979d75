package session

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Problem is one invalid field found by LintGroup.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return p.Field + ": " + p.Message
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// LintGroup checks the user-editable settings of g and returns every problem found.
// An empty result means the group can be stored and rendered.
func LintGroup(g *Group) []Problem {
	var problems []Problem
	add := func(field, format string, args ...any) {
		problems = append(problems, Problem{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	for field, c := range map[string]string{"color1": g.Color1, "color2": g.Color2} {
		if !hexColor.MatchString(c) {
			add(field, "%q is not a #RRGGBB color", c)
		}
	}

	if _, err := strconv.ParseFloat(g.IsoValue, 64); err != nil {
		add("iso_value", "%q is not a number", g.IsoValue)
	}
	if s, err := strconv.ParseFloat(g.SurfaceScale, 64); err != nil {
		add("surface_scale", "%q is not a number", g.SurfaceScale)
	} else if s <= 0 {
		add("surface_scale", "must be positive")
	}

	minV, errMin := strconv.ParseFloat(g.MinMapValue, 64)
	if errMin != nil {
		add("min_map_value", "%q is not a number", g.MinMapValue)
	}
	maxV, errMax := strconv.ParseFloat(g.MaxMapValue, 64)
	if errMax != nil {
		add("max_map_value", "%q is not a number", g.MaxMapValue)
	}
	if g.ColorMapping && errMin == nil && errMax == nil && minV >= maxV {
		add("max_map_value", "must be greater than min_map_value")
	}
	if g.ColorMapping && strings.TrimSpace(g.FileName2) == "" {
		add("file_name2", "color mapping needs a second file")
	}

	for field, name := range map[string]string{"file_name1": g.FileName1, "file_name2": g.FileName2} {
		if name == "" {
			continue
		}
		if !IsViewerFile(name) {
			add(field, "%q is not a .cub or .cube file", name)
		}
		if strings.Contains(name, `\`) || path.IsAbs(name) || hasDotDot(name) {
			add(field, "%q must be a relative path inside the data root", name)
		}
	}

	// map iteration order is random
	slices.SortStableFunc(problems, func(a, b Problem) int { return strings.Compare(a.Field, b.Field) })
	return problems
}

// IsViewerFile reports whether name has an extension the browser viewer can load.
func IsViewerFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".cub" || ext == ".cube"
}

func hasDotDot(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
