package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pelletier/go-toml"
)

// DefaultsFile is the viewer defaults file name, looked up in the base
// directory and then the working directory.
const DefaultsFile = "defaults.toml"

// ViewerDefaults are the initial settings of a new viewer group.
type ViewerDefaults struct {
	Color1       string `toml:"color1" json:"color1"`
	Color2       string `toml:"color2" json:"color2"`
	IsoValue     string `toml:"iso_value" json:"iso_value"`
	SurfaceScale string `toml:"surface_scale" json:"surface_scale"`
	ShowPositive bool   `toml:"show_positive" json:"show_positive"`
	MinMapValue  string `toml:"min_map_value" json:"min_map_value"`
	MaxMapValue  string `toml:"max_map_value" json:"max_map_value"`
}

// BuiltinDefaults returns the defaults used when no defaults.toml exists.
func BuiltinDefaults() ViewerDefaults {
	return ViewerDefaults{
		Color1:       "#0000FF",
		Color2:       "#FF0000",
		IsoValue:     "0.002",
		SurfaceScale: "1.0",
		ShowPositive: true,
		MinMapValue:  "-0.02",
		MaxMapValue:  "0.03",
	}
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// LoadDefaults layers each existing defaults.toml in dirs over the built-in
// defaults, in order. Missing files are skipped. Invalid values are logged
// and ignored.
func LoadDefaults(dirs ...string) (ViewerDefaults, error) {
	d := BuiltinDefaults()
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, DefaultsFile)
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return d, err
		}
		err = d.apply(f, path)
		f.Close()
		if err != nil {
			return d, err
		}
	}
	return d, nil
}

// apply overlays keys present in r. Values may be TOML strings or numbers.
func (d *ViewerDefaults) apply(r io.Reader, name string) error {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if v, ok := tree.Get("color1").(string); ok {
		setColor(&d.Color1, v, "color1", name)
	}
	if v, ok := tree.Get("color2").(string); ok {
		setColor(&d.Color2, v, "color2", name)
	}
	for key, dst := range map[string]*string{
		"iso_value":     &d.IsoValue,
		"surface_scale": &d.SurfaceScale,
		"min_map_value": &d.MinMapValue,
		"max_map_value": &d.MaxMapValue,
	} {
		if !tree.Has(key) {
			continue
		}
		s, ok := numberString(tree.Get(key))
		if !ok {
			log.Printf("WARNING: %s: %s is not a number, ignoring", name, key)
			continue
		}
		*dst = s
	}
	if tree.Has("show_positive") {
		if v, ok := tree.Get("show_positive").(bool); ok {
			d.ShowPositive = v
		} else {
			log.Printf("WARNING: %s: show_positive is not a boolean, ignoring", name)
		}
	}
	return nil
}

func setColor(dst *string, v, key, name string) {
	if !hexColor.MatchString(v) {
		log.Printf("WARNING: %s: %s %q is not a #RRGGBB color, ignoring", name, key, v)
		return
	}
	*dst = v
}

// numberString renders a TOML number, or a string holding one, as a decimal string.
func numberString(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		if _, err := strconv.ParseFloat(n, 64); err != nil {
			return "", false
		}
		return n, true
	case int64:
		return strconv.FormatInt(n, 10), true
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64), true
	}
	return "", false
}

// WriteDefaults encodes d as TOML.
func WriteDefaults(w io.Writer, d ViewerDefaults) error {
	return toml.NewEncoder(w).Encode(d)
}
