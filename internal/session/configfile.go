package session

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
)

// ConfigVersion is written to every exported configuration file.
const ConfigVersion = "1.0"

// ConfigFile is the saved viewer configuration exchanged with the browser
// viewer. Field names follow the viewer's JSON.
type ConfigFile struct {
	Version     string         `json:"version"`
	Timestamp   string         `json:"timestamp"`
	GlobalTitle string         `json:"globalTitle,omitempty"`
	Viewers     []ViewerConfig `json:"viewers"`
}

// ViewerConfig is one group in a ConfigFile.
type ViewerConfig struct {
	ID           FlexString  `json:"id"`
	Title        string      `json:"title"`
	Color1       string      `json:"color1,omitempty"`
	Color2       string      `json:"color2,omitempty"`
	IsoValue     FlexNumber  `json:"isoValue,omitempty"`
	SurfaceScale FlexNumber  `json:"surfaceScale,omitempty"`
	ShowPositive *bool       `json:"showPositive,omitempty"`
	ShowCub1     *bool       `json:"showCub1,omitempty"`
	ShowCub2     *bool       `json:"showCub2,omitempty"`
	FileName1    string      `json:"fileName1"`
	FileName2    string      `json:"fileName2"`
	Notes        ViewerNotes `json:"notes"`
	ColorMapping bool        `json:"colorMapping,omitempty"`
	MinMapValue  FlexNumber  `json:"minMapValue,omitempty"`
	MaxMapValue  FlexNumber  `json:"maxMapValue,omitempty"`
}

// FlexNumber is a decimal kept as a string that decodes from a JSON string or number.
type FlexNumber string

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = FlexNumber(strings.TrimSpace(s))
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("expected number or string, got %s", b)
	}
	*n = FlexNumber(f.String())
	return nil
}

// FlexString decodes from a JSON string or number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(b []byte) error {
	var n FlexNumber
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	*s = FlexString(n)
	return nil
}

// MarshalJSON writes numeric ids as numbers, as the browser viewer does.
func (s FlexString) MarshalJSON() ([]byte, error) {
	if _, err := strconv.Atoi(string(s)); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(string(s))
}

// ViewerNotes decodes from a plain string or {"notes": "..."} and always
// encodes as the object form.
type ViewerNotes struct {
	Notes string `json:"notes"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *ViewerNotes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		n.Notes = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &n.Notes)
	}
	var obj struct {
		Notes string `json:"notes"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	n.Notes = obj.Notes
	return nil
}

// DecodeConfigFile reads a ConfigFile from r.
func DecodeConfigFile(r io.Reader) (*ConfigFile, error) {
	var cf ConfigFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("invalid configuration file: %w", err)
	}
	return &cf, nil
}

// Encode writes cf as indented JSON.
func (cf *ConfigFile) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cf)
}

// ToConfigFile converts a session into the saved configuration format.
// Viewer ids are the group positions.
func ToConfigFile(s *Session, now time.Time) *ConfigFile {
	cf := &ConfigFile{
		Version:     ConfigVersion,
		Timestamp:   now.UTC().Format(time.RFC3339),
		GlobalTitle: s.Title,
		Viewers:     make([]ViewerConfig, 0, len(s.Groups)),
	}
	for i, g := range s.Groups {
		show, show1, show2 := g.ShowPositive, g.ShowFile1, g.ShowFile2
		cf.Viewers = append(cf.Viewers, ViewerConfig{
			ID:           FlexString(strconv.Itoa(i)),
			Title:        g.Title,
			Color1:       g.Color1,
			Color2:       g.Color2,
			IsoValue:     FlexNumber(g.IsoValue),
			SurfaceScale: FlexNumber(g.SurfaceScale),
			ShowPositive: &show,
			ShowCub1:     &show1,
			ShowCub2:     &show2,
			FileName1:    g.FileName1,
			FileName2:    g.FileName2,
			Notes:        ViewerNotes{Notes: g.Notes},
			ColorMapping: g.ColorMapping,
			MinMapValue:  FlexNumber(g.MinMapValue),
			MaxMapValue:  FlexNumber(g.MaxMapValue),
		})
	}
	return cf
}

// Groups converts the viewers of cf into groups, filling missing settings
// from d. Viewers are ordered by numeric id when every id is numeric, else
// kept in file order. Positions are assigned 0..n-1.
func (cf *ConfigFile) Groups(d config.ViewerDefaults) []Group {
	order := make([]int, len(cf.Viewers))
	for i := range order {
		order[i] = i
	}
	if keys, ok := numericIDs(cf.Viewers); ok {
		slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(keys[a], keys[b]) })
	}

	groups := make([]Group, 0, len(order))
	for i, idx := range order {
		v := cf.Viewers[idx]
		title := v.Title
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("Group %d", i+1)
		}
		g := NewGroup(title, d)
		g.Position = i
		setIf(&g.Color1, v.Color1)
		setIf(&g.Color2, v.Color2)
		setIf(&g.IsoValue, string(v.IsoValue))
		setIf(&g.SurfaceScale, string(v.SurfaceScale))
		setIf(&g.MinMapValue, string(v.MinMapValue))
		setIf(&g.MaxMapValue, string(v.MaxMapValue))
		if v.ShowPositive != nil {
			g.ShowPositive = *v.ShowPositive
		}
		if v.ShowCub1 != nil {
			g.ShowFile1 = *v.ShowCub1
		}
		if v.ShowCub2 != nil {
			g.ShowFile2 = *v.ShowCub2
		}
		g.FileName1 = v.FileName1
		g.FileName2 = v.FileName2
		g.Notes = v.Notes.Notes
		g.ColorMapping = v.ColorMapping
		groups = append(groups, g)
	}
	return groups
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func numericIDs(vs []ViewerConfig) ([]float64, bool) {
	keys := make([]float64, len(vs))
	for i, v := range vs {
		f, err := strconv.ParseFloat(string(v.ID), 64)
		if err != nil {
			return nil, false
		}
		keys[i] = f
	}
	return keys, true
}
