package session

import (
	"fmt"
	"strconv"
)

const (
	// SurfaceOpacity is applied to every isosurface.
	SurfaceOpacity = 0.85

	// MappingGradient is the color scheme name used in mapping mode.
	MappingGradient = "rwb"
)

// Surface is one isosurface request for the rendering library.
type Surface struct {
	// File is the cube file to contour
	File    string  `json:"file"`
	IsoVal  float64 `json:"isoval"`
	Color   string  `json:"color,omitempty"`
	Opacity float64 `json:"opacity"`

	// VolData, when set, colors the surface by the values of this file
	VolData   string     `json:"voldata,omitempty"`
	VolScheme *VolScheme `json:"volscheme,omitempty"`
}

// VolScheme maps scalar values onto a color gradient.
type VolScheme struct {
	Gradient string  `json:"gradient"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mid      float64 `json:"mid"`
}

// RenderPlan is everything the browser needs to draw one group.
type RenderPlan struct {
	GroupID      string    `json:"group_id"`
	Files        []string  `json:"files"`
	SurfaceScale float64   `json:"surface_scale"`
	Mapping      bool      `json:"mapping"`
	Surfaces     []Surface `json:"surfaces"`
}

// BuildRenderPlan translates group settings into isosurface requests.
//
// In mapping mode (ColorMapping with both files set) a single surface is drawn
// from file 1 and colored by file 2. Otherwise each present file gets a
// positive lobe at +iso in its color and a negative lobe at -iso in the
// complementary color, unless that file is hidden with ShowFile1/ShowFile2.
// Mapping mode ignores the per-file toggles.
func BuildRenderPlan(g *Group) (*RenderPlan, error) {
	iso, err := strconv.ParseFloat(g.IsoValue, 64)
	if err != nil {
		return nil, fmt.Errorf("iso_value %q: %w", g.IsoValue, err)
	}
	scale, err := strconv.ParseFloat(g.SurfaceScale, 64)
	if err != nil {
		return nil, fmt.Errorf("surface_scale %q: %w", g.SurfaceScale, err)
	}

	plan := &RenderPlan{
		GroupID:      g.ID,
		Files:        g.Files(),
		SurfaceScale: scale,
		Surfaces:     []Surface{},
	}
	if g.FileName1 == "" {
		return plan, nil
	}

	if g.ColorMapping && g.FileName2 != "" {
		minV, err := strconv.ParseFloat(g.MinMapValue, 64)
		if err != nil {
			return nil, fmt.Errorf("min_map_value %q: %w", g.MinMapValue, err)
		}
		maxV, err := strconv.ParseFloat(g.MaxMapValue, 64)
		if err != nil {
			return nil, fmt.Errorf("max_map_value %q: %w", g.MaxMapValue, err)
		}
		plan.Mapping = true
		plan.Surfaces = append(plan.Surfaces, Surface{
			File:    g.FileName1,
			IsoVal:  iso,
			Opacity: SurfaceOpacity,
			VolData: g.FileName2,
			VolScheme: &VolScheme{
				Gradient: MappingGradient,
				Min:      minV,
				Max:      maxV,
			},
		})
		return plan, nil
	}

	for _, f := range []struct {
		name, color string
		shown       bool
	}{
		{g.FileName1, g.Color1, g.ShowFile1},
		{g.FileName2, g.Color2, g.ShowFile2},
	} {
		if f.name == "" || !f.shown {
			continue
		}
		plan.Surfaces = append(plan.Surfaces, Surface{File: f.name, IsoVal: iso, Color: f.color, Opacity: SurfaceOpacity})
		plan.Surfaces = append(plan.Surfaces, Surface{File: f.name, IsoVal: -iso, Color: ComplementaryColor(f.color), Opacity: SurfaceOpacity})
	}
	return plan, nil
}
