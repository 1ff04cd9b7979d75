package ops

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/bane-dysta/Orbital-Viewer/internal/chart"
	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/cube"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
)

// CubeInput names one cube source: either File (relative to the data root)
// or inline Text, never both.
type CubeInput struct {
	File string
	Text string

	// Name labels inline text in results; defaults to "input.cube"
	Name string

	// Voxels decodes the volumetric section and computes statistics
	Voxels bool

	// Strict turns a short voxel section into a PARTIAL_DATA error
	Strict bool

	// Tolerance overrides cfg.BondTolerance when positive
	Tolerance float64
}

// DisplayAtom is an atom in angstrom with its sphere color.
type DisplayAtom struct {
	cube.Atom
	Color string `json:"color"`
}

// LoadCubeOutput is a parsed cube with derived structure. Atom coordinates
// are in angstrom; Origin and Grid are as read (bohr).
type LoadCubeOutput struct {
	Name      string             `json:"name"`
	Title     string             `json:"title"`
	Comment   string             `json:"comment"`
	AtomCount int                `json:"atom_count"`
	Origin    r3.Vec             `json:"origin"`
	Grid      [3]cube.GridVector `json:"grid"`
	Atoms     []DisplayAtom      `json:"atoms"`
	Bonds     []cube.Bond        `json:"bonds"`
	Fragments [][]int            `json:"fragments"`
	Tolerance float64            `json:"tolerance"`

	BoundingBox *cube.Box `json:"bounding_box,omitempty"`
	Center      *r3.Vec   `json:"center,omitempty"`

	NumVoxels int              `json:"num_voxels"`
	Stats     *cube.VoxelStats `json:"stats,omitempty"`
	Partial   bool             `json:"partial,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// LoadCube reads, validates and parses a cube, then derives bonds and
// fragments from the atom positions.
func LoadCube(ctx context.Context, cfg *config.Config, input CubeInput) (*LoadCubeOutput, error) {
	d, name, err := parseCube(ctx, cfg, input)
	if err != nil {
		return nil, err
	}

	tol := input.Tolerance
	if tol <= 0 {
		tol = cfg.BondTolerance
	}
	if tol <= 0 {
		tol = cube.DefaultBondTolerance
	}

	atoms := d.AngstromAtoms()
	bonds := cube.BuildBonds(atoms, tol)
	display := make([]DisplayAtom, len(atoms))
	for i, a := range atoms {
		display[i] = DisplayAtom{Atom: a, Color: cube.ElementColor(a.Symbol)}
	}
	out := &LoadCubeOutput{
		Name:      name,
		Title:     d.Title,
		Comment:   d.Comment,
		AtomCount: d.AtomCount,
		Origin:    d.Origin,
		Grid:      d.Grid,
		Atoms:     display,
		Bonds:     bonds,
		Fragments: cube.Fragments(len(atoms), bonds),
		Tolerance: tol,
		NumVoxels: d.NumVoxels(),
		Partial:   d.VoxelsPartial,
	}
	if box, ok := cube.BoundingBox(atoms); ok {
		out.BoundingBox = &box
	}
	if c, ok := cube.Center(atoms); ok {
		out.Center = &c
	}
	if input.Voxels {
		st := cube.Stats(d.Voxels)
		out.Stats = &st
	}
	for _, w := range d.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return out, nil
}

// ValidateCubeOutput reports the pre-flight structural check of a cube.
type ValidateCubeOutput struct {
	Name  string              `json:"name"`
	Valid bool                `json:"valid"`
	Error *errors.ViewerError `json:"error,omitempty"`

	// Header fields, set when the cube is valid
	Title     string `json:"title,omitempty"`
	Comment   string `json:"comment,omitempty"`
	AtomCount int    `json:"atom_count,omitempty"`
}

// ValidateCube runs the structural pre-flight check. An invalid cube is a
// successful result with Valid=false; only read failures return an error.
func ValidateCube(ctx context.Context, cfg *config.Config, input CubeInput) (*ValidateCubeOutput, error) {
	text, name, err := readCubeText(ctx, cfg, input)
	if err != nil {
		return nil, err
	}
	out := &ValidateCubeOutput{Name: name, Valid: true}
	if err := cube.Check(text); err == nil {
		if md, err := cube.ExtractMetadata(text); err == nil {
			out.Title, out.Comment, out.AtomCount = md.Title, md.Comment, md.AtomCount
		}
	} else {
		out.Valid = false
		var vErr *errors.ViewerError
		if stderrors.As(errors.FromCube(err), &vErr) {
			out.Error = vErr
		} else {
			out.Error = errors.NewInvalidRequest(err.Error())
		}
	}
	return out, nil
}

// CubeHistogram renders the voxel value distribution of a cube as PNG.
// bins <= 0 selects chart.DefaultBins.
func CubeHistogram(ctx context.Context, cfg *config.Config, input CubeInput, bins int) ([]byte, error) {
	input.Voxels = true
	d, name, err := parseCube(ctx, cfg, input)
	if err != nil {
		return nil, err
	}
	title := d.Title
	if title == "" {
		title = name
	}
	png, err := chart.Histogram(d.Voxels, bins, title)
	if stderrors.Is(err, chart.ErrNoData) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s has no voxel values", name))
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return png, nil
}

func parseCube(ctx context.Context, cfg *config.Config, input CubeInput) (*cube.Dataset, string, error) {
	text, name, err := readCubeText(ctx, cfg, input)
	if err != nil {
		return nil, "", err
	}

	// Reject before the full parse so the reported error is the pre-flight one.
	if err := cube.Check(text); err != nil {
		return nil, "", errors.FromCube(err)
	}

	var opts []cube.Option
	if input.Strict {
		opts = append(opts, cube.Strict())
	} else if input.Voxels {
		opts = append(opts, cube.WithVoxels())
	}
	d, err := cube.Parse(text, opts...)
	if err != nil {
		return nil, "", errors.FromCube(err)
	}
	if ctx.Err() != nil {
		return nil, "", errors.NewCancelled("load cube")
	}
	return d, name, nil
}

// readCubeText returns the cube text named by input and a display name.
func readCubeText(ctx context.Context, cfg *config.Config, input CubeInput) (string, string, error) {
	if ctx.Err() != nil {
		return "", "", errors.NewCancelled("load cube")
	}

	hasFile := strings.TrimSpace(input.File) != ""
	hasText := input.Text != ""
	switch {
	case hasFile && hasText:
		return "", "", errors.NewInvalidRequest("specify either file or text, not both")
	case !hasFile && !hasText:
		return "", "", errors.NewInvalidRequest("file or text is required")
	}

	if hasText {
		name := input.Name
		if name == "" {
			name = "input.cube"
		}
		if cfg.MaxFileSize > 0 && int64(len(input.Text)) > cfg.MaxFileSize {
			return "", "", errors.NewFileTooLarge(name, cfg.MaxFileSize)
		}
		return input.Text, name, nil
	}

	if !cube.IsCubeFile(input.File) {
		return "", "", errors.NewUnsupportedFile(input.File)
	}
	abs, err := ResolveDataPath(cfg.DataRoot, input.File)
	if err != nil {
		return "", "", err
	}
	text, err := cube.ReadFile(abs, cfg.MaxFileSize)
	if err != nil {
		var tooLarge *cube.TooLargeError
		switch {
		case stderrors.As(err, &tooLarge):
			return "", "", errors.FromCube(err)
		case os.IsNotExist(err):
			return "", "", errors.NewFileNotFound(input.File)
		default:
			return "", "", errors.NewInvalidRequest(fmt.Sprintf("cannot read %s: %v", input.File, err))
		}
	}
	return text, path.Base(input.File), nil
}
