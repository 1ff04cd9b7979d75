package cube

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// HeaderLines is the number of lines before the first atom record.
const HeaderLines = 6

// maxPrealloc bounds the voxel buffer allocated up front, so a corrupt header
// cannot request an enormous slice before any data has been read.
const maxPrealloc = 1 << 20

type options struct {
	voxels bool
	strict bool
}

// Option configures Parse.
type Option func(*options)

// WithVoxels enables decoding of the volumetric section.
func WithVoxels() Option {
	return func(o *options) { o.voxels = true }
}

// Strict makes a short voxel section a FormatError instead of a warning, and
// rejects any token after the nx*ny*nz values. It implies WithVoxels.
func Strict() Option {
	return func(o *options) {
		o.voxels = true
		o.strict = true
	}
}

// Metadata is the free-text header and declared atom count.
type Metadata struct {
	Title     string `json:"title"`
	Comment   string `json:"comment"`
	AtomCount int    `json:"atom_count"`
}

// ExtractMetadata reads only the first three lines of text.
func ExtractMetadata(text string) (Metadata, error) {
	lines := splitLines(text)
	if len(lines) < 3 {
		return Metadata{}, &FormatError{Line: len(lines), Field: "atom count line", Expected: "at least 3 lines", Err: io.ErrUnexpectedEOF}
	}
	fields := strings.Fields(lines[2])
	if len(fields) == 0 {
		return Metadata{}, &FormatError{Line: 2, Field: "atom count", Expected: "integer"}
	}
	n, err := parseInt(fields[0])
	if err != nil {
		return Metadata{}, &FormatError{Line: 2, Field: "atom count", Expected: "integer", Err: err}
	}
	return Metadata{
		Title:     strings.TrimSpace(lines[0]),
		Comment:   strings.TrimSpace(lines[1]),
		AtomCount: n,
	}, nil
}

// Parse turns cube text into a Dataset. Every structural problem is reported as
// a *FormatError naming the offending line; Parse never panics.
func Parse(text string, opts ...Option) (*Dataset, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := &parser{lines: splitLines(text)}
	d := &Dataset{}

	title, err := p.line(0, "title")
	if err != nil {
		return nil, err
	}
	comment, err := p.line(1, "comment")
	if err != nil {
		return nil, err
	}
	d.Title = strings.TrimSpace(title)
	d.Comment = strings.TrimSpace(comment)

	// Line 2: atom count and origin
	fields, err := p.fields(2, "atom count and origin", 4)
	if err != nil {
		return nil, err
	}
	if d.AtomCount, err = p.int(2, "atom count", fields[0]); err != nil {
		return nil, err
	}
	if d.Origin, err = p.vec(2, "origin", fields[1:4]); err != nil {
		return nil, err
	}

	// Lines 3-5: grid vectors
	axes := [3]string{"x", "y", "z"}
	for i := range d.Grid {
		ln := 3 + i
		fields, err := p.fields(ln, "grid vector "+axes[i], 4)
		if err != nil {
			return nil, err
		}
		count, err := p.int(ln, "grid count "+axes[i], fields[0])
		if err != nil {
			return nil, err
		}
		step, err := p.vec(ln, "grid vector "+axes[i], fields[1:4])
		if err != nil {
			return nil, err
		}
		d.Grid[i] = GridVector{Count: count, X: step.X, Y: step.Y, Z: step.Z}
	}

	n := d.NumAtoms()
	if len(p.lines) < HeaderLines+n {
		return nil, &FormatError{
			Line:     len(p.lines),
			Field:    "atom records",
			Expected: fmt.Sprintf("%d atom lines, found %d", n, max(len(p.lines)-HeaderLines, 0)),
			Err:      io.ErrUnexpectedEOF,
		}
	}

	d.Atoms = make([]Atom, 0, n)
	for i := 0; i < n; i++ {
		ln := HeaderLines + i
		fields, err := p.fields(ln, "atom record", 5)
		if err != nil {
			return nil, err
		}
		z, err := p.int(ln, "atomic number", fields[0])
		if err != nil {
			return nil, err
		}
		charge, err := p.float(ln, "charge", fields[1])
		if err != nil {
			return nil, err
		}
		pos, err := p.vec(ln, "atom position", fields[2:5])
		if err != nil {
			return nil, err
		}
		d.Atoms = append(d.Atoms, Atom{
			Index:        i + 1,
			AtomicNumber: z,
			Symbol:       ElementSymbol(z),
			Charge:       charge,
			X:            pos.X,
			Y:            pos.Y,
			Z:            pos.Z,
		})
	}

	if o.voxels {
		if err := p.voxels(d, HeaderLines+n, o.strict); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// voxels reads values left to right across lines starting at line start until
// the buffer holds nx*ny*nz values or the text ends. In strict mode the rest of
// the text must be blank.
func (p *parser) voxels(d *Dataset, start int, strict bool) error {
	want := d.NumVoxels()
	buf := make([]float64, 0, min(want, maxPrealloc))

	for ln := start; ln < len(p.lines); ln++ {
		for _, tok := range strings.Fields(p.lines[ln]) {
			if len(buf) == want {
				if !strict {
					break
				}
				return &FormatError{
					Line:     ln,
					Field:    "voxel data",
					Expected: fmt.Sprintf("%d values", want),
					Err:      fmt.Errorf("unexpected trailing token %q", tok),
				}
			}
			v, err := p.float(ln, "voxel value", tok)
			if err != nil {
				return err
			}
			buf = append(buf, v)
		}
		if len(buf) == want && !strict {
			break
		}
	}

	if len(buf) < want {
		warn := &PartialDataWarning{Want: want, Got: len(buf)}
		if strict {
			return &FormatError{
				Line:     -1,
				Field:    "voxel data",
				Expected: fmt.Sprintf("%d values", want),
				Err:      warn,
			}
		}
		d.VoxelsPartial = true
		d.Warnings = append(d.Warnings, warn)
	}
	d.Voxels = buf
	return nil
}

type parser struct {
	lines []string
}

func (p *parser) line(i int, field string) (string, error) {
	if i >= len(p.lines) {
		return "", &FormatError{Line: i, Field: field, Expected: "line present", Err: io.ErrUnexpectedEOF}
	}
	return p.lines[i], nil
}

func (p *parser) fields(i int, field string, want int) ([]string, error) {
	s, err := p.line(i, field)
	if err != nil {
		return nil, err
	}
	f := strings.Fields(s)
	if len(f) < want {
		return nil, &FormatError{
			Line:     i,
			Field:    field,
			Expected: fmt.Sprintf("%d fields, found %d", want, len(f)),
		}
	}
	return f, nil
}

func (p *parser) int(line int, field, tok string) (int, error) {
	v, err := parseInt(tok)
	if err != nil {
		return 0, &FormatError{Line: line, Field: field, Expected: "integer", Err: err}
	}
	return v, nil
}

func (p *parser) float(line int, field, tok string) (float64, error) {
	v, err := parseFloat(tok)
	if err != nil {
		return 0, &FormatError{Line: line, Field: field, Expected: "number", Err: err}
	}
	return v, nil
}

func (p *parser) vec(line int, field string, toks []string) (r3.Vec, error) {
	var xyz [3]float64
	for k, tok := range toks {
		v, err := p.float(line, field, tok)
		if err != nil {
			return r3.Vec{}, err
		}
		xyz[k] = v
	}
	return r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// splitLines splits on '\n' and drops a trailing '\r' from each line.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// parseFloat accepts Fortran-style exponents (1.0D-03) as well as Go syntax.
func parseFloat(tok string) (float64, error) {
	if strings.ContainsAny(tok, "dD") {
		tok = strings.NewReplacer("d", "e", "D", "E").Replace(tok)
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// parseInt parses an integer field, truncating decimal input toward zero.
func parseInt(tok string) (int, error) {
	if v, err := strconv.Atoi(tok); err == nil {
		if v > math.MaxInt32 || v < -math.MaxInt32 {
			return 0, fmt.Errorf("integer out of range: %s", tok)
		}
		return v, nil
	}
	f, err := parseFloat(tok)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("integer out of range: %s", tok)
	}
	return int(math.Trunc(f)), nil
}
