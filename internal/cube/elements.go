package cube

// BohrToAngstrom converts cube-file lengths (bohr) to angstrom.
const BohrToAngstrom = 0.529177249

// DefaultCovalentRadius is returned for symbols missing from the radius table.
// It is the carbon sp3 radius.
const DefaultCovalentRadius = 0.76

// UnknownSymbol is the symbol assigned to atomic numbers outside the element table.
const UnknownSymbol = "X"

// DefaultElementColor is the display color for elements without an entry.
const DefaultElementColor = "#808080"

// elementSymbols is indexed by atomic number minus one.
var elementSymbols = [...]string{
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn", "Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd", "In", "Sn", "Sb", "Te", "I", "Xe",
}

// covalentRadii in angstrom, Cordero et al. 2008 (DOI:10.1039/B801115J).
var covalentRadii = map[string]float64{
	"H": 0.31, "He": 0.28,
	"Li": 1.28, "Be": 0.96, "B": 0.84, "C": 0.76, "N": 0.71, "O": 0.66, "F": 0.57, "Ne": 0.58,
	"Na": 1.66, "Mg": 1.41, "Al": 1.21, "Si": 1.11, "P": 1.07, "S": 1.05, "Cl": 1.02, "Ar": 1.06,
	"K": 2.03, "Ca": 1.76, "Sc": 1.70, "Ti": 1.60, "V": 1.53, "Cr": 1.39, "Mn": 1.39, "Fe": 1.32,
	"Co": 1.26, "Ni": 1.24, "Cu": 1.32, "Zn": 1.22, "Ga": 1.22, "Ge": 1.20, "As": 1.19, "Se": 1.20,
	"Br": 1.20, "Kr": 1.16,
	"I": 1.39, "Xe": 1.40,
}

var elementColors = map[string]string{
	"H": "#FFFFFF", "C": "#808080", "N": "#0000FF", "O": "#FF0000",
	"F": "#FFFF00", "Cl": "#00FF00", "Br": "#A52A2A", "I": "#940094",
	"Si": "#D9FFFF", "Ne": "#B3E3F5", "Ar": "#80D1E3", "Kr": "#48D1CC",
	"Xe": "#4194B3", "S": "#F1E266", "B": "#FEB5B8",
}

// ElementSymbol returns the chemical symbol for an atomic number,
// or UnknownSymbol when z is outside 1..54.
func ElementSymbol(z int) string {
	if z < 1 || z > len(elementSymbols) {
		return UnknownSymbol
	}
	return elementSymbols[z-1]
}

// CovalentRadius returns the covalent radius in angstrom for symbol.
// Unknown symbols fall back to DefaultCovalentRadius.
func CovalentRadius(symbol string) float64 {
	if r, ok := covalentRadii[symbol]; ok {
		return r
	}
	return DefaultCovalentRadius
}

// ElementColor returns the display color for symbol.
func ElementColor(symbol string) string {
	if c, ok := elementColors[symbol]; ok {
		return c
	}
	return DefaultElementColor
}
