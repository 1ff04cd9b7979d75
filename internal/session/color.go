package session

import (
	"fmt"
	"strconv"
	"strings"
)

// ComplementaryColor returns the per-channel inverse (255 - c) of a #RRGGBB
// color, used for the negative lobe of an isosurface. Invalid input yields
// the input unchanged.
func ComplementaryColor(hex string) string {
	s := strings.TrimPrefix(hex, "#")
	if len(s) != 6 {
		return hex
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return hex
	}
	r, g, b := 255-(v>>16)&0xff, 255-(v>>8)&0xff, 255-v&0xff
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}
