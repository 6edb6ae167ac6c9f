// Package colorutil provides shared color utilities for overlays.
package colorutil

import (
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Black is returned for unknown palette names.
var Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}

// tab10 is the matplotlib "tab10" categorical palette.
var tab10 = []string{
	"#1f77b4", // blue
	"#ff7f0e", // orange
	"#2ca02c", // green
	"#d62728", // red
	"#9467bd", // purple
	"#8c564b", // brown
	"#e377c2", // pink
	"#7f7f7f", // gray
	"#bcbd22", // olive
	"#17becf", // cyan
}

var tab10Names = map[string]int{
	"blue": 0, "orange": 1, "green": 2, "red": 3, "purple": 4,
	"brown": 5, "pink": 6, "gray": 7, "olive": 8, "cyan": 9,
}

// Tab10 returns the i-th palette entry, wrapping around.
func Tab10(i int) color.RGBA {
	if i < 0 {
		i = -i
	}
	return hexToRGBA(tab10[i%len(tab10)])
}

// Named returns a tab10 color by name ("green", "red", ...). Unknown names
// return black.
func Named(name string) color.RGBA {
	i, ok := tab10Names[name]
	if !ok {
		return Black
	}
	return Tab10(i)
}

func hexToRGBA(hex string) color.RGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		return Black
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
