package ui

import (
	"strings"

	"github.com/common-nighthawk/go-figure"
)

// Banner renders the ASCII-art title shown at the top of the interactive menu.
func Banner(title string) string {
	fig := figure.NewFigure(title, "small", true)
	art := strings.TrimRight(fig.String(), "\n")
	if plain() {
		return art
	}
	return Info.Sprint(art)
}
