package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/hostaudit/hostaudit/pkg/defaults"
)

// Global UI state
var (
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

const bannerArt = `
    __               __                  ___ __
   / /_  ____  _____/ /_____ ___  ______/ (_) /_
  / __ \/ __ \/ ___/ __/ __ '/ / / / __  / / __/
 / / / / /_/ (__  ) /_/ /_/ / /_/ / /_/ / / /_
/_/ /_/\____/____/\__/\__,_/\__,_/\__,_/_/\__/
`

const bannerSeparator = "_______________________________________________"

// PrintBanner writes the application banner with version info to w.
func PrintBanner(w io.Writer) {
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "                                v%s\n\n", VersionStyle.Render(defaults.Version))
}

// PrintDivider writes a stylized divider to w.
func PrintDivider(w io.Writer) {
	fmt.Fprintln(w, DividerStyle.Render(bannerSeparator))
}
