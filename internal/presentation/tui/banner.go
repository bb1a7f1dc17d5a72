package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`        _                                 `, "#818cf8"},
	{` _ __  (_) _ __    ___  _ __   _ __  ___  _ __ `, "#a78bfa"},
	{`| '_ \ | || '_ \  / _ \| '_ \ | '__|/ _ \| '_ \`, "#c084fc"},
	{`| |_) || || |_) ||  __/| |_) || |  |  __/| |_) |`, "#e879f9"},
	{`| .__/ |_|| .__/  \___|| .__/ |_|   \___|| .__/`, "#f472b6"},
	{`|_|       |_|          |_|               |_|`, "#fb7185"},
}

// PrintBanner writes the pipeprep banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  rag pipeline test runs  v"+version).Faint())
	fmt.Fprintln(w)
}
