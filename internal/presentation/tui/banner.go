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
	{`                     _                 _ _     `, "#38bdf8"},
	{`  ___  ___  ___ ___(_) ___  _ __   __| | |__  `, "#22d3ee"},
	{` / __|/ _ \/ __/ __| |/ _ \| '_ \ / _' | '_ \ `, "#2dd4bf"},
	{` \__ \  __/\__ \__ \ | (_) | | | | (_| | |_) |`, "#34d399"},
	{` |___/\___||___/___/_|\___/|_| |_|\__,_|_.__/ `, "#4ade80"},
}

// PrintBanner writes the sessiondb banner to w, colored when w is a terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	p := out.Profile

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Status renders a short colored key/value line, e.g. "backend  sqlite:data/sessions.db".
func Status(w io.Writer, key, value string) {
	out := termenv.NewOutput(w)
	p := out.Profile
	fmt.Fprintf(w, "  %s %s\n", out.String(fmt.Sprintf("%-8s", key)).Foreground(p.Color("#94a3b8")), out.String(value).Bold())
}
