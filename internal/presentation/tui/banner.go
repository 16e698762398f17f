package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the detailtree banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"     _      _        _ _ _                 ", "#818cf8"},
		{"  __| | ___| |_ __ _(_) | |_ _ __ ___  ___ ", "#a78bfa"},
		{" / _` |/ _ \\ __/ _` | | | __| '__/ _ \\/ _ \\", "#c084fc"},
		{"| (_| |  __/ || (_| | | | |_| | |  __/  __/", "#e879f9"},
		{" \\__,_|\\___|\\__\\__,_|_|_|\\__|_|  \\___|\\___|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
