package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Concierge.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{"   ___                _                   ", "#818cf8"},
		{"  / __|___ _ _  __ __(_)___ _ _ __ _ ___  ", "#a78bfa"},
		{" | (__/ _ \\ ' \\/ _/ -_) / -_) '_/ _` / -_) ", "#c084fc"},
		{"  \\___\\___/_||_\\__\\___|_\\___|_| \\__, \\___| ", "#e879f9"},
		{"                                |___/      ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
