package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
)

// AlertWrap is the word-wrap width for alert detail pages.
const AlertWrap = 80

// RenderMarkdown writes md to w wrapped at width. Output that is not a
// terminal gets the notty style so pipes carry no escape codes; if glamour
// fails the raw markdown is written instead.
func RenderMarkdown(w io.Writer, md string, width int) {
	style := glamour.WithAutoStyle()
	if f, ok := w.(*os.File); !ok || !isTerminal(f.Fd()) {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err == nil {
		if out, err := renderer.Render(md); err == nil {
			fmt.Fprint(w, out)
			return
		}
	}
	fmt.Fprintln(w, md)
}
