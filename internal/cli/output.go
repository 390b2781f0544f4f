package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chairtools/chairstat/internal/style"
)

// render writes data in the configured output format. text is used for the
// human readable form.
func (a *app) render(cmd *cobra.Command, data any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()

	switch format := a.format(); format {
	case "json":
		style.PrintJSON(w, data)
	case "yaml":
		style.PrintYAML(w, data)
	case "text", "":
		text(w)
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
	return nil
}

// textOutput reports whether decorations like spinners and saved-file
// notices should be printed.
func (a *app) textOutput() bool {
	f := a.format()
	return (f == "text" || f == "") && !a.v.GetBool("quiet")
}

func (a *app) spinner(cmd *cobra.Command) style.Spinner {
	if !a.textOutput() {
		return style.NopSpinner{}
	}
	return style.NewSpinner(cmd.ErrOrStderr())
}
