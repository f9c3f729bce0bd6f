package colors

import (
	"net/http"

	"github.com/fatih/color"
)

var (
	Red    = color.New(color.FgRed).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Blue   = color.New(color.FgBlue).SprintFunc()
)

// Status paints an http status code red for client and server errors and
// green otherwise.
func Status(code int) string {
	if code >= http.StatusBadRequest {
		return Red(code)
	}
	return Green(code)
}

// Warning labels a message for the terminal.
func Warning(msg string) string {
	return Yellow("Warning: ") + msg
}
