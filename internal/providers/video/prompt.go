package video

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AssemblePrompt builds the provider prompt text from the user prompt and the
// requested style label. Style labels arrive from the dashboard in assorted
// casings ("cinematic", "STOP MOTION"); providers respond better to a single
// normalized form.
func AssemblePrompt(prompt, style string) string {
	prompt = strings.TrimSpace(prompt)
	style = strings.TrimSpace(style)
	if style == "" {
		return prompt
	}
	c := cases.Title(language.Und)
	label := c.String(strings.ToLower(style))
	if prompt == "" {
		return label + " style"
	}
	return prompt + ", " + label + " style"
}
