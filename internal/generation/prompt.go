package generation

import (
	"fmt"
	"strings"
	"text/template"
)

type dependencyOutput struct {
	Name   string
	Output string
}

type promptData struct {
	Title            string
	Description      string
	Context          string
	Dependencies     []dependencyOutput
	SectionName      string
	SectionPrompt    string
	UserInstructions string
}

var promptTemplate = template.Must(template.New("section").Parse(
	`You are writing one section of the document "{{.Title}}".
{{- with .Description}}

Document description:
{{.}}
{{- end}}
{{- with .Context}}

Document context:
{{.}}
{{- end}}
{{- with .Dependencies}}

Sections this section builds on:
{{- range .}}

### {{.Name}}
{{.Output}}
{{- end}}
{{- end}}

Section: {{.SectionName}}
{{- with .SectionPrompt}}
Instructions: {{.}}
{{- end}}
{{- with .UserInstructions}}

Additional instructions for this version:
{{.}}
{{- end}}

Write only the content of this section.
`))

// composePrompt renders the prompt of one section.
func composePrompt(d promptData) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, d); err != nil {
		return "", fmt.Errorf("composing prompt for section %s: %w", d.SectionName, err)
	}
	return b.String(), nil
}
