package history

import (
	"html/template"
	"io"

	"go-chi-calculator/internal/calculator"
)

var panelTemplate = template.Must(template.New("history").Funcs(template.FuncMap{
	"display": calculator.FormatDisplay,
}).Parse(`{{- if not . -}}
<p class="history-empty">History is empty</p>
{{- else -}}
{{- range $i, $e := . }}
<div class="history-item" data-index="{{ $i }}">
	<span class="history-expression">{{ $e.Expression }}</span>
	<span class="history-result">= {{ display $e.Result }}</span>
</div>
{{- end }}
{{- end }}
`))

// RenderHTML writes the history panel markup for entries. Expression and
// result text is escaped.
func RenderHTML(w io.Writer, entries []Entry) error {
	return panelTemplate.Execute(w, entries)
}
