package profile

import (
	"fmt"
	"html/template"
	"io"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Profile report</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: right; }
th { background: #f0f0f0; }
td:first-child, th:first-child { text-align: left; }
</style>
</head>
<body>
<h1>Profile report</h1>
<p>{{.RowCount}} rows, {{.ColumnCount}} columns</p>

<h2>Columns</h2>
<table>
<tr><th>Column</th><th>Type</th><th>Count</th><th>Missing</th><th>Mean</th><th>Std</th><th>Min</th><th>P25</th><th>Median</th><th>P75</th><th>Max</th><th>Distinct</th></tr>
{{range .Columns}}
<tr>
<td>{{.Name}}</td><td>{{.Type}}</td><td>{{.Count}}</td><td>{{.MissingCount}}</td>
{{with .Numeric}}<td>{{printf "%.4g" .Mean}}</td><td>{{printf "%.4g" .Std}}</td><td>{{printf "%.4g" .Min}}</td><td>{{printf "%.4g" .P25}}</td><td>{{printf "%.4g" .Median}}</td><td>{{printf "%.4g" .P75}}</td><td>{{printf "%.4g" .Max}}</td><td></td>{{end}}
{{with .Text}}<td></td><td></td><td></td><td></td><td></td><td></td><td></td><td>{{.Distinct}}</td>{{end}}
</tr>
{{end}}
</table>

{{if .Correlations}}
<h2>Correlations</h2>
<table>
<tr><th>Column A</th><th>Column B</th><th>Pearson</th><th>N</th></tr>
{{range .Correlations}}
<tr><td>{{.ColumnA}}</td><td>{{.ColumnB}}</td><td>{{printf "%.4f" .Pearson}}</td><td>{{.SampleSize}}</td></tr>
{{end}}
</table>
{{end}}
</body>
</html>
`))

// RenderHTML writes a standalone HTML rendering of the report.
func RenderHTML(w io.Writer, r *Report) error {
	if err := reportTemplate.Execute(w, r); err != nil {
		return fmt.Errorf("rendering report html: %w", err)
	}
	return nil
}
