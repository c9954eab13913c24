package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// htmlTemplate is a single self-contained document embedding the three
// tables; no external assets so it can be mailed around.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>GoodHound Report {{.ScanDate}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2em; color: #222; }
h1 { border-bottom: 2px solid #444; padding-bottom: 0.2em; }
h2 { margin-top: 2em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; font-size: 0.85em; }
th, td { border: 1px solid #bbb; padding: 0.4em 0.6em; text-align: left; vertical-align: top; word-break: break-word; }
th { background: #eee; }
tr:nth-child(even) { background: #f7f7f7; }
</style>
</head>
<body>
<h1>GoodHound Report &mdash; scan date {{.ScanDate}}</h1>
{{range .Tables}}
<h2>{{.Title}}</h2>
<table>
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}
</table>
{{end}}
</body>
</html>
`

// WriteHTML writes the whole report as one scandate-prefixed HTML document
// and returns the path written.
func (r *Report) WriteHTML(dir string) (string, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_GoodHound.html", r.ScanDate)
	path := avoidCollision(filepath.Join(dir, name))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data := struct {
		ScanDate string
		Tables   []table
	}{ScanDate: r.ScanDate, Tables: r.tables()}
	if err := tmpl.Execute(f, data); err != nil {
		return "", err
	}
	return path, nil
}
