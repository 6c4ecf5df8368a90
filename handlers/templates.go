package handlers

import "html/template"

// Response pages shown to providers after they follow an accept/decline link.
const (
	TemplateResponseDone  = "response_done.html"
	TemplateResponseInfo  = "response_info.html"
	TemplateResponseError = "response_error.html"
)

const pageLayout = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:-apple-system,Segoe UI,Roboto,sans-serif;background:#f6f7f9;margin:0;padding:48px 16px;color:#1f2933}
.card{max-width:480px;margin:0 auto;background:#fff;border-radius:12px;padding:32px;box-shadow:0 2px 8px rgba(0,0,0,.08)}
h1{font-size:22px;margin:0 0 12px}
.ok h1{color:#1b7f4c}.info h1{color:#2f5fa7}.err h1{color:#b42318}
.ref{color:#6b7280;font-size:14px;margin-top:24px}
</style>
</head>
<body><div class="card {{.Class}}">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Reference}}<p class="ref">Booking {{.Reference}}</p>{{end}}
</div></body>
</html>{{end}}`

// ResponseTemplates parses the response pages for gin's SetHTMLTemplate.
func ResponseTemplates() *template.Template {
	t := template.Must(template.New("pages").Parse(pageLayout))
	template.Must(t.New(TemplateResponseDone).Parse(`{{template "layout" .}}`))
	template.Must(t.New(TemplateResponseInfo).Parse(`{{template "layout" .}}`))
	template.Must(t.New(TemplateResponseError).Parse(`{{template "layout" .}}`))
	return t
}
