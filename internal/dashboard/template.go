package dashboard

import (
	"html/template"
	"time"
)

type chartSection struct {
	Title string
	Image template.URL
}

type page struct {
	UserID       int64
	Generated    time.Time
	Empty        bool
	EmptyMessage string
	Total        int
	Positive     int
	Negative     int
	Neutral      int
	Charts       []chartSection
}

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>MENTA | Dashboard {{.UserID}}</title>
<style>
body { font-family: sans-serif; max-width: 900px; margin: 2em auto; color: #2d3b2d; }
h1 { color: #3a7d44; }
.summary span { margin-right: 1.5em; }
.chart img { max-width: 100%; }
.empty { font-style: italic; color: #777; }
</style>
</head>
<body>
<h1>🌿 Dashboard de bienestar</h1>
<p>Usuario {{.UserID}} · generado {{.Generated.Format "02/01/2006 15:04"}}</p>
{{if .Empty}}
<p class="empty">{{.EmptyMessage}}</p>
{{else}}
<div class="summary">
<span>Interacciones: <b>{{.Total}}</b></span>
<span>✅ {{.Positive}}</span>
<span>⚠️ {{.Negative}}</span>
<span>➖ {{.Neutral}}</span>
</div>
{{range .Charts}}
<div class="chart">
<h2>{{.Title}}</h2>
{{if .Image}}<img src="{{.Image}}" alt="{{.Title}}">{{else}}<p class="empty">Sin datos para este gráfico.</p>{{end}}
</div>
{{end}}
{{end}}
</body>
</html>
`))
