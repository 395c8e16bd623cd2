package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
)

// Head holds the per-page metadata rendered into <head>
type Head struct {
	Title string
}

// DefaultTitle is used when a page does not set one
const DefaultTitle = "SSR"

// Template assembles the HTML shell around rendered markup
type Template struct {
	bundleURL string
}

func New(bundleURL string) *Template {
	return &Template{bundleURL: bundleURL}
}

type shellData struct {
	Title     string
	CSS       template.CSS
	Markup    template.HTML
	State     template.JS
	BundleURL string
}

var shell = template.Must(template.New("html").Parse(
	`<html lang="en">` +
		`<head>` +
		`<meta charset="utf-8">` +
		`<meta name="viewport" content="width=device-width, initial-scale=1">` +
		`<title>{{.Title}}</title>` +
		`{{if .CSS}}<style>{{.CSS}}</style>{{end}}` +
		`</head>` +
		`<body>` +
		`<div id="root">{{.Markup}}</div>` +
		`<script>window.__APOLLO_STATE__={{.State}};</script>` +
		`<script src="{{.BundleURL}}" charset="UTF-8"></script>` +
		`</body>` +
		`</html>`))

// Assemble renders the document without the doctype; callers prefix it.
// state is serialized as JSON with <, > and & escaped so it cannot close the script element.
func (t *Template) Assemble(markup string, state interface{}, css string, head Head) (string, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to serialize state: %w", err)
	}

	title := head.Title
	if title == "" {
		title = DefaultTitle
	}

	var buf bytes.Buffer
	err = shell.Execute(&buf, shellData{
		Title:     title,
		CSS:       template.CSS(css),
		Markup:    template.HTML(markup),
		State:     template.JS(stateJSON),
		BundleURL: t.bundleURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to assemble document: %w", err)
	}
	return buf.String(), nil
}
