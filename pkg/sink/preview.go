package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// PreviewName is the registry name of the preview sink.
const PreviewName = "preview"

const previewPageSource = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ title }}</title>
<style>body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem}pre{overflow:auto}</style>
</head>
<body>
<main>
{{ body|safe }}
</main>
</body>
</html>
`

var (
	previewOnce     sync.Once
	previewPage     *pongo2.Template
	previewPageErr  error
	previewPolicy   *bluemonday.Policy
	previewMarkdown goldmark.Markdown
)

func previewAssets() (*pongo2.Template, error) {
	previewOnce.Do(func() {
		previewPage, previewPageErr = pongo2.FromString(previewPageSource)
		previewPolicy = bluemonday.UGCPolicy()
		previewMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return previewPage, previewPageErr
}

// Preview renders output as markdown into a sanitized standalone HTML page.
type Preview struct {
	title string
	mu    sync.Mutex
	w     io.Writer
}

// NewPreview returns a preview sink writing the page to w.
func NewPreview(w io.Writer, title string) *Preview {
	if title == "" {
		title = "varsub preview"
	}
	return &Preview{title: title, w: w}
}

func (p *Preview) Name() string { return PreviewName }

func (p *Preview) Deliver(ctx context.Context, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := RenderPreview(output, p.title)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.w, page); err != nil {
		return fmt.Errorf("sink: preview: %w", err)
	}
	return nil
}

// RenderPreview converts markdown to HTML, sanitizes it and embeds it in
// the preview page.
func RenderPreview(markdown, title string) (string, error) {
	page, err := previewAssets()
	if err != nil {
		return "", fmt.Errorf("sink: preview template: %w", err)
	}
	var buf bytes.Buffer
	if err := previewMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("sink: preview markdown: %w", err)
	}
	body := previewPolicy.SanitizeBytes(buf.Bytes())
	out, err := page.Execute(pongo2.Context{"title": title, "body": string(body)})
	if err != nil {
		return "", fmt.Errorf("sink: preview render: %w", err)
	}
	return out, nil
}
