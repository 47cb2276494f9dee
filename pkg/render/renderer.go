package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goliatone/go-tplguard/pkg/codec"
	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/render/template"
)

// Renderer executes compiled templates. It never re-validates the context
// against component schemas; the compiler already proved which paths a
// template can read.
type Renderer struct {
	engine    template.Engine
	sanitizer Sanitizer
	logger    *slog.Logger
	observers []Observer
}

// New constructs a Renderer over engine.
func New(engine template.Engine, options ...Option) *Renderer {
	r := &Renderer{
		engine: engine,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Render executes the template registered under name with data as context.
// Unknown names, including templates whose compilation failed, return
// TemplateNotFound.
func (r *Renderer) Render(ctx context.Context, name string, data any) (string, error) {
	return r.RenderTo(ctx, name, data)
}

// RenderTo is Render that also copies the output to every writer.
func (r *Renderer) RenderTo(ctx context.Context, name string, data any, out ...io.Writer) (result string, err error) {
	if r == nil || r.engine == nil {
		return "", tgerrors.New(tgerrors.KindRender, "renderer is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", tgerrors.Wrap(tgerrors.KindRender, "render canceled", err).WithTemplate(name)
	}

	started := time.Now()
	defer func() {
		r.observe(name, time.Since(started), err)
	}()

	result, err = r.engine.Render(name, data)
	if err != nil {
		if tgerrors.KindOf(err) == "" {
			err = tgerrors.Wrap(tgerrors.KindRender, fmt.Sprintf("template %q failed to render", name), err).WithTemplate(name)
		}
		r.logger.Debug("render failed", "template", name, "error", err)
		return "", err
	}

	if r.sanitizer != nil {
		result = r.sanitizer.Sanitize(result)
	}
	for _, w := range out {
		if _, err = io.WriteString(w, result); err != nil {
			return "", tgerrors.Wrap(tgerrors.KindRender, "write rendered output", err).WithTemplate(name)
		}
	}
	return result, nil
}

// RenderJSON decodes raw as a JSON context and renders name with it. Invalid
// JSON is a ParseError.
func (r *Renderer) RenderJSON(ctx context.Context, name string, raw []byte) (string, error) {
	return r.RenderEncoded(ctx, name, codec.FormatJSON, raw)
}

// RenderEncoded decodes raw in the given format and renders name with it.
func (r *Renderer) RenderEncoded(ctx context.Context, name string, format codec.Format, raw []byte) (string, error) {
	data, err := codec.Decode(format, raw)
	if err != nil {
		parseErr := tgerrors.Wrap(tgerrors.KindParse, "render context could not be decoded", err).WithTemplate(name)
		r.observe(name, 0, parseErr)
		return "", parseErr
	}
	return r.Render(ctx, name, data)
}

func (r *Renderer) observe(name string, elapsed time.Duration, err error) {
	for _, fn := range r.observers {
		fn(name, elapsed, err)
	}
}
