package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/render/template"
	"github.com/goliatone/go-tplguard/pkg/resolver"
	"github.com/goliatone/go-tplguard/pkg/schema"
)

// TemplateSource is a named template plus the components it may read from.
type TemplateSource struct {
	Name       string   `json:"name" yaml:"name"`
	Source     string   `json:"source" yaml:"source"`
	Components []string `json:"components" yaml:"components"`
}

// SchemaSource resolves component names to schema trees, skipping unknown
// names. *registry.Registry satisfies it.
type SchemaSource interface {
	Schemas(names []string) []*schema.Node
}

// Observer is notified once per template with the outcome of its compilation.
type Observer func(name string, elapsed time.Duration, err error)

// Option customises a Compiler.
type Option func(*Compiler)

// WithPolicy selects how a batch reacts to a failing template.
func WithPolicy(policy Policy) Option {
	return func(c *Compiler) {
		c.policy = policy
	}
}

// WithLogger sets the logger used for compile events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a per-template outcome hook.
func WithObserver(observer Observer) Option {
	return func(c *Compiler) {
		if observer != nil {
			c.observers = append(c.observers, observer)
		}
	}
}

// Compiler parses template batches into an engine, rejecting templates that
// read variables none of their declared components expose.
type Compiler struct {
	engine    template.Engine
	schemas   SchemaSource
	policy    Policy
	logger    *slog.Logger
	observers []Observer
}

// New constructs a Compiler over engine and schemas.
func New(engine template.Engine, schemas SchemaSource, options ...Option) *Compiler {
	c := &Compiler{
		engine:  engine,
		schemas: schemas,
		policy:  PolicyAtomic,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Policy returns the configured batch policy.
func (c *Compiler) Policy() Policy {
	return c.policy
}

// Compile compiles sources in order under the configured policy. Atomic and
// fail-fast batches return the first failure; best-effort batches return a
// *errors.BatchError listing every failure. An atomic batch that fails leaves
// the compiled set as it was; the other policies evict a failing template even
// when an earlier version of it had compiled.
func (c *Compiler) Compile(ctx context.Context, sources []TemplateSource) error {
	if c == nil || c.engine == nil {
		return tgerrors.New(tgerrors.KindCompile, "compiler is not configured")
	}

	return c.engine.Update(func(tx template.Txn) error {
		var batch tgerrors.BatchError
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				if c.policy == PolicyAtomic {
					tx.Reset()
				}
				return tgerrors.Wrap(tgerrors.KindCompile, "compile batch canceled", err)
			}

			err := c.compileOne(tx, src)
			if err == nil {
				continue
			}

			if c.policy == PolicyAtomic {
				tx.Reset()
				c.logger.Info("compile batch rolled back", "template", src.Name, "templates", len(sources))
				return err
			}
			tx.Drop(src.Name)
			if c.policy == PolicyFailFast {
				return err
			}
			batch.Errors = append(batch.Errors, err)
		}
		for _, info := range tx.Dependents() {
			err := c.authorize(info.Name, info.Reads, info.Components)
			if err == nil {
				continue
			}
			c.logger.Warn("dependent template lost authorization", "template", info.Name, "variable", err.Variable)
			if c.policy == PolicyAtomic {
				tx.Reset()
				return err
			}
			tx.Drop(info.Name)
			if c.policy == PolicyFailFast {
				return err
			}
			batch.Errors = append(batch.Errors, err)
		}
		if len(batch.Errors) > 0 {
			return &batch
		}
		return nil
	})
}

// authorize checks that the components cover every variable read, including
// those of pulled-in templates.
func (c *Compiler) authorize(name string, reads, components []string) *tgerrors.Error {
	if err := resolver.ValidateAll(reads, c.schemas.Schemas(components)); err != nil {
		return asError(err, name)
	}
	return nil
}

func (c *Compiler) compileOne(tx template.Txn, src TemplateSource) (out *tgerrors.Error) {
	started := time.Now()
	defer func() {
		var err error
		if out != nil {
			err = out
		}
		for _, observe := range c.observers {
			observe(src.Name, time.Since(started), err)
		}
	}()

	info, err := tx.Parse(src.Name, src.Source)
	if err != nil {
		out = asError(err, src.Name)
		c.logger.Warn("template rejected", "template", src.Name, "error_type", out.Kind, "error", out.Message)
		return out
	}

	if err := c.authorize(src.Name, info.Reads, src.Components); err != nil {
		out = err
		c.logger.Warn("template reads unauthorized variable",
			"template", src.Name,
			"variable", out.Variable,
			"components", src.Components,
		)
		return out
	}

	tx.Keep(src.Name, src.Components)
	c.logger.Debug("template compiled",
		"template", src.Name,
		"variables", len(info.Variables),
		"dependencies", info.Dependencies,
	)
	return nil
}

func asError(err error, name string) *tgerrors.Error {
	e, ok := tgerrors.As(err)
	if !ok {
		e = tgerrors.Wrap(tgerrors.KindCompile, fmt.Sprintf("template %q could not be compiled", name), err)
	}
	if strings.TrimSpace(e.Template) == "" {
		e.Template = name
	}
	return e
}
