package compiler

import (
	"context"

	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/render/template"
	"github.com/goliatone/go-tplguard/pkg/resolver"
)

// Finding is the analysis of one template in a dry run.
type Finding struct {
	Name         string          `json:"name"`
	Components   []string        `json:"components,omitempty"`
	Variables    []string        `json:"variables,omitempty"`
	Dependencies []string        `json:"dependencies,omitempty"`
	Reads        []string        `json:"reads,omitempty"`
	Unauthorized []string        `json:"unauthorized,omitempty"`
	Error        *tgerrors.Error `json:"error,omitempty"`
}

// OK reports whether the template would compile.
func (f Finding) OK() bool {
	return f.Error == nil && len(f.Unauthorized) == 0
}

// Check analyses sources as a batch without committing anything. Unlike
// Compile it reports every unauthorized variable of every template, counting
// the variables of included templates. Later sources may include earlier ones
// even when those earlier ones fail authorization. Compiled templates that
// would lose authorization through the batch get a finding of their own.
func (c *Compiler) Check(ctx context.Context, sources []TemplateSource) ([]Finding, error) {
	if c == nil || c.engine == nil {
		return nil, tgerrors.New(tgerrors.KindCompile, "compiler is not configured")
	}

	findings := make([]Finding, 0, len(sources))
	err := c.engine.Update(func(tx template.Txn) error {
		defer tx.Reset()
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				return err
			}
			finding := Finding{Name: src.Name, Components: src.Components}
			info, err := tx.Parse(src.Name, src.Source)
			if err != nil {
				finding.Error = asError(err, src.Name)
				findings = append(findings, finding)
				continue
			}
			finding.Variables = info.Variables
			finding.Dependencies = info.Dependencies
			finding.Reads = info.Reads
			finding.Unauthorized = resolver.Unauthorized(info.Reads, c.schemas.Schemas(src.Components))
			findings = append(findings, finding)
		}
		index := make(map[string]int, len(findings))
		for i, f := range findings {
			index[f.Name] = i
		}
		for _, info := range tx.Dependents() {
			if i, ok := index[info.Name]; ok {
				// parsed before a later source replaced one of its dependencies
				if f := &findings[i]; f.Error == nil {
					f.Reads = info.Reads
					f.Unauthorized = resolver.Unauthorized(info.Reads, c.schemas.Schemas(f.Components))
				}
				continue
			}
			unauthorized := resolver.Unauthorized(info.Reads, c.schemas.Schemas(info.Components))
			if len(unauthorized) == 0 {
				continue
			}
			findings = append(findings, Finding{
				Name:         info.Name,
				Components:   info.Components,
				Variables:    info.Variables,
				Dependencies: info.Dependencies,
				Reads:        info.Reads,
				Unauthorized: unauthorized,
			})
		}
		return nil
	})
	if err != nil {
		return findings, tgerrors.Wrap(tgerrors.KindCompile, "check canceled", err)
	}
	return findings, nil
}
