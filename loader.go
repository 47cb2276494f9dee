package tplguard

import (
	internalLoader "github.com/goliatone/go-tplguard/internal/jsonschema/loader"
	"github.com/goliatone/go-tplguard/pkg/jsonschema"
)

// NewSchemaLoader constructs a component schema loader using the internal
// implementation while keeping the concrete type hidden from consumers.
func NewSchemaLoader(options ...jsonschema.LoaderOption) jsonschema.Loader {
	cfg := jsonschema.NewLoaderOptions(options...)
	return internalLoader.New(cfg)
}
