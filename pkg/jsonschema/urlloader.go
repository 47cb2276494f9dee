package jsonschema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/goliatone/go-tplguard/pkg/schema"
)

// URLLoader exposes a Loader to the jsonschema compiler so "$ref" targets are
// fetched with the same file and HTTP rules as component documents.
func URLLoader(loader Loader) santhosh.URLLoader {
	return urlLoader{loader: loader}
}

type urlLoader struct {
	loader Loader
}

func (l urlLoader) Load(raw string) (any, error) {
	src, err := sourceForURL(raw)
	if err != nil {
		return nil, err
	}

	doc, err := l.loader.Load(context.Background(), src)
	if err != nil {
		return nil, err
	}
	payload, err := doc.Payload()
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: encode %s: %w", raw, err)
	}
	return santhosh.UnmarshalJSON(bytes.NewReader(encoded))
}

func sourceForURL(raw string) (Source, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: parse ref url %q: %w", raw, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "file":
		return schema.SourceFromFile(parsed.Path), nil
	case "http", "https":
		return schema.SourceFromURL(raw)
	default:
		return nil, fmt.Errorf("jsonschema: unsupported ref scheme %q", parsed.Scheme)
	}
}
