// Package codec decodes structured values arriving at the tplguard boundary:
// component schemas, render contexts, and manifests.
//
// JSON is the canonical format. JSONC, YAML, and CBOR are accepted where a
// caller names them through a media type or file extension, and every format
// decodes to the shapes encoding/json produces (map[string]any, []any,
// float64, string, bool, nil) so the rest of the pipeline never sees
// format-specific types.
//
//	format, err := codec.FormatFromMediaType(r.Header.Get("Content-Type"))
//	value, err := codec.Decode(format, body)
package codec
