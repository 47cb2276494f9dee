package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-tplguard/pkg/schema"
)

// Format names a wire format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatYAML  Format = "yaml"
	FormatCBOR  Format = "cbor"
)

// ErrUnsupportedFormat is returned for media types and formats the codec does
// not handle.
var ErrUnsupportedFormat = errors.New("codec: unsupported format")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	// Render contexts and schemas are keyed by strings; any-typed targets
	// must decode to map[string]any rather than CBOR's map[any]any default.
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// FormatFromMediaType maps a Content-Type header value to a Format. An empty
// value selects JSON.
func FormatFromMediaType(value string) (Format, error) {
	if strings.TrimSpace(value) == "" {
		return FormatJSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return "", fmt.Errorf("codec: parse media type %q: %w", value, err)
	}

	switch mediaType {
	case "application/json", "text/json":
		return FormatJSON, nil
	case "application/jsonc", "application/json5":
		return FormatJSONC, nil
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return FormatYAML, nil
	case "application/cbor":
		return FormatCBOR, nil
	}
	if strings.HasSuffix(mediaType, "+json") {
		return FormatJSON, nil
	}
	if strings.HasSuffix(mediaType, "+cbor") {
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("%w: media type %q", ErrUnsupportedFormat, mediaType)
}

// FormatFromPath picks a Format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonc":
		return FormatJSONC
	case ".yaml", ".yml":
		return FormatYAML
	case ".cbor":
		return FormatCBOR
	default:
		return FormatJSON
	}
}

// MediaType returns the canonical Content-Type for f.
func (f Format) MediaType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatCBOR:
		return "application/cbor"
	default:
		return "application/json"
	}
}

// Decode parses raw in the given format. Empty input decodes to nil.
func Decode(format Format, raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var value any
	switch format {
	case FormatJSON, "":
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("codec: decode json: %w", err)
		}
	case FormatJSONC:
		if err := json.Unmarshal(jsonc.ToJSON(raw), &value); err != nil {
			return nil, fmt.Errorf("codec: decode jsonc: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("codec: decode yaml: %w", err)
		}
	case FormatCBOR:
		if err := decMode.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("codec: decode cbor: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
	return schema.NormalizeValue(value), nil
}

// DecodeObject is Decode restricted to objects. Empty input and null decode
// to a nil map.
func DecodeObject(format Format, raw []byte) (map[string]any, error) {
	value, err := Decode(format, raw)
	if err != nil || value == nil {
		return nil, err
	}
	object, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("codec: expected an object, got %T", value)
	}
	return object, nil
}

// Encode serialises v in the given format. JSONC encodes as JSON.
func Encode(format Format, v any) ([]byte, error) {
	switch format {
	case FormatJSON, FormatJSONC, "":
		return json.MarshalIndent(v, "", "  ")
	case FormatYAML:
		return yaml.Marshal(v)
	case FormatCBOR:
		return encMode.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
}
