package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"mercator-hq/bulwark/pkg/policy"
)

// DefaultMaxFileSize is the largest resilience file accepted when no limit is set.
const DefaultMaxFileSize int64 = 1 << 20

// Format identifies the encoding of a resilience file.
type Format int

const (
	// FormatYAML is used for .yaml and .yml files.
	FormatYAML Format = iota

	// FormatTOML is used for .toml files.
	FormatTOML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "unknown"
	}
}

var extensions = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".toml": FormatTOML,
}

// Extensions returns the supported file extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// FormatFor returns the format implied by the file extension.
func FormatFor(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("unsupported extension %q (want one of %s)", ext, strings.Join(Extensions(), ", "))
}

// HasValidExtension reports whether path names a resilience file.
func HasValidExtension(path string) bool {
	_, err := FormatFor(path)
	return err == nil
}

// Loader reads resilience configuration files from disk.
// It validates size and encoding before decoding, and rejects unknown keys.
type Loader struct {
	maxFileSize int64
}

// New creates a loader. A non-positive maxFileSize selects DefaultMaxFileSize.
func New(maxFileSize int64) *Loader {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Loader{maxFileSize: maxFileSize}
}

// LoadFile reads and decodes the resilience file at path.
func (l *Loader) LoadFile(path string) (*policy.Config, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "unsupported file type", Cause: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, &LoadError{FilePath: path, Message: "file not found", Cause: err}
		case os.IsPermission(err):
			return nil, &LoadError{FilePath: path, Message: "permission denied", Cause: err}
		default:
			return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
		}
	}

	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}

	if info.Size() > l.maxFileSize {
		return nil, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), l.maxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}

	return l.Decode(path, format, data)
}

// Decode validates and decodes resilience data. name is used in errors only.
func (l *Loader) Decode(name string, format Format, data []byte) (*policy.Config, error) {
	if int64(len(data)) > l.maxFileSize {
		return nil, &LoadError{
			FilePath: name,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", len(data), l.maxFileSize),
		}
	}

	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: name, Message: "file contains invalid UTF-8 encoding"}
	}

	switch format {
	case FormatYAML:
		return decodeYAML(name, data)
	case FormatTOML:
		return decodeTOML(name, data)
	default:
		return nil, &LoadError{FilePath: name, Message: fmt.Sprintf("unknown format %d", format)}
	}
}

func decodeYAML(name string, data []byte) (*policy.Config, error) {
	cfg := &policy.Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document decodes to an empty configuration.
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, &ParseError{FilePath: name, Format: FormatYAML, Message: err.Error(), Cause: err}
	}
	return cfg, nil
}

func decodeTOML(name string, data []byte) (*policy.Config, error) {
	cfg := &policy.Config{}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		perr := &ParseError{FilePath: name, Format: FormatTOML, Message: err.Error(), Cause: err}
		var te toml.ParseError
		if errors.As(err, &te) {
			perr.Line = te.Position.Line
			perr.Message = te.Message
		}
		return nil, perr
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, &ParseError{
			FilePath: name,
			Format:   FormatTOML,
			Message:  fmt.Sprintf("unknown keys: %s", strings.Join(keys, ", ")),
		}
	}

	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, &ParseError{FilePath: name, Format: FormatTOML, Message: err.Error(), Cause: err}
	}
	if bad := bareDurations(raw, ""); len(bad) > 0 {
		return nil, &ParseError{
			FilePath: name,
			Format:   FormatTOML,
			Message:  fmt.Sprintf("durations must be strings such as \"500ms\": %s", strings.Join(bad, ", ")),
		}
	}
	return cfg, nil
}

var durationKeys = map[string]bool{
	"timeout":                  true,
	"sleep_window":             true,
	"stats_window":             true,
	"percentile_window":        true,
	"health_snapshot_interval": true,
}

// bareDurations lists the duration keys written as numbers. The TOML decoder
// would read those as nanoseconds, where the YAML decoder rejects them.
func bareDurations(table map[string]any, prefix string) []string {
	var bad []string
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch v := table[k].(type) {
		case map[string]any:
			bad = append(bad, bareDurations(v, path)...)
		case []map[string]any:
			for i, sub := range v {
				bad = append(bad, bareDurations(sub, fmt.Sprintf("%s[%d]", path, i))...)
			}
		case int64, float64:
			if durationKeys[k] {
				bad = append(bad, path)
			}
		}
	}
	return bad
}
