// Package loader reads resilience configuration files.
//
// Files ending in .yaml or .yml are decoded with gopkg.in/yaml.v3 and files
// ending in .toml with github.com/BurntSushi/toml, both into policy.Config.
// Before decoding, the loader enforces a maximum file size and checks that
// the content is valid UTF-8. Unknown keys are rejected in both formats so a
// misspelt field is reported instead of silently inheriting a default.
//
// Durations may be written as Go duration strings ("750ms", "5s").
//
//	l := loader.New(0)
//	cfg, err := l.LoadFile("resilience.toml")
//	if err != nil {
//	    return err
//	}
//	snap, err := compiler.Resolve(cfg)
package loader
