package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema constrains the effective configuration after defaults and
// overrides are merged. Catches out-of-range values before any component
// is constructed with them.
const configSchema = `{
	"type": "object",
	"properties": {
		"server": {
			"type": "object",
			"properties": {
				"host": {"type": "string", "minLength": 1},
				"port": {"type": "integer", "minimum": 1, "maximum": 65535}
			}
		},
		"agent": {
			"type": "object",
			"properties": {
				"command": {"type": "string", "minLength": 1},
				"work_dir": {"type": "string", "minLength": 1},
				"max_concurrent": {"type": "integer", "minimum": 1, "maximum": 64}
			}
		},
		"database": {
			"type": "object",
			"properties": {
				"path": {"type": "string", "minLength": 1}
			}
		},
		"logging": {
			"type": "object",
			"properties": {
				"level": {"type": "string", "enum": ["trace", "debug", "info", "warn", "error"]},
				"dir": {"type": "string", "minLength": 1},
				"max_total_mb": {"type": "integer", "minimum": 1}
			}
		}
	}
}`

// Validate checks the effective config against the embedded JSON schema.
func Validate(cfg *Config) error {
	doc := map[string]any{
		"server": map[string]any{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		},
		"agent": map[string]any{
			"command":        cfg.Agent.Command,
			"work_dir":       cfg.Agent.WorkDir,
			"max_concurrent": cfg.Agent.MaxConcurrent,
		},
		"database": map[string]any{
			"path": cfg.Database.Path,
		},
		"logging": map[string]any{
			"level":        strings.ToLower(cfg.Logging.Level),
			"dir":          cfg.Logging.Dir,
			"max_total_mb": cfg.Logging.MaxTotalMB,
		},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("config schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}

	return nil
}
