package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// rawHost mirrors the JSON shape of a "source"/"target" host object.
// A strict decode (DisallowUnknownFields) rejects unrecognized keys.
type rawHost struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Driver       string `json:"driver"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	ExecuteFirst string `json:"execute_first,omitempty"`
}

type rawDatabaseRule struct {
	Source         string `json:"source"`
	Target         string `json:"target,omitempty"`
	NamingStrategy string `json:"naming_strategy,omitempty"`
	IncludeTables  string `json:"include_tables,omitempty"`
	ExcludeTables  string `json:"exclude_tables,omitempty"`
	DynamicTables  string `json:"dynamic_tables,omitempty"`
	ReplicateViews bool   `json:"replicate_views,omitempty"`
	OrderBy        string `json:"order_by,omitempty"`
}

type rawScheme struct {
	Source    rawHost           `json:"source"`
	Target    rawHost           `json:"target"`
	BatchSize int               `json:"batch_size,omitempty"`
	Databases []rawDatabaseRule `json:"databases"`
}

// Load reads, strictly decodes, and validates the scheme file at path.
// Each scheme body is strictly decoded (unknown keys rejected) before
// any semantic validation; both are reported as *ValidationError so the
// caller never has to distinguish "malformed JSON shape" from "bad
// value" when deciding whether to abort. A file that is not a JSON
// object at all is reported as a plain wrapped error.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := make(Config, len(raw))
	for name, body := range raw {
		var rs rawScheme
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rs); err != nil {
			return nil, newValidationErr(name, "", err.Error())
		}
		scheme, err := buildScheme(name, rs)
		if err != nil {
			return nil, err
		}
		cfg[name] = scheme
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildScheme(name string, rs rawScheme) (*SchemeConfig, error) {
	batchSize := rs.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}

	scheme := &SchemeConfig{
		Name: name,
		Source: HostConfig{
			Host:     rs.Source.Host,
			Port:     rs.Source.Port,
			Driver:   rs.Source.Driver,
			Username: rs.Source.Username,
			Password: rs.Source.Password,
		},
		Target: HostConfig{
			Host:         rs.Target.Host,
			Port:         rs.Target.Port,
			Driver:       rs.Target.Driver,
			Username:     rs.Target.Username,
			Password:     rs.Target.Password,
			ExecuteFirst: rs.Target.ExecuteFirst,
		},
		BatchSize: batchSize,
		Databases: make([]DatabaseRule, 0, len(rs.Databases)),
	}

	for i, rd := range rs.Databases {
		rule, err := buildRule(name, i, rd)
		if err != nil {
			return nil, err
		}
		scheme.Databases = append(scheme.Databases, *rule)
	}

	return scheme, nil
}

func buildRule(scheme string, idx int, rd rawDatabaseRule) (*DatabaseRule, error) {
	field := fmt.Sprintf("databases[%d]", idx)

	sourcePattern, err := compileNonEmpty(rd.Source)
	if err != nil {
		return nil, newValidationErr(scheme, field+".source", err.Error())
	}
	if sourcePattern == nil {
		return nil, newValidationErr(scheme, field+".source", "required")
	}

	includeTables, err := compileNonEmpty(rd.IncludeTables)
	if err != nil {
		return nil, newValidationErr(scheme, field+".include_tables", err.Error())
	}
	excludeTables, err := compileNonEmpty(rd.ExcludeTables)
	if err != nil {
		return nil, newValidationErr(scheme, field+".exclude_tables", err.Error())
	}
	dynamicTables, err := compileNonEmpty(rd.DynamicTables)
	if err != nil {
		return nil, newValidationErr(scheme, field+".dynamic_tables", err.Error())
	}

	strategy := NamingStrategy(rd.NamingStrategy)
	if strategy == "" {
		strategy = NamingOriginal
	}

	orderBy := rd.OrderBy
	if orderBy == "" {
		orderBy = DefaultOrderBy
	}

	return &DatabaseRule{
		SourcePattern:  sourcePattern,
		TargetName:     rd.Target,
		NamingStrategy: strategy,
		IncludeTables:  includeTables,
		ExcludeTables:  excludeTables,
		DynamicTables:  dynamicTables,
		ReplicateViews: rd.ReplicateViews,
		OrderBy:        orderBy,
	}, nil
}

// compileNonEmpty treats an empty pattern as "unset" (spec.md §4.3: an
// empty regex is treated as unset), returning a nil *regexp.Regexp.
func compileNonEmpty(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}
