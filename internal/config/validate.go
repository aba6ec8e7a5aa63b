package config

import "fmt"

// Validate enforces the rules spec.md §6 requires before any worker
// starts: required fields present, driver supported, databases
// non-empty, batch_size sane. It is called once by Load and is also
// exported for callers that build a Config programmatically (tests).
func (c Config) Validate() error {
	for name, scheme := range c {
		if err := scheme.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SchemeConfig) validate(name string) error {
	if err := s.Source.validate(name, "source"); err != nil {
		return err
	}
	if err := s.Target.validate(name, "target"); err != nil {
		return err
	}
	if s.BatchSize < 1 {
		return newValidationErr(name, "batch_size", "must be >= 1")
	}
	if len(s.Databases) == 0 {
		return newValidationErr(name, "databases", "must be non-empty")
	}
	for i, rule := range s.Databases {
		field := fmt.Sprintf("databases[%d]", i)
		if rule.SourcePattern == nil {
			return newValidationErr(name, field+".source", "required")
		}
		switch rule.NamingStrategy {
		case NamingOriginal, NamingExact, NamingReplace:
		default:
			return newValidationErr(name, field+".naming_strategy",
				fmt.Sprintf("unsupported value %q", rule.NamingStrategy))
		}
		if rule.NamingStrategy == NamingExact && rule.TargetName == "" {
			return newValidationErr(name, field+".target",
				"required when naming_strategy is \"exact\"")
		}
		if rule.NamingStrategy == NamingReplace && rule.TargetName == "" {
			return newValidationErr(name, field+".target",
				"required when naming_strategy is \"replace\"")
		}
	}
	return nil
}

func (h *HostConfig) validate(scheme, side string) error {
	if h.Host == "" {
		return newValidationErr(scheme, side+".host", "required")
	}
	if h.Port <= 0 {
		return newValidationErr(scheme, side+".port", "must be > 0")
	}
	if h.Username == "" {
		return newValidationErr(scheme, side+".username", "required")
	}
	if !SupportedDrivers[h.Driver] {
		return newValidationErr(scheme, side+".driver",
			fmt.Sprintf("unsupported driver %q", h.Driver))
	}
	return nil
}
