package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateWorkflow(cfg, ve)
	validateLLM(cfg, ve)
	validateRouter(cfg, ve)
	validateCache(cfg, ve)
	validateExport(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateScheduler(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validModes = map[string]bool{
	"full_course":  true,
	"quick_design": true,
	"iteration":    true,
	"custom":       true,
}

func validateWorkflow(cfg *Config, ve *ValidationError) {
	if !validModes[cfg.Workflow.Mode] {
		ve.Add("workflow.mode %q is not one of full_course, quick_design, iteration, custom", cfg.Workflow.Mode)
	}
	if cfg.Workflow.MaxIterations <= 0 {
		ve.Add("workflow.max_iterations must be > 0")
	}
	if cfg.Workflow.QualityThreshold <= 0 || cfg.Workflow.QualityThreshold > 1 {
		ve.Add("workflow.quality_threshold must be in (0, 1]")
	}
	if cfg.Workflow.PhaseTimeout <= 0 {
		ve.Add("workflow.phase_timeout must be > 0")
	}
}

var validProviderTypes = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"bedrock":   true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	seen := map[string]bool{}
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d] duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is not one of openai, anthropic, bedrock", i, p.Type)
		}
		if p.Type == "bedrock" && p.Region == "" {
			ve.Add("llm.providers[%d].region is required for bedrock", i)
		}
		if p.Type != "bedrock" && p.APIKey == "" {
			ve.Add("llm.providers[%d].api_key must not be empty", i)
		}
	}
	if cfg.LLM.DefaultProvider != "" && len(cfg.LLM.Providers) > 0 && !seen[cfg.LLM.DefaultProvider] {
		ve.Add("llm.default_provider %q not found in providers", cfg.LLM.DefaultProvider)
	}
	if cfg.LLM.Retry.MaxAttempts <= 0 {
		ve.Add("llm.retry.max_attempts must be > 0")
	}
	if cfg.LLM.Retry.BaseDelay <= 0 || cfg.LLM.Retry.MaxDelay < cfg.LLM.Retry.BaseDelay {
		ve.Add("llm.retry delays must satisfy 0 < base_delay <= max_delay")
	}
	if cfg.LLM.Failover.Enabled && len(cfg.LLM.Failover.Fallbacks) == 0 {
		ve.Add("llm.failover.fallbacks must not be empty when failover is enabled")
	}
	for _, fb := range cfg.LLM.Failover.Fallbacks {
		if len(cfg.LLM.Providers) > 0 && !seen[fb] {
			ve.Add("llm.failover fallback %q not found in providers", fb)
		}
	}
	if cfg.LLM.CircuitBreaker.Enabled && cfg.LLM.CircuitBreaker.MaxFailures == 0 {
		ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
	}
}

func validateRouter(cfg *Config, ve *ValidationError) {
	if cfg.Router.MaxTokens <= 0 {
		ve.Add("router.max_tokens must be > 0")
	}
	if cfg.Router.Temperature < 0 || cfg.Router.Temperature > 2 {
		ve.Add("router.temperature must be in [0, 2]")
	}
	if cfg.Router.RequestTimeout <= 0 {
		ve.Add("router.request_timeout must be > 0")
	}
	if cfg.Router.RatePerSecond < 0 {
		ve.Add("router.rate_per_second must be >= 0")
	}
}

func validateCache(cfg *Config, ve *ValidationError) {
	if !cfg.Cache.Enabled {
		return
	}
	if cfg.Cache.Size <= 0 {
		ve.Add("cache.size must be > 0 when cache is enabled")
	}
	if cfg.Cache.TTL <= 0 {
		ve.Add("cache.ttl must be > 0 when cache is enabled")
	}
}

var validExportFormats = map[string]bool{
	"json": true,
	"html": true,
}

func validateExport(cfg *Config, ve *ValidationError) {
	for _, f := range cfg.Export.Formats {
		if !validExportFormats[f] {
			ve.Add("export.formats: %q is not one of json, html", f)
		}
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		ve.Add("logger.level %q is not a valid level", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json", "":
	default:
		ve.Add("logger.format %q is not text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter %q is not stdout or noop", cfg.Tracer.Exporter)
	}
}

func validateScheduler(cfg *Config, ve *ValidationError) {
	if cfg.Scheduler.Enabled && cfg.Scheduler.MetricsSchedule == "" {
		ve.Add("scheduler.metrics_schedule must not be empty when scheduler is enabled")
	}
}
