// Package config loads the orchestrator's YAML configuration file and
// merges it with REV_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ilkoid/revorc/pkg/router"
	"github.com/ilkoid/revorc/pkg/verifier"
)

// AppConfig is the root configuration structure, mirroring config.yaml.
type AppConfig struct {
	Budget     BudgetConfig     `yaml:"budget"`
	Validation ValidationConfig `yaml:"validation"`
	Router     RouterConfig     `yaml:"router"`
	Chat       ChatConfig       `yaml:"chat"`
	Storage    StorageConfig    `yaml:"storage"`
	App        AppSpecific      `yaml:"app"`
}

// BudgetConfig carries resource-cap and recovery-budget overrides.
type BudgetConfig struct {
	TokenCap           int            `yaml:"token_cap"`
	StepCap            int            `yaml:"step_cap"`
	WallclockCap       string         `yaml:"wallclock_cap"`
	RecoveryOverrides  map[string]int `yaml:"recovery_overrides"`
	SignatureThreshold int            `yaml:"signature_threshold"`
}

// WallclockCapDuration parses WallclockCap, defaulting to 30 minutes.
func (b *BudgetConfig) WallclockCapDuration() time.Duration {
	if b.WallclockCap == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(b.WallclockCap)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ValidationConfig overrides the default per-language command matrix and
// execution mode.
type ValidationConfig struct {
	Mode          string                         `yaml:"mode"` // smoke|fast|strict
	CommandMatrix map[string]verifier.CommandSet `yaml:"command_matrix"`
	TDDEnabled    bool                           `yaml:"tdd_enabled"`
	ModeOverrides map[string]string              `yaml:"mode_overrides"` // router mode -> validation mode, overrides ValidationMatrix
}

// ModeOrDefault returns the configured validation mode, defaulting to fast.
func (v *ValidationConfig) ModeOrDefault() verifier.ValidationMode {
	switch v.Mode {
	case "smoke":
		return verifier.ValidationSmoke
	case "strict":
		return verifier.ValidationStrict
	default:
		return verifier.ValidationFast
	}
}

// ValidationMatrix maps each router execution mode to the S3 validation
// level it runs by default (overridable per-mode via YAML).
var ValidationMatrix = map[router.Mode]verifier.ValidationMode{
	router.ModeQuickEdit:      verifier.ValidationSmoke,
	router.ModeFocusedFeature: verifier.ValidationTargeted,
	router.ModeFullFeature:    verifier.ValidationStrict,
	router.ModeRefactor:       verifier.ValidationTargeted,
	router.ModeTestFocus:      verifier.ValidationTestOnly,
	router.ModeSecurityAudit:  verifier.ValidationTargeted,
	router.ModeExploration:    verifier.ValidationNone,
}

// ValidationModeFor resolves the S3 validation level for a routed mode,
// preferring a YAML override keyed by the mode string over ValidationMatrix,
// and falling back to ValidationFast for an unrecognized mode.
func (c *AppConfig) ValidationModeFor(mode router.Mode) verifier.ValidationMode {
	if override, ok := c.Validation.ModeOverrides[string(mode)]; ok && override != "" {
		return verifier.ValidationMode(override)
	}
	if m, ok := ValidationMatrix[mode]; ok {
		return m
	}
	return verifier.ValidationFast
}

// RouterConfig holds the router section of the YAML config: keyword
// override lists and a default mode. router.Route takes no configuration
// and does not read KeywordOverrides; DefaultMode is exposed only through
// DefaultModeOrFallback.
type RouterConfig struct {
	KeywordOverrides map[string][]string `yaml:"keyword_overrides"`
	DefaultMode      string              `yaml:"default_mode"`
}

// DefaultModeOrFallback returns the configured default mode, falling back
// to quick_edit.
func (r *RouterConfig) DefaultModeOrFallback() router.Mode {
	if r.DefaultMode == "" {
		return router.ModeQuickEdit
	}
	return router.Mode(r.DefaultMode)
}

// ChatConfig describes the LLM provider the chat-client adapter uses.
type ChatConfig struct {
	Provider    string        `yaml:"provider"` // "openai"
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"` // supports ${VAR}
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StorageConfig describes checkpoint and artifact persistence.
type StorageConfig struct {
	CheckpointDBPath string   `yaml:"checkpoint_db_path"`
	Artifacts        S3Config `yaml:"artifacts"`
}

// S3Config describes an S3-compatible artifact bucket.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // supports ${VAR}
	SecretKey string `yaml:"secret_key"` // supports ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// AppSpecific carries general application settings.
type AppSpecific struct {
	WorkspaceRoot   string   `yaml:"workspace_root"`
	ExtraRoots      []string `yaml:"extra_roots"`
	ReadOnly        bool     `yaml:"read_only"`
	LogDir          string   `yaml:"log_dir"`
	MemoryEnabled   bool     `yaml:"memory_enabled"`
	PromptTreeScans bool     `yaml:"prompt_tree_scans_enabled"` // bounds tree-view scans used to build planner context
}

// Load reads a YAML file, expands ${VAR} environment references, and
// applies REV_* environment overrides on top. path == "" loads defaults
// with only environment overrides applied.
func Load(path string) (*AppConfig, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config: file not found at %s", path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		expanded := os.ExpandEnv(string(raw))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns an AppConfig populated with built-in defaults, used as
// the base before a YAML file and environment overrides are applied.
func Defaults() *AppConfig {
	return &AppConfig{
		Budget: BudgetConfig{
			TokenCap:           200_000,
			StepCap:            200,
			WallclockCap:       "30m",
			SignatureThreshold: 3,
		},
		Validation: ValidationConfig{
			Mode: "fast",
		},
		Router: RouterConfig{
			DefaultMode: string(router.ModeQuickEdit),
		},
		App: AppSpecific{
			WorkspaceRoot:   ".",
			LogDir:          ".",
			MemoryEnabled:   true,
			PromptTreeScans: true,
		},
	}
}

// applyEnvOverrides applies the fixed set of REV_* environment variables,
// each winning over the YAML value.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("REV_EXECUTION_MODE"); v != "" {
		cfg.Router.DefaultMode = v
	}
	if v := os.Getenv("REV_VERIFY_STRICT"); v == "1" || v == "true" {
		cfg.Validation.Mode = "strict"
	}
	if v := os.Getenv("REV_VERIFY_FAST"); v == "1" || v == "true" {
		cfg.Validation.Mode = "fast"
	}
	if v := os.Getenv("REV_TDD_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Validation.TDDEnabled = b
		}
	}
	if v := os.Getenv("REV_PROMPT_OPT_TREE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.App.PromptTreeScans = b
		}
	}
}

func (c *AppConfig) validate() error {
	if c.Budget.TokenCap <= 0 {
		return fmt.Errorf("budget.token_cap must be positive")
	}
	if c.Budget.StepCap <= 0 {
		return fmt.Errorf("budget.step_cap must be positive")
	}
	if c.Chat.Provider != "" && c.Chat.Model == "" {
		return fmt.Errorf("chat.model is required when chat.provider is set")
	}
	return nil
}

// RecoveryOverridesTyped filters the string-keyed YAML overrides down to
// the keys valid accepts (normally toolerr.Kind names), so callers can
// build a toolerr.Kind-keyed override map without this package importing
// toolerr directly.
func (b *BudgetConfig) RecoveryOverridesTyped(valid func(string) bool) map[string]int {
	out := map[string]int{}
	for k, v := range b.RecoveryOverrides {
		if valid(k) {
			out[k] = v
		}
	}
	return out
}
