package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/revorc/pkg/router"
	"github.com/ilkoid/revorc/pkg/verifier"
)

func TestLoadWithEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 200_000, cfg.Budget.TokenCap)
	assert.Equal(t, "fast", cfg.Validation.Mode)
	assert.Equal(t, router.ModeQuickEdit, cfg.Router.DefaultModeOrFallback())
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadParsesYAMLAndExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret-value")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "chat:\n  provider: openai\n  model: gpt-4o-mini\n  api_key: \"${TEST_API_KEY}\"\nbudget:\n  token_cap: 50000\n  step_cap: 40\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-value", cfg.Chat.APIKey)
	assert.Equal(t, 50000, cfg.Budget.TokenCap)
	assert.Equal(t, 40, cfg.Budget.StepCap)
}

func TestLoadRejectsChatProviderWithoutModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  provider: openai\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	t.Setenv("REV_EXECUTION_MODE", "refactor")
	t.Setenv("REV_VERIFY_STRICT", "1")
	t.Setenv("REV_TDD_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "refactor", cfg.Router.DefaultMode)
	assert.Equal(t, "strict", cfg.Validation.Mode)
	assert.True(t, cfg.Validation.TDDEnabled)
}

func TestWallclockCapDurationFallsBackOnInvalid(t *testing.T) {
	b := BudgetConfig{WallclockCap: "not-a-duration"}
	assert.Equal(t, int64(30*60*1e9), int64(b.WallclockCapDuration()))
}

func TestValidationModeOrDefault(t *testing.T) {
	assert.Equal(t, verifier.ValidationSmoke, (&ValidationConfig{Mode: "smoke"}).ModeOrDefault())
	assert.Equal(t, verifier.ValidationStrict, (&ValidationConfig{Mode: "strict"}).ModeOrDefault())
	assert.Equal(t, verifier.ValidationFast, (&ValidationConfig{Mode: "unrecognized"}).ModeOrDefault())
}

func TestValidationModeForUsesMatrixByDefault(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, verifier.ValidationSmoke, cfg.ValidationModeFor(router.ModeQuickEdit))
	assert.Equal(t, verifier.ValidationTargeted, cfg.ValidationModeFor(router.ModeFocusedFeature))
	assert.Equal(t, verifier.ValidationStrict, cfg.ValidationModeFor(router.ModeFullFeature))
	assert.Equal(t, verifier.ValidationTestOnly, cfg.ValidationModeFor(router.ModeTestFocus))
	assert.Equal(t, verifier.ValidationNone, cfg.ValidationModeFor(router.ModeExploration))
}

func TestValidationModeForHonorsOverride(t *testing.T) {
	cfg := Defaults()
	cfg.Validation.ModeOverrides = map[string]string{string(router.ModeQuickEdit): "strict"}
	assert.Equal(t, verifier.ValidationStrict, cfg.ValidationModeFor(router.ModeQuickEdit))
}

func TestRecoveryOverridesTypedFiltersInvalidKeys(t *testing.T) {
	b := BudgetConfig{RecoveryOverrides: map[string]int{"timeout": 5, "not_a_kind": 9}}
	out := b.RecoveryOverridesTyped(func(k string) bool { return k == "timeout" })
	assert.Equal(t, map[string]int{"timeout": 5}, out)
}
