package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallbiznis/ancloraflow/internal/verifactu/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultVerifactuSettingsAreValid(t *testing.T) {
	settings := DefaultVerifactuSettings()
	require.NoError(t, validateVerifactuSettings(settings))
	assert.Equal(t, chain.DefaultVerificationBaseURL, settings.VerificationBaseURL)
	assert.Equal(t, chain.VerificationURL("", chain.Hash("abc")), chain.VerificationURL(settings.VerificationBaseURL, chain.Hash("abc")))
}

func TestValidateVerifactuSettingsRejectsBadValues(t *testing.T) {
	cases := map[string]func(*VerifactuSettings){
		"negative_latency": func(s *VerifactuSettings) { s.TestLatency = -time.Second },
		"empty_verify_url": func(s *VerifactuSettings) { s.VerificationBaseURL = " " },
		"empty_test_url":   func(s *VerifactuSettings) { s.TestRegistrationBaseURL = "" },
		"default_over_max": func(s *VerifactuSettings) { s.LogsDefaultLimit = s.LogsMaxLimit + 1 },
		"zero_registered":  func(s *VerifactuSettings) { s.RegisteredDefaultLimit = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			settings := DefaultVerifactuSettings()
			mutate(&settings)
			assert.Error(t, validateVerifactuSettings(settings))
		})
	}
}

func TestVerifactuConfigHolder(t *testing.T) {
	var nilHolder *VerifactuConfigHolder
	assert.Equal(t, DefaultVerifactuSettings(), nilHolder.Get())

	settings := DefaultVerifactuSettings()
	settings.TestLatency = 0
	holder := NewStaticVerifactuConfigHolder(settings)
	assert.Equal(t, time.Duration(0), holder.Get().TestLatency)
}

func TestIsProduction(t *testing.T) {
	assert.True(t, Config{Environment: " Production "}.IsProduction())
	assert.False(t, Config{Environment: "staging"}.IsProduction())
}

func TestNewVerifactuConfigHolderAppliesEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ANCLORA_VERIFACTU_TESTLATENCY", "5s")
	t.Setenv("ANCLORA_VERIFACTU_LOGSMAXLIMIT", "900")
	t.Setenv("ANCLORA_VERIFACTU_DEFAULTSOFTWARENAME", "Anclora Test")

	holder, err := NewVerifactuConfigHolder(zap.NewNop())
	require.NoError(t, err)

	settings := holder.Get()
	assert.Equal(t, 5*time.Second, settings.TestLatency)
	assert.Equal(t, 900, settings.LogsMaxLimit)
	assert.Equal(t, "Anclora Test", settings.DefaultSoftwareName)
	assert.Equal(t, DefaultVerifactuSettings().LogsDefaultLimit, settings.LogsDefaultLimit)
}

func TestNewVerifactuConfigHolderEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := "verifactu:\n  testLatency: 2s\n  logsDefaultLimit: 20\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "verifactu.yml"), []byte(file), 0o644))
	t.Setenv("ANCLORA_VERIFACTU_TESTLATENCY", "3s")

	holder, err := NewVerifactuConfigHolder(zap.NewNop())
	require.NoError(t, err)

	settings := holder.Get()
	assert.Equal(t, 3*time.Second, settings.TestLatency)
	assert.Equal(t, 20, settings.LogsDefaultLimit)
}

func TestNewVerifactuConfigHolderRejectsInvalidEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ANCLORA_VERIFACTU_LOGSDEFAULTLIMIT", "0")

	_, err := NewVerifactuConfigHolder(zap.NewNop())
	assert.Error(t, err)
}
