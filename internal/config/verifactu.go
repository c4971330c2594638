package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/chain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// VerifactuSettings are process-wide defaults for the Verifactu engine.
// Per-user settings live in the verifactu_config table.
type VerifactuSettings struct {
	TestLatency             time.Duration
	VerificationBaseURL     string
	TestRegistrationBaseURL string
	DefaultSoftwareNIF      string
	DefaultSoftwareName     string
	DefaultSoftwareVersion  string
	LogsDefaultLimit        int
	LogsMaxLimit            int
	RegisteredDefaultLimit  int
}

func DefaultVerifactuSettings() VerifactuSettings {
	return VerifactuSettings{
		TestLatency:             time.Second,
		VerificationBaseURL:     chain.DefaultVerificationBaseURL,
		TestRegistrationBaseURL: chain.DefaultVerificationBaseURL + "/test",
		DefaultSoftwareNIF:      "B12345678",
		DefaultSoftwareName:     "Anclora Flow",
		DefaultSoftwareVersion:  "1.0.0",
		LogsDefaultLimit:        50,
		LogsMaxLimit:            500,
		RegisteredDefaultLimit:  100,
	}
}

type VerifactuConfigHolder struct {
	current atomic.Value // holds VerifactuSettings
}

// NewVerifactuConfigHolder reads verifactu.yml and keeps it hot reloaded.
// A missing file falls back to DefaultVerifactuSettings.
func NewVerifactuConfigHolder(log *zap.Logger) (*VerifactuConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("verifactu.config")

	v := viper.New()
	v.SetConfigName("verifactu")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/ancloraflow/config")
	v.AddConfigPath("/etc/ancloraflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ANCLORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultVerifactuSettings()
	v.SetDefault("verifactu.testLatency", defaults.TestLatency)
	v.SetDefault("verifactu.verificationBaseURL", defaults.VerificationBaseURL)
	v.SetDefault("verifactu.testRegistrationBaseURL", defaults.TestRegistrationBaseURL)
	v.SetDefault("verifactu.defaultSoftwareNif", defaults.DefaultSoftwareNIF)
	v.SetDefault("verifactu.defaultSoftwareName", defaults.DefaultSoftwareName)
	v.SetDefault("verifactu.defaultSoftwareVersion", defaults.DefaultSoftwareVersion)
	v.SetDefault("verifactu.logsDefaultLimit", defaults.LogsDefaultLimit)
	v.SetDefault("verifactu.logsMaxLimit", defaults.LogsMaxLimit)
	v.SetDefault("verifactu.registeredDefaultLimit", defaults.RegisteredDefaultLimit)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	cfg := readVerifactuSettings(v)
	if err := validateVerifactuSettings(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticVerifactuConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := readVerifactuSettings(v)
		if err := validateVerifactuSettings(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// readVerifactuSettings reads key by key so ANCLORA_VERIFACTU_* variables override
// the file. viper only consults the environment on exact key lookups.
func readVerifactuSettings(v *viper.Viper) VerifactuSettings {
	return VerifactuSettings{
		TestLatency:             v.GetDuration("verifactu.testLatency"),
		VerificationBaseURL:     v.GetString("verifactu.verificationBaseURL"),
		TestRegistrationBaseURL: v.GetString("verifactu.testRegistrationBaseURL"),
		DefaultSoftwareNIF:      v.GetString("verifactu.defaultSoftwareNif"),
		DefaultSoftwareName:     v.GetString("verifactu.defaultSoftwareName"),
		DefaultSoftwareVersion:  v.GetString("verifactu.defaultSoftwareVersion"),
		LogsDefaultLimit:        v.GetInt("verifactu.logsDefaultLimit"),
		LogsMaxLimit:            v.GetInt("verifactu.logsMaxLimit"),
		RegisteredDefaultLimit:  v.GetInt("verifactu.registeredDefaultLimit"),
	}
}

// NewStaticVerifactuConfigHolder wraps fixed settings without a file watcher.
func NewStaticVerifactuConfigHolder(cfg VerifactuSettings) *VerifactuConfigHolder {
	holder := &VerifactuConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *VerifactuConfigHolder) Get() VerifactuSettings {
	if h == nil {
		return DefaultVerifactuSettings()
	}
	return h.current.Load().(VerifactuSettings)
}

func validateVerifactuSettings(cfg VerifactuSettings) error {
	if cfg.TestLatency < 0 {
		return errors.New("verifactu.testLatency cannot be negative")
	}
	if strings.TrimSpace(cfg.VerificationBaseURL) == "" {
		return errors.New("verifactu.verificationBaseURL cannot be empty")
	}
	if strings.TrimSpace(cfg.TestRegistrationBaseURL) == "" {
		return errors.New("verifactu.testRegistrationBaseURL cannot be empty")
	}
	if cfg.LogsDefaultLimit <= 0 || cfg.LogsMaxLimit < cfg.LogsDefaultLimit {
		return errors.New("verifactu.logsDefaultLimit must be positive and not exceed logsMaxLimit")
	}
	if cfg.RegisteredDefaultLimit <= 0 {
		return errors.New("verifactu.registeredDefaultLimit must be positive")
	}
	return nil
}
