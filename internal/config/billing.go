package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingSettings are the operational knobs of the billing pipeline. They are
// loaded from a volume-mounted YAML file and hot-reloaded on change so sweeps
// can be tuned without a redeploy.
type BillingSettings struct {
	Currency string `mapstructure:"currency"`

	// Trial notice window, in days before trial end. The window is kept
	// narrow so a daily sweep sends the notice exactly once.
	TrialNoticeMinDays float64 `mapstructure:"trialNoticeMinDays"`
	TrialNoticeMaxDays float64 `mapstructure:"trialNoticeMaxDays"`

	// Max due charges processed per sweep run.
	SweepBatchSize int `mapstructure:"sweepBatchSize"`
}

func DefaultBillingSettings() BillingSettings {
	return BillingSettings{
		Currency:           "usd",
		TrialNoticeMinDays: 2.5,
		TrialNoticeMaxDays: 3.5,
		SweepBatchSize:     100,
	}
}

type BillingSettingsHolder struct {
	current atomic.Value // holds BillingSettings
}

func NewBillingSettingsHolder() (*BillingSettingsHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lgl/config")
	v.AddConfigPath("/etc/lgl")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LGL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingSettings()
		v.SetDefault("billing.currency", defaults.Currency)
		v.SetDefault("billing.trialNoticeMinDays", defaults.TrialNoticeMinDays)
		v.SetDefault("billing.trialNoticeMaxDays", defaults.TrialNoticeMaxDays)
		v.SetDefault("billing.sweepBatchSize", defaults.SweepBatchSize)
	}

	var settings BillingSettings
	if err := v.UnmarshalKey("billing", &settings); err != nil {
		return nil, err
	}
	if err := validateBillingSettings(settings); err != nil {
		return nil, err
	}

	holder := &BillingSettingsHolder{}
	holder.current.Store(settings)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingSettings
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-settings] reload failed: %v", err)
			return
		}
		if err := validateBillingSettings(updated); err != nil {
			log.Printf("[billing-settings] invalid settings ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-settings] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingSettingsHolder) Get() BillingSettings {
	return h.current.Load().(BillingSettings)
}

// NewStaticBillingSettings builds a holder around fixed settings. Test helper.
func NewStaticBillingSettings(settings BillingSettings) *BillingSettingsHolder {
	holder := &BillingSettingsHolder{}
	holder.current.Store(settings)
	return holder
}

func validateBillingSettings(settings BillingSettings) error {
	if strings.TrimSpace(settings.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	if settings.TrialNoticeMinDays >= settings.TrialNoticeMaxDays {
		return errors.New("billing.trialNoticeMinDays must be below trialNoticeMaxDays")
	}
	if settings.SweepBatchSize <= 0 {
		return errors.New("billing.sweepBatchSize must be positive")
	}
	return nil
}
