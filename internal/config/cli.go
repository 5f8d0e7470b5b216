package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// CLIConfig holds poolctl settings loaded from flags, env, or config file.
type CLIConfig struct {
	ReserveA         string
	ReserveB         string
	FeeNumerator     uint32
	FeeDenominator   uint32
	SlippageBps      uint16
	Script           string
	LogLevel         string
	WithdrawCooldown string
}

// LoadCLI merges config file, POOLCTL_* environment variables, and flags.
func LoadCLI(cfgFile string, flags *pflag.FlagSet) (CLIConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("fee-numerator", 3)
	v.SetDefault("fee-denominator", 1000)
	v.SetDefault("slippage-bps", 50)
	v.SetDefault("log-level", "warn")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return CLIConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return CLIConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("poolctl")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return CLIConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := CLIConfig{
		ReserveA:         v.GetString("reserve-a"),
		ReserveB:         v.GetString("reserve-b"),
		FeeNumerator:     v.GetUint32("fee-numerator"),
		FeeDenominator:   v.GetUint32("fee-denominator"),
		SlippageBps:      uint16(v.GetUint("slippage-bps")),
		Script:           v.GetString("script"),
		LogLevel:         v.GetString("log-level"),
		WithdrawCooldown: v.GetString("withdraw-cooldown"),
	}

	return cfg, nil
}
