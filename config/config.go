package config

import (
	"github.com/spf13/viper"
)

const (
	StackName   = "stack_name"
	MetricsAddr = "metrics_addr"
)

// New returns a viper instance backed by the process environment only.
// Keys are looked up as their upper-cased names, e.g. STACK_NAME.
func New() *viper.Viper {
	vi := viper.New()
	vi.AutomaticEnv()
	vi.SetDefault(StackName, "")
	vi.SetDefault(MetricsAddr, "")
	return vi
}
