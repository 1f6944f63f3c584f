package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	EnvPrefix = "SYSCOUNT"

	KeyOutput     = "output"
	KeyJSON       = "json"
	KeyStracePath = "strace.path"
	KeyStraceArgs = "strace.args"
	KeyTimeout    = "timeout"
	KeyLatency    = "latency"
	KeyDebug      = "debug"
)

type Config struct {
	// Output is where the text summary is written.
	Output string

	// JSON, if set, is where the raw mappings are additionally written as json.
	JSON string

	// StracePath is the strace binary, looked up in $PATH if not absolute.
	StracePath string

	// StraceArgs are passed to strace before the traced program.
	StraceArgs []string

	// Timeout bounds a whole trace. Zero means no limit.
	Timeout time.Duration

	// Latency adds a per syscall latency distribution to the summary.
	Latency bool

	Debug bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyOutput, "syscall_summary.txt")
	v.SetDefault(KeyJSON, "")
	v.SetDefault(KeyStracePath, "strace")
	v.SetDefault(KeyStraceArgs, []string{"-T", "-e", "trace=all"})
	v.SetDefault(KeyTimeout, time.Duration(0))
	v.SetDefault(KeyLatency, false)
	v.SetDefault(KeyDebug, false)
}

// Init points v at a config file and the environment.
//
// If cfgFile is empty, .syscount.yaml is looked for in $HOME and the working directory. A missing
// default config file is not an error; a missing explicit one is.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}

		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".syscount")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// Load reads a Config out of v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Config{
		Output:     v.GetString(KeyOutput),
		JSON:       v.GetString(KeyJSON),
		StracePath: v.GetString(KeyStracePath),
		StraceArgs: v.GetStringSlice(KeyStraceArgs),
		Timeout:    v.GetDuration(KeyTimeout),
		Latency:    v.GetBool(KeyLatency),
		Debug:      v.GetBool(KeyDebug),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.StracePath == "" {
		return fmt.Errorf("%w: strace path is empty", ErrInvalidConfig)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidConfig, c.Timeout)
	}

	if c.Output == "" && c.JSON == "" {
		return fmt.Errorf("%w: no output destination", ErrInvalidConfig)
	}

	return nil
}
