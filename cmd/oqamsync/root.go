package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Sangstbk/liquid-dsp/internal/config"
	"github.com/Sangstbk/liquid-dsp/internal/logging"
)

// viperKey is the flag annotation naming the configuration key a flag
// overrides.
const viperKey = "viper_key"

// app carries the state shared by all commands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "oqamsync",
		Short: "OFDM/OQAM 64-subcarrier frame synchronizer",
		Long: `Detects and demodulates 64-subcarrier OFDM/OQAM frames.

Frames can be generated and pushed through a simulated channel, played
on a stereo sound card output, or captured from a stereo input carrying
I on the left channel and Q on the right.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is $HOME/.config/oqamsync/oqamsync.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Bool("log-dev", false, "human readable development logging")
	bindKey(pf, "log-level", "log.level")
	bindKey(pf, "log-dev", "log.development")

	root.AddCommand(
		newSimulateCmd(a),
		newListenCmd(a),
		newTransmitCmd(a),
		newDevicesCmd(a),
		newConfigCmd(a),
		newPrintCmd(a),
	)
	return root
}

// bindKey annotates flag name in fs with the configuration key it sets.
func bindKey(fs *pflag.FlagSet, name, key string) {
	_ = fs.SetAnnotation(name, viperKey, []string{key})
}

// initialize reads the config file and environment, binds the flags of
// the running command, then builds the configuration and the logger.
func (a *app) initialize(cmd *cobra.Command) error {
	v := a.v
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "oqamsync"))
		}
		v.AddConfigPath("/etc/oqamsync")
		v.AddConfigPath(".")
		v.SetConfigName("oqamsync")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	config.SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.log = log
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("using config file", zap.String("path", used))
	}
	return nil
}

// bindFlags binds every annotated flag of cmd, local or inherited, to its
// configuration key.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKey]
		if len(keys) == 0 {
			return
		}
		if err := v.BindPFlag(keys[0], f); err != nil {
			lastErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	return lastErr
}
