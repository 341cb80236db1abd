package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SURVEYCTL"

// newRootCmd builds the command tree. Every setting resolves from a flag, a
// SURVEYCTL_* variable or the config file, in that order.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "surveyctl",
		Short:         "Operator tool for the callback survey service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .surveyctl.yaml in the working directory)")
	root.PersistentFlags().String("api", "http://127.0.0.1:8080", "base URL of the survey service")
	root.PersistentFlags().Duration("timeout", 10*time.Second, "request timeout")
	_ = v.BindPFlag("api", root.PersistentFlags().Lookup("api"))
	_ = v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))

	root.AddCommand(newSubmitCmd(v), newListCmd(v), newLoginCmd(v))
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".surveyctl")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}
