/*
Copyright 2025 David Arnold
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"gitlab.com/davidxarnold/kubical/pkg/cloud"
	"gitlab.com/davidxarnold/kubical/pkg/util"
	v "gitlab.com/davidxarnold/kubical/version"
)

var cfgFile string

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			log.Fatalln(err)
		}

		// Search config in home directory with name ".kubical" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".kubical")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Infoln("Using config file:", viper.ConfigFileUsed())
	}
}

// NewKubicalCmd provides a cobra command
func NewKubicalCmd() *cobra.Command {
	var (
		source    string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:           "kubical",
		Short:         "Generate a k3s node configuration from cloud instance metadata.",
		Long: "Kubical derives k3s bootstrap configuration (topology labels, capacity type,\n" +
			"taints) from the instance it runs on and prints it as YAML, suitable for\n" +
			"redirection to /etc/rancher/k3s/config.yaml.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return util.SetupLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := viper.GetString("source")
			src := cloud.LookupSource(name)
			if src == nil {
				return fmt.Errorf("unknown metadata source: %q", name)
			}

			cfg, err := Generate(cmd.Context(), src)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Version = v.Version

	cmd.PersistentFlags().StringVar(
		&cfgFile, "config", "",
		"config file (default is $HOME/.kubical.yaml)")
	cmd.PersistentFlags().StringVar(
		&source, "source", cloud.SourceAWS,
		"Metadata source to query. Currently only: aws")
	cmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "txt",
		"Diagnostic log format written to stderr. One of: txt|json")

	cobra.OnInitialize(initConfig)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	_ = viper.BindPFlag("source", cmd.PersistentFlags().Lookup("source"))
	_ = viper.BindPFlag("log-format", cmd.PersistentFlags().Lookup("log-format"))

	return cmd
}
