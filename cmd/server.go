/*
Copyright © 2021 Edmond Cotterell

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
	"strings"

	devconfig "github.com/Daskott/kinfolk/dev/config"
	"github.com/Daskott/kinfolk/server"
	"github.com/Daskott/kinfolk/server/family"
	"github.com/Daskott/kinfolk/shared"
	"github.com/go-playground/validator"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func createServerCmd() *cobra.Command {
	var serverConfigFile string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start a kinfolk server",
		Long: `The kinfolk server exposes the family graph over http: people and their
relationships, eligibility lists for the edit forms, family trees and
account management for each family.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isDevEnv && serverConfigFile == "" {
				return formattedError("--sconfig is required outside of dev mode")
			}

			config, err := loadServerConfig(serverConfigFile, isDevEnv)
			if err != nil {
				return err
			}

			server.Start(config, isDevEnv)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")

	return cmd
}

// loadServerConfig reads the server config from configFile, or from the
// embedded dev config in dev mode. Env vars such as KINFOLK_LISTENER_PORT
// override file values.
func loadServerConfig(configFile string, devMode bool) (shared.ServerConfig, error) {
	serverConfig := shared.ServerConfig{}

	config := viper.New()
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv() // read in environment variables that match

	config.SetDefault("kinfolk.storage", shared.SQLITE_STORAGE)
	config.SetDefault("kinfolk.tokenTTLHours", server.DEFAULT_TOKEN_TTL_HRS)
	config.SetDefault("kinfolk.tree.defaultDepth", family.DEFAULT_TREE_DEPTH)
	config.SetDefault("kinfolk.cron.timeZone", "UTC")

	var err error
	if devMode && configFile == "" {
		config.SetConfigType("yaml")
		err = config.ReadConfig(strings.NewReader(devconfig.SERVER_YML))
	} else {
		config.SetConfigFile(configFile)
		err = config.ReadInConfig()
	}
	if err != nil {
		return serverConfig, formattedError("error reading server config file: %v", err)
	}

	err = config.Unmarshal(&serverConfig)
	if err != nil {
		return serverConfig, formattedError("error decoding server config: %v", err)
	}

	validate := validator.New()
	err = server.RegisterValidators(validate)
	if err != nil {
		return serverConfig, err
	}

	err = validate.Struct(serverConfig)
	if err != nil {
		return serverConfig, formattedError("invalid server config: %v", err)
	}

	return serverConfig, nil
}
