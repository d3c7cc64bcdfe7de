// Copyright 2026 Noesis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// ciceroned is the multi-tenant museum guide daemon: it serves the
// chat API for every configured museum over one HTTP listener.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/noesis-labs/cicerone/internal/log"
)

var (
	cfgFile string
	config  *Config
)

var rootCmd = &cobra.Command{
	Use:   "ciceroned",
	Short: "Cicerone - conversational museum guide server",
	Long:  `Cicerone answers museum visitors' questions over a multi-tenant chat API, grounding every answer in the museum's own catalogue and documents.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().String("addr", ":8080", "HTTP listen address")
	rootCmd.PersistentFlags().String("tenants", "tenants.json", "tenants file path")
	rootCmd.PersistentFlags().String("metering-db", "cicerone.db", "usage database path")
	rootCmd.PersistentFlags().Bool("warmup", true, "build tenant pipelines at startup")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")

	_ = viper.BindPFlag("server.addr", rootCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("tenants.path", rootCmd.PersistentFlags().Lookup("tenants"))
	_ = viper.BindPFlag("tenants.warmup", rootCmd.PersistentFlags().Lookup("warmup"))
	_ = viper.BindPFlag("metering.path", rootCmd.PersistentFlags().Lookup("metering-db"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(config.Log.Level, config.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}
}
