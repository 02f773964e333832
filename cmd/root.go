////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. HEARTLINE_API.
const envPrefix = "HEARTLINE"

// config is everything the subcommands read from flags, the environment and
// the optional config file.
type config struct {
	API      string        `mapstructure:"api"`
	Socket   string        `mapstructure:"socket"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Params   string        `mapstructure:"params"`
	Session  string        `mapstructure:"session"`
	Password string        `mapstructure:"password"`
	LogLevel uint          `mapstructure:"logLevel"`
	Log      string        `mapstructure:"log"`
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "heartline",
	Short: "Command line client for the heartline messaging backend",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		initLog(viper.GetUint(logLevelFlag), viper.GetString(logFlag))
		return nil
	},
}

// initConfig loads the .env file and config file, if any, and maps the
// environment onto the flags.
func initConfig() error {
	envFile := viper.GetString(envFlag)
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to load %s", envFile)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if path := viper.GetString(configFlag); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config %s", path)
		}
	}
	return nil
}

// loadConfig decodes the merged settings. Durations may be given as strings
// such as "30s" in the environment or config file.
func loadConfig() (config, error) {
	var c config
	err := viper.Unmarshal(&c, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)))
	if err != nil {
		return config{}, errors.Wrap(err, "invalid configuration")
	}
	if c.API == "" {
		return config{}, errors.Errorf("--%s is required", apiFlag)
	}
	if c.Session == "" {
		return config{}, errors.Errorf("--%s is required", sessionFlag)
	}
	return c, nil
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(ioutil.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.INFO.Printf("log level set to: INFO")
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

func init() {
	// NOTE: The point of init() is to be declarative.
	// There is one init in each sub command. Do not put variable declarations
	// here.
	rootCmd.PersistentFlags().StringP(apiFlag, "a", "",
		"Base URL of the REST API, e.g. https://api.example.com/api/v1")
	viper.BindPFlag(apiFlag, rootCmd.PersistentFlags().Lookup(apiFlag))

	rootCmd.PersistentFlags().StringP(socketFlag, "", "",
		"URL of the push socket, e.g. wss://api.example.com/socket")
	viper.BindPFlag(socketFlag, rootCmd.PersistentFlags().Lookup(socketFlag))

	rootCmd.PersistentFlags().DurationP(timeoutFlag, "t", 30*time.Second,
		"Timeout of each backend request")
	viper.BindPFlag(timeoutFlag, rootCmd.PersistentFlags().Lookup(timeoutFlag))

	rootCmd.PersistentFlags().StringP(paramsFlag, "", "",
		"JSON overrides of the messenger parameters")
	viper.BindPFlag(paramsFlag, rootCmd.PersistentFlags().Lookup(paramsFlag))

	rootCmd.PersistentFlags().StringP(sessionFlag, "s", "",
		"Sets the storage directory for client session data")
	viper.BindPFlag(sessionFlag, rootCmd.PersistentFlags().Lookup(sessionFlag))

	rootCmd.PersistentFlags().StringP(passwordFlag, "p", "",
		"Password to the session storage")
	viper.BindPFlag(passwordFlag,
		rootCmd.PersistentFlags().Lookup(passwordFlag))

	rootCmd.PersistentFlags().UintP(logLevelFlag, "v", 0,
		"Verbose mode for debugging")
	viper.BindPFlag(logLevelFlag,
		rootCmd.PersistentFlags().Lookup(logLevelFlag))

	rootCmd.PersistentFlags().StringP(logFlag, "l", "-",
		"Path to the log output path (- is stdout)")
	viper.BindPFlag(logFlag, rootCmd.PersistentFlags().Lookup(logFlag))

	rootCmd.PersistentFlags().StringP(configFlag, "c", "",
		"Optional config file (any format viper reads)")
	viper.BindPFlag(configFlag, rootCmd.PersistentFlags().Lookup(configFlag))

	rootCmd.PersistentFlags().StringP(envFlag, "", ".env",
		"Optional .env file loaded before reading the environment")
	viper.BindPFlag(envFlag, rootCmd.PersistentFlags().Lookup(envFlag))
}
