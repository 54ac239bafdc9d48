/*
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
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/krutt/endur"
	"github.com/krutt/endur/config"
	"github.com/krutt/endur/internal/cache"
	"github.com/krutt/endur/lightning"
	"github.com/krutt/endur/model"
	"github.com/krutt/endur/oracle"
)

// Endur represents the CLI application, encapsulating the root Cobra command.
type Endur struct {
	cmd *cobra.Command
}

// endurInstance holds the runtime service, the tracked peg record, and the
// loaded configuration, shared across subcommands.
type endurInstance struct {
	endur   *endur.Endur
	channel *model.StableChannel
	cnf     *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the peg service before
// running any command.
func preRun(app *endurInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("endur.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		service, channel, err := setupEndur(cnf)
		if err != nil {
			log.Fatal(err)
		}

		app.endur = service
		app.channel = channel
		app.cnf = cnf

		return nil
	}
}

// setupEndur wires the node client, price oracle, and peg record from the
// loaded configuration.
func setupEndur(cfg *config.Configuration) (*endur.Endur, *model.StableChannel, error) {
	node := lightning.NewClient(cfg.Node.Url, cfg.Node.AuthToken)

	priceCache, err := cache.NewCache()
	if err != nil {
		return nil, nil, fmt.Errorf("error setting up cache: %v", err)
	}

	prices, err := oracle.NewService(priceCache)
	if err != nil {
		return nil, nil, fmt.Errorf("error setting up price oracle: %v", err)
	}

	channelID := lightning.ZeroChannelID
	if cfg.Peg.ChannelId != "" {
		channelID, err = lightning.ChannelIDFromHex(cfg.Peg.ChannelId)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid channel id in config: %v", err)
		}
	}

	channel, err := model.NewStableChannel(
		channelID,
		cfg.Peg.Counterparty,
		model.USDFromFloat(cfg.Peg.ExpectedUsd),
		cfg.Peg.IsReceiver,
		cfg.Peg.RiskLevel,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating peg record: %v", err)
	}

	return endur.NewEndur(node, prices), channel, nil
}

// NewCLI creates the command-line interface for the Endur peg daemon.
func NewCLI() *Endur {
	var configFile string
	e := &endurInstance{}

	var rootCmd = &cobra.Command{
		Use:   "endur",
		Short: "USD peg maintenance over a lightning channel",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./endur.json", "Configuration file for the peg daemon")

	rootCmd.PersistentPreRunE = preRun(e)

	rootCmd.AddCommand(serverCommands(e))
	rootCmd.AddCommand(workerCommands(e))
	rootCmd.AddCommand(checkCommands(e))

	return &Endur{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Endur) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
