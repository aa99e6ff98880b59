/*
Copyright 2024 Numcheck Authors.

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

	"github.com/ightingale/numcheck"
	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/database"
	"github.com/ightingale/numcheck/internal/notification"
)

// Numcheck represents the CLI application, encapsulating the root
// Cobra command.
type Numcheck struct {
	cmd *cobra.Command
}

// numcheckInstance holds the service instance and its configuration,
// shared by the subcommands.
type numcheckInstance struct {
	numcheck *numcheck.Numcheck
	cnf      *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service before
// any subcommand runs.
func preRun(app *numcheckInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("numcheck.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newService, err := setupNumcheck(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.numcheck = newService
		app.cnf = cnf

		return nil
	}
}

func setupNumcheck(cfg *config.Configuration) (*numcheck.Numcheck, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newService, err := numcheck.NewNumcheck(db)
	if err != nil {
		return nil, fmt.Errorf("error creating numcheck: %v", err)
	}
	return newService, nil
}

// NewCLI creates the command-line interface for the application.
func NewCLI() *Numcheck {
	var configFile string
	b := &numcheckInstance{}

	var rootCmd = &cobra.Command{
		Use:   "numcheck",
		Short: "Bulk number verification billing service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./numcheck.json", "Configuration file for numcheck")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))

	return &Numcheck{cmd: rootCmd}
}

func (w Numcheck) executeCLI() {
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
