// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is set via -ldflags "-X main.version=..." at release build
// time, the way cuemby-warren's cmd/warren does it.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "lineaged",
	Short:   "lineaged - a replicated, versioned configuration repository server",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "make the operation more talkative")
	rootCmd.PersistentFlags().BoolP("expand-env", "E", false, "replace ${var} or $var in the config file with the current environment's values")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(bootstrapCmd)
}

func configureLogging(cmd *cobra.Command) *logrus.Entry {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lineaged: %v\n", err)
		os.Exit(1)
	}
}
