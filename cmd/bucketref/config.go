// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

func (a *app) configCommand() *Command {
	var save bool
	return &Command{
		Name:    "config",
		Summary: "Show the effective configuration, optionally saving it to the ini file",
		Usage:   "bucketref config [--save] [flags]",
		Flags: func() *pflag.FlagSet {
			fs := a.flagSet("config")
			fs.BoolVar(&save, "save", false, "persist the current values into the active environment section")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return errors.New("config takes no arguments")
			}
			if _, _, err := a.loadConfig(); err != nil {
				return err
			}
			if save {
				env, err := utils.SaveCurrentEnvironment()
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stderr, "saved environment %q to %s\n", env, utils.IniPath())
			}
			settings := utils.EffectiveSettings()
			return a.print(settings, func(w io.Writer) {
				b, err := yaml.Marshal(settings)
				if err == nil {
					_, _ = w.Write(b)
				}
			})
		},
	}
}

func (a *app) versionCommand() *Command {
	return &Command{
		Name:    "version",
		Summary: "Print the version",
		Run: func([]string) error {
			_, err := fmt.Fprintf(a.stdout, "bucketref version %s\n", version)
			return err
		},
	}
}
