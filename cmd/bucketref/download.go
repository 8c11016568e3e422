// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/services/artifact"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

type downloadResult struct {
	Type        string `json:"type"        yaml:"type"`
	Name        string `json:"name"        yaml:"name"`
	Alias       string `json:"alias"       yaml:"alias"`
	Destination string `json:"destination" yaml:"destination"`
}

func (a *app) downloadCommand() *Command {
	var (
		fs      *pflag.FlagSet
		dest    string
		runArgs []string
		retries int
	)
	return &Command{
		Name:    "download",
		Summary: "Download an artifact by type, name and alias",
		Usage:   "bucketref download <type> <name> <alias> [-d DEST] [flags]",
		Flags: func() *pflag.FlagSet {
			fs = a.flagSet("download")
			fs.StringVarP(&dest, "destination-folder", "d", "", "target directory, ./<type>/<name>/<alias> when omitted")
			fs.StringArrayVar(&runArgs, "run-arg", nil, "KEY=VALUE of the run config, repeatable")
			fs.IntVar(&retries, "retries", 0, "retries on transient transfer errors, the retries setting when omitted")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 3 {
				return errors.New("usage: bucketref download <type> <name> <alias>")
			}
			kind, name, alias := args[0], args[1], args[2]
			runConfig, err := utils.ParseMeta(runArgs)
			if err != nil {
				return err
			}
			target, err := prepareDestination(dest, kind, name, alias)
			if err != nil {
				return err
			}
			req := artifact.DownloadRequest{
				Type:        kind,
				Name:        name,
				Alias:       alias,
				Destination: target,
			}
			if fs.Changed("retries") {
				req.Retries = &retries
			}
			return a.withService(artifact.RunRequest{Config: runConfig}, func(svc *artifact.ArtifactService) error {
				got, err := svc.Download(a.ctx, req)
				if err != nil {
					return err
				}
				res := downloadResult{Type: kind, Name: name, Alias: alias, Destination: got}
				return a.print(res, func(w io.Writer) { fmt.Fprintln(w, got) })
			})
		},
	}
}

// prepareDestination defaults to ./type/name/alias and creates the
// directory when missing.
func prepareDestination(dest, kind, name, alias string) (string, error) {
	if dest == "" {
		dest = filepath.Join(".", kind, name, alias)
	}
	st, err := os.Stat(dest)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", fmt.Errorf("failed to create destination: %w", err)
		}
	case err != nil:
		return "", err
	case !st.IsDir():
		return "", fmt.Errorf("destination %q exists, but not a directory", dest)
	}
	return dest, nil
}
