// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"io"

	"github.com/spf13/pflag"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/services/artifact"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

func (a *app) linkCommand() *Command {
	var (
		fs     *pflag.FlagSet
		art    artifactFlags
		suffix string
	)
	return &Command{
		Name:    "link",
		Summary: "Track a directory already in the bucket as artifact",
		Usage:   "bucketref link <bucket_path> -n NAME -t TYPE [-a ALIAS] [-m KEY=VALUE]... [flags]",
		Flags: func() *pflag.FlagSet {
			fs = a.flagSet("link")
			art.register(fs)
			fs.StringVarP(&suffix, "suffix", "s", "", "suffix of the set-output names")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: bucketref link <bucket_path> -n NAME -t TYPE")
			}
			if err := art.validate(); err != nil {
				return err
			}
			meta, err := utils.ParseMeta(art.metadata)
			if err != nil {
				return err
			}
			req := artifact.LinkRequest{
				BucketPath: args[0],
				Type:       art.kind,
				Name:       art.name,
				Alias:      art.aliasPtr(fs),
				Metadata:   meta,
			}
			return a.withService(artifact.RunRequest{}, func(svc *artifact.ArtifactService) error {
				res, err := svc.Link(a.ctx, req)
				if err != nil {
					return err
				}
				return a.print(res, func(w io.Writer) { printOutputs(w, res, suffix) })
			})
		},
	}
}
