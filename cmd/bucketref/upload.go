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

type artifactFlags struct {
	name     string
	kind     string
	alias    string
	metadata []string
}

func (f *artifactFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.name, "name", "n", "", "artifact name (required)")
	fs.StringVarP(&f.kind, "type", "t", "", "artifact type (required)")
	fs.StringVarP(&f.alias, "alias", "a", "", "artifact alias; a fresh UUID when omitted, "+
		"\"!run-config-hash\" for the digest of the run config")
	fs.StringArrayVarP(&f.metadata, "metadata", "m", nil, "KEY=VALUE pinned to the artifact, repeatable")
}

func (f *artifactFlags) validate() error {
	switch {
	case f.name == "":
		return errors.New("--name is required")
	case f.kind == "":
		return errors.New("--type is required")
	}
	return nil
}

// aliasPtr is nil when --alias was not given, so the alias gets generated.
func (f *artifactFlags) aliasPtr(fs *pflag.FlagSet) *string {
	if !fs.Changed("alias") {
		return nil
	}
	v := f.alias
	return &v
}

func (a *app) uploadCommand() *Command {
	var (
		fs        *pflag.FlagSet
		art       artifactFlags
		reff      bool
		noReff    bool
		overwrite bool
		suffix    string
	)
	return &Command{
		Name:    "upload",
		Summary: "Upload a local directory as artifact",
		Usage:   "bucketref upload <src_dir> -n NAME -t TYPE [-a ALIAS] [-m KEY=VALUE]... [flags]",
		Flags: func() *pflag.FlagSet {
			fs = a.flagSet("upload")
			art.register(fs)
			fs.BoolVar(&reff, "reff", true, "upload to the bucket and track the reference")
			fs.BoolVar(&noReff, "no-reff", false, "embed the files in the tracking service instead")
			fs.BoolVar(&overwrite, "overwrite", false, "replace the bucket path when it already exists")
			fs.StringVarP(&suffix, "suffix", "s", "", "suffix of the set-output names, to upload several artifacts from one job")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: bucketref upload <src_dir> -n NAME -t TYPE")
			}
			if err := art.validate(); err != nil {
				return err
			}
			meta, err := utils.ParseMeta(art.metadata)
			if err != nil {
				return err
			}
			req := artifact.UploadRequest{
				Source:      args[0],
				Type:        art.kind,
				Name:        art.name,
				Alias:       art.aliasPtr(fs),
				Metadata:    meta,
				AsReference: reff && !noReff,
				Overwrite:   overwrite,
			}
			return a.withService(artifact.RunRequest{}, func(svc *artifact.ArtifactService) error {
				res, err := svc.Upload(a.ctx, req)
				if err != nil {
					return err
				}
				return a.print(res, func(w io.Writer) { printOutputs(w, res, suffix) })
			})
		},
	}
}
