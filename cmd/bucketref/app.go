// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/logging"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/services/artifact"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalOptions struct {
	env       string
	bucket    string
	project   string
	runName   string
	jobType   string
	entity    string
	logLevel  string
	logFormat string
	output    string
}

type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	opts   globalOptions
}

func newApp(ctx context.Context, stdout, stderr io.Writer) *app {
	return &app{ctx: ctx, stdout: stdout, stderr: stderr}
}

func (a *app) root() *Command {
	return &Command{
		Name:    "bucketref",
		Summary: "Upload to and download from buckets artifacts tracked by the platform core.",
		help:    a.stderr,
		Subcommands: []*Command{
			a.uploadCommand(),
			a.downloadCommand(),
			a.linkCommand(),
			a.configCommand(),
			a.versionCommand(),
		},
	}
}

func (a *app) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&a.opts.env, "env", "", "environment section of the ini file")
	fs.StringVar(&a.opts.bucket, "bucket", "", "bucket name or URL (s3://name/prefix, file:///dir) storing the artifacts")
	fs.StringVar(&a.opts.project, "project-name", "", "project the run and artifacts belong to")
	fs.StringVar(&a.opts.runName, "run-name", "", "human-readable run name")
	fs.StringVar(&a.opts.jobType, "job-type", "", "job type grouping similar runs")
	fs.StringVar(&a.opts.entity, "entity", "", "user or team owning the runs")
	fs.StringVar(&a.opts.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&a.opts.logFormat, "log-format", "", "text or json")
	fs.StringVarP(&a.opts.output, "output", "o", "short", "output format: short, json or yaml")
	return fs
}

// loadConfig reads ini and env, applies the global flags on top and
// returns the SDK config with the logger it asks for.
func (a *app) loadConfig() (config.Config, logging.Logger, error) {
	if err := utils.RegisterIniCfgWithViper(nil, a.opts.env); err != nil {
		return config.Config{}, nil, err
	}

	overrides := map[string]string{
		utils.Project:   a.opts.project,
		utils.Entity:    a.opts.entity,
		utils.LogLevel:  a.opts.logLevel,
		utils.LogFormat: a.opts.logFormat,
	}
	if strings.Contains(a.opts.bucket, "://") {
		overrides[utils.BucketURL] = a.opts.bucket
	} else {
		overrides[utils.Bucket] = a.opts.bucket
	}
	for _, k := range utils.SortedKeys(overrides) {
		if v := overrides[k]; v != "" {
			viper.Set(k, v)
		}
	}

	level, err := logging.ParseLevel(viper.GetString(utils.LogLevel))
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logging.NewLogger(level, viper.GetString(utils.LogFormat), a.stderr)

	conf, err := utils.LoadSDKConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	return conf, log, nil
}

// withService runs fn against an artifact service and closes it, which
// completes the run.
func (a *app) withService(run artifact.RunRequest, fn func(*artifact.ArtifactService) error) (err error) {
	conf, log, err := a.loadConfig()
	if err != nil {
		return err
	}
	run.Name = a.opts.runName
	run.JobType = a.opts.jobType

	svc, err := artifact.NewArtifactService(a.ctx, conf,
		artifact.WithLogger(log),
		artifact.WithRunDefaults(run))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(a.ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(svc)
}

// print writes v as json or yaml, or calls short for the default format.
func (a *app) print(v any, short func(w io.Writer)) error {
	switch utils.TranslateFormat(a.opts.output) {
	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.stdout, string(b))
		return err
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = a.stdout.Write(b)
		return err
	default:
		short(a.stdout)
		return nil
	}
}

// printOutputs emits the "::set-output" lines read by pipeline runners.
// They must start the line.
func printOutputs(w io.Writer, res *artifact.UploadResult, suffix string) {
	if suffix != "" {
		suffix = "_" + suffix
	}
	fmt.Fprintf(w, "::set-output name=artifact_name%s::%s\n", suffix, res.Name)
	fmt.Fprintf(w, "::set-output name=artifact_type%s::%s\n", suffix, res.Type)
	fmt.Fprintf(w, "::set-output name=artifact_alias%s::%s\n", suffix, res.Alias)
}
