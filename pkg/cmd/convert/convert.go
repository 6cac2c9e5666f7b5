// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package convert

import (
	"context"

	"github.com/lwviz/lwviz/pkg/cmd/util"
	"github.com/lwviz/lwviz/pkg/config"
	"github.com/lwviz/lwviz/pkg/version"
	vizconvert "github.com/lwviz/lwviz/viz/convert"
	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// unsetNs marks an unset --start-ns or --end-ns.
const unsetNs = -1

// options defines flags for the `convert` command.
type options struct {
	configFilePath string
	startNs        int64
	endNs          int64
	logFile        string
	logLevel       string

	convertConfig *config.ConvertConfig
}

// newOptions creates new options for the `convert` command.
func newOptions() *options {
	return &options{convertConfig: config.GetDefaultConvertConfig()}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to the conversion to it.
func (o *options) addFlags(cmd *cobra.Command) {
	def := config.GetDefaultConvertConfig()
	cmd.Flags().StringVarP(&o.convertConfig.Input, "input", "i", def.Input, "Input MCAP file")
	cmd.Flags().StringVarP(&o.convertConfig.Output, "output", "o", def.Output, "Output MCAP file, default to <input dir>/output/<input name>_vis.mcap")
	cmd.Flags().Int64Var(&o.startNs, "start-ns", unsetNs, "Convert records from this unix timestamp in nanoseconds")
	cmd.Flags().Int64Var(&o.endNs, "end-ns", unsetNs, "Convert records up to this unix timestamp in nanoseconds")
	cmd.Flags().IntVar(&o.convertConfig.Concurrency, "concurrency", def.Concurrency, "Number of transform workers, 0 to use all CPUs")
	cmd.Flags().IntVar(&o.convertConfig.ChunkSize, "chunk-size", def.ChunkSize, "Number of transform entries per batch")
	cmd.Flags().IntVar(&o.convertConfig.QueueSize, "queue-size", def.QueueSize, "Capacity of the queues between the pipeline stages")
	cmd.Flags().StringVar(&o.convertConfig.Compression, "compression", def.Compression, "Output chunk compression (zstd|lz4|none)")
	cmd.Flags().StringVar(&o.convertConfig.ChunkBytes, "chunk-bytes", def.ChunkBytes, "Uncompressed size of an output chunk, like 4MiB")
	cmd.Flags().IntVar(&o.convertConfig.TrajectoryPoints, "trajectory-points", def.TrajectoryPoints, "Number of recent head positions drawn as trajectory")
	cmd.Flags().BoolVar(&o.convertConfig.SplitBody, "split-body", def.SplitBody, "Draw upper and lower body skeletons separately")
	cmd.Flags().StringVar(&o.convertConfig.StatusAddr, "status-addr", def.StatusAddr, "Expose metrics on this address while converting")
	cmd.Flags().StringVar(&o.logFile, "log-file", def.Log.File, "log file path")
	cmd.Flags().StringVar(&o.logLevel, "log-level", def.Log.Level, "log level (etc: debug|info|warn|error)")
	cmd.Flags().StringVar(&o.configFilePath, "config", "", "Path of the configuration file")
}

// complete loads the configuration file and overrides it with the flags
// set on the command line.
func (o *options) complete(cmd *cobra.Command) error {
	conf := config.GetDefaultConvertConfig()
	if len(o.configFilePath) > 0 {
		if err := util.StrictDecodeFile(o.configFilePath, "lwviz convert", conf); err != nil {
			return err
		}
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "input":
			conf.Input = o.convertConfig.Input
		case "output":
			conf.Output = o.convertConfig.Output
		case "start-ns":
			if o.startNs != unsetNs {
				startNs := o.startNs
				conf.StartNs = &startNs
			}
		case "end-ns":
			if o.endNs != unsetNs {
				endNs := o.endNs
				conf.EndNs = &endNs
			}
		case "concurrency":
			conf.Concurrency = o.convertConfig.Concurrency
		case "chunk-size":
			conf.ChunkSize = o.convertConfig.ChunkSize
		case "queue-size":
			conf.QueueSize = o.convertConfig.QueueSize
		case "compression":
			conf.Compression = o.convertConfig.Compression
		case "chunk-bytes":
			conf.ChunkBytes = o.convertConfig.ChunkBytes
		case "trajectory-points":
			conf.TrajectoryPoints = o.convertConfig.TrajectoryPoints
		case "split-body":
			conf.SplitBody = o.convertConfig.SplitBody
		case "status-addr":
			conf.StatusAddr = o.convertConfig.StatusAddr
		case "log-file":
			conf.Log.File = o.logFile
		case "log-level":
			conf.Log.Level = o.logLevel
		case "config":
			// do nothing
		default:
			log.Panic("unknown flag, please report a bug", zap.String("flagName", flag.Name))
		}
	})
	o.convertConfig = conf
	return nil
}

// validate checks the completed configuration.
func (o *options) validate() error {
	return errors.Trace(o.convertConfig.ValidateAndAdjust())
}

func (o *options) run(cmd *cobra.Command) error {
	conf := o.convertConfig
	ctx, cancel := util.InitCmd(cmd, conf.Log)
	defer cancel()

	version.LogVersionInfo()
	for _, path := range failpoint.List() {
		status, err := failpoint.Status(path)
		if err != nil {
			log.Error("fail to get failpoint status", zap.Error(err))
		}
		log.Info("failpoint enabled", zap.String("path", path), zap.String("status", status))
	}

	done := make(chan struct{})
	defer close(done)
	util.InitSignalHandling(func() <-chan struct{} {
		cancel()
		return done
	}, cancel)

	g, gCtx := errgroup.WithContext(ctx)
	convertDone := make(chan struct{})
	if conf.StatusAddr != "" {
		status := newStatusServer(conf.StatusAddr)
		g.Go(func() error {
			return status.run(gCtx, convertDone)
		})
	}
	g.Go(func() error {
		defer close(convertDone)
		return vizconvert.Run(gCtx, conf)
	})
	err := g.Wait()
	if err != nil && errors.Cause(err) != context.Canceled {
		log.Error("run convert", zap.String("error", errors.ErrorStack(err)))
		return errors.Annotate(err, "run convert")
	}
	log.Info("lwviz convert exits successfully")
	return nil
}

// NewCmdConvert creates the `convert` command.
func NewCmdConvert() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "convert",
		Short: "Convert a recorded MCAP file into a visualization MCAP file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.complete(cmd); err != nil {
				return err
			}
			if err := o.validate(); err != nil {
				return err
			}
			return o.run(cmd)
		},
	}
	o.addFlags(command)

	return command
}
