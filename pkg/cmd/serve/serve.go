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

package serve

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/lwviz/lwviz/pkg/cmd/util"
	"github.com/lwviz/lwviz/pkg/config"
	"github.com/lwviz/lwviz/pkg/version"
	"github.com/lwviz/lwviz/viz/server"
	"github.com/lwviz/lwviz/viz/sink"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options defines flags for the `serve` command.
type options struct {
	configFilePath string
	serverOnly     bool
	logFile        string
	logLevel       string

	serveConfig *config.ServeConfig
}

// newOptions creates new options for the `serve` command.
func newOptions() *options {
	return &options{serveConfig: config.GetDefaultServeConfig()}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to the file server to it.
func (o *options) addFlags(cmd *cobra.Command) {
	def := config.GetDefaultServeConfig()
	cmd.Flags().StringVar(&o.serveConfig.Host, "host", def.Host, "Set the listening host")
	cmd.Flags().IntVar(&o.serveConfig.Port, "port", def.Port, "Set the listening port, nearby ports are tried when it is in use")
	cmd.Flags().IntVar(&o.serveConfig.PortAttempts, "port-attempts", def.PortAttempts, "Number of ports to try")
	cmd.Flags().BoolVar(&o.serverOnly, "server-only", !def.OpenBrowser, "Start the server only, do not open the browser")
	cmd.Flags().StringSliceVar(&o.serveConfig.AdditionalFiles, "additional-file", def.AdditionalFiles, "Additional MCAP files opened in the same view")
	cmd.Flags().Float64Var(&o.serveConfig.StartSec, "start-sec", def.StartSec, "Unix time in seconds the viewer starts at")
	cmd.Flags().StringVar(&o.serveConfig.ViewerURL, "viewer-url", def.ViewerURL, "Base url of the web viewer")
	cmd.Flags().StringVar(&o.logFile, "log-file", def.Log.File, "log file path")
	cmd.Flags().StringVar(&o.logLevel, "log-level", def.Log.Level, "log level (etc: debug|info|warn|error)")
	cmd.Flags().StringVar(&o.configFilePath, "config", "", "Path of the configuration file")
}

// complete loads the configuration file, overrides it with the flags set
// on the command line and adds the visualization file of the served one.
func (o *options) complete(cmd *cobra.Command, args []string) error {
	conf := config.GetDefaultServeConfig()
	if len(o.configFilePath) > 0 {
		if err := util.StrictDecodeFile(o.configFilePath, "lwviz serve", conf); err != nil {
			return err
		}
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "host":
			conf.Host = o.serveConfig.Host
		case "port":
			conf.Port = o.serveConfig.Port
		case "port-attempts":
			conf.PortAttempts = o.serveConfig.PortAttempts
		case "server-only":
			conf.OpenBrowser = !o.serverOnly
		case "additional-file":
			conf.AdditionalFiles = o.serveConfig.AdditionalFiles
		case "start-sec":
			conf.StartSec = o.serveConfig.StartSec
		case "viewer-url":
			conf.ViewerURL = o.serveConfig.ViewerURL
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
	if len(args) > 0 {
		conf.File = args[0]
	}

	if conf.File != "" {
		vis := sink.DefaultOutputPath(conf.File)
		if _, err := os.Stat(vis); err == nil {
			if !contains(conf.AdditionalFiles, vis) {
				conf.AdditionalFiles = append(conf.AdditionalFiles, vis)
			}
		} else {
			cmd.Print(color.HiYellowString("[WARN] visualization file %s not found, "+
				"run `lwviz convert --input %s` to create it\n", vis, conf.File))
		}
	}
	o.serveConfig = conf
	return nil
}

func contains(files []string, file string) bool {
	for _, f := range files {
		if f == file {
			return true
		}
	}
	return false
}

// validate checks the completed configuration.
func (o *options) validate() error {
	return errors.Trace(o.serveConfig.ValidateAndAdjust())
}

func (o *options) run(cmd *cobra.Command) error {
	conf := o.serveConfig
	ctx, cancel := util.InitCmd(cmd, conf.Log)
	defer cancel()

	version.LogVersionInfo()
	util.LogHTTPProxies()

	srv, err := server.New(conf)
	if err != nil {
		return errors.Trace(err)
	}
	done := make(chan struct{})
	defer close(done)
	util.InitSignalHandling(func() <-chan struct{} {
		cancel()
		return done
	}, cancel)

	cmd.Println("Press Ctrl-C to stop the server")
	err = srv.Run(ctx)
	if err != nil && errors.Cause(err) != context.Canceled {
		log.Error("run server", zap.String("error", errors.ErrorStack(err)))
		return errors.Annotate(err, "run server")
	}
	log.Info("lwviz serve exits successfully")
	return nil
}

// NewCmdServe creates the `serve` command.
func NewCmdServe() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:     "serve [file.mcap]",
		Aliases: []string{"show"},
		Short:   "Serve MCAP files and open them in the web viewer",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.complete(cmd, args); err != nil {
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
