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

package version

import (
	"github.com/lwviz/lwviz/pkg/cmd/util"
	"github.com/lwviz/lwviz/pkg/version"
	"github.com/spf13/cobra"
)

// options defines flags for the `version` command.
type options struct {
	json bool
}

// newOptions creates new options for the `version` command.
func newOptions() *options {
	return &options{}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "Print the version information in JSON format")
}

func (o *options) run(cmd *cobra.Command) error {
	if o.json {
		return util.JSONPrint(cmd, version.GetInfo())
	}
	cmd.Print(version.GetRawInfo())
	return nil
}

// NewCmdVersion creates the `version` command.
func NewCmdVersion() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "version",
		Short: "Output version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}
	o.addFlags(command)

	return command
}
