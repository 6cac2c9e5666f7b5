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

package cmd

import (
	"os"

	"github.com/lwviz/lwviz/pkg/cmd/convert"
	"github.com/lwviz/lwviz/pkg/cmd/serve"
	"github.com/lwviz/lwviz/pkg/cmd/util"
	"github.com/lwviz/lwviz/pkg/cmd/version"
	"github.com/spf13/cobra"
)

// NewCmd creates the root command.
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lwviz",
		Short: "lwviz",
		Long:  `Convert recorded sessions into visualization files and serve them to the web viewer`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
}

// AddLwvizCommandTo adds the lwviz commands to cmd.
func AddLwvizCommandTo(cmd *cobra.Command) {
	cmd.AddCommand(convert.NewCmdConvert())
	cmd.AddCommand(serve.NewCmdServe())
	cmd.AddCommand(version.NewCmdVersion())
}

// Run runs the root command.
func Run() {
	cmd := NewCmd()

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	AddLwvizCommandTo(cmd)
	util.CheckErr(cmd.Execute())
}
