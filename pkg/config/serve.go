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

package config

import (
	"net/url"

	"github.com/lwviz/lwviz/pkg/logutil"
)

// DefaultViewerURL is the web viewer the serve command links to.
const DefaultViewerURL = "https://foxviz.lightwheel.net/"

var defaultServeConfig = &ServeConfig{
	Host:         "0.0.0.0",
	Port:         12312,
	PortAttempts: 10,
	OpenBrowser:  true,
	ViewerURL:    DefaultViewerURL,
	StartSec:     -1,
	Log:          defaultLogConfig(),
}

// ServeConfig is the configuration of the serve command.
type ServeConfig struct {
	File string `toml:"file" json:"file"`
	// AdditionalFiles are served next to File and opened in the same view.
	AdditionalFiles []string `toml:"additional-files" json:"additional-files"`

	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`
	// PortAttempts is the number of ports tried when Port is in use.
	PortAttempts int  `toml:"port-attempts" json:"port-attempts"`
	OpenBrowser  bool `toml:"open-browser" json:"open-browser"`

	ViewerURL string `toml:"viewer-url" json:"viewer-url"`
	// StartSec is the unix time in seconds the viewer starts at, negative
	// to let the viewer decide.
	StartSec float64 `toml:"start-sec" json:"start-sec"`

	Log *logutil.Config `toml:"log" json:"log"`
}

// GetDefaultServeConfig returns the default serve config.
func GetDefaultServeConfig() *ServeConfig {
	c := *defaultServeConfig
	logCfg := *defaultServeConfig.Log
	c.Log = &logCfg
	return &c
}

// ValidateAndAdjust validates and adjusts the serve config.
func (c *ServeConfig) ValidateAndAdjust() error {
	if c.File == "" {
		return invalid("file is empty")
	}
	for _, f := range append([]string{c.File}, c.AdditionalFiles...) {
		if err := checkMCAPFile(f); err != nil {
			return err
		}
	}
	if c.Host == "" {
		c.Host = defaultServeConfig.Host
	}
	if c.Port <= 0 || c.Port > 65535 {
		return invalid("port %d is out of range", c.Port)
	}
	if c.PortAttempts <= 0 {
		c.PortAttempts = defaultServeConfig.PortAttempts
	}
	if c.ViewerURL == "" {
		c.ViewerURL = defaultServeConfig.ViewerURL
	}
	u, err := url.Parse(c.ViewerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("viewer-url %s should be a valid http or https URL", c.ViewerURL)
	}
	if c.Log == nil {
		c.Log = defaultLogConfig()
	}
	c.Log.Adjust()
	return nil
}
