// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"

	"github.com/Dash-Industry-Forum/csai/internal"
	"github.com/Dash-Industry-Forum/csai/pkg/logging"
)

// ServerConfig configures the simulator: the local ad server and the
// fake playback session it runs against it.
type ServerConfig struct {
	LogFormat string `json:"logformat"`
	LogLevel  string `json:"loglevel"`
	Port      int    `json:"port"`

	// VMAPURL overrides the ad source. Empty means the simulator's
	// own sample VMAP endpoint.
	VMAPURL string `json:"vmapurl"`
	// ContentDurationS is the simulated content length.
	ContentDurationS int `json:"contentdurationS"`
	// TickMS is the wall-clock interval between simulated ticks; each
	// tick advances the active surface by one second of media time.
	TickMS  int  `json:"tickMS"`
	IsLive  bool `json:"islive"`
	Session bool `json:"session"`
}

var DefaultConfig = ServerConfig{
	LogFormat:        "pretty",
	LogLevel:         "info",
	Port:             8877,
	ContentDurationS: 600,
	TickMS:           10,
	Session:          true,
}

// LoadConfig loads defaults, config file, command line, and finally
// applies environment variables.
func LoadConfig(args []string) (*ServerConfig, error) {
	k := koanf.New(".")
	defaults := DefaultConfig
	k.Load(structs.Provider(defaults, "json"), nil)

	f := pflag.NewFlagSet("csai-sim", pflag.ContinueOnError)
	f.Usage = func() {
		parts := strings.Split(args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, "Run as %s [options]:\n", name)
		f.PrintDefaults()
	}
	cfgFile := f.String("cfg", "", "path to a JSON config file")
	version := f.Bool("version", false, "print version and exit")
	f.Int("port", k.Int("port"), "HTTP port for the sample ad server")
	lf := strings.Join(logging.LogFormats, ", ")
	f.String("logformat", k.String("logformat"), fmt.Sprintf("log format [%s]", lf))
	ll := strings.Join(logging.LogLevels, ", ")
	f.String("loglevel", k.String("loglevel"), fmt.Sprintf("log level [%s]", ll))
	f.String("vmapurl", k.String("vmapurl"), "VMAP URL (empty means the built-in sample)")
	f.Int("contentduration", k.Int("contentdurationS"), "simulated content duration (seconds)")
	f.Int("tick", k.Int("tickMS"), "wall-clock tick interval (milliseconds)")
	f.Bool("islive", k.Bool("islive"), "declare the simulated content as live")
	f.Bool("session", k.Bool("session"), "run a playback session against the ad server")
	if err := f.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("command line parse: %w", err)
	}
	if *version {
		internal.PrintVersion()
		os.Exit(0)
	}

	if *cfgFile != "" {
		cf := file.Provider(*cfgFile)
		if err := k.Load(cf, json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("parsing cli: %v", err)
	}

	// Flags without unit suffix map onto the suffixed config keys.
	if f.Changed("contentduration") {
		v, _ := f.GetInt("contentduration")
		k.Load(confmap.Provider(map[string]any{"contentdurationS": v}, "."), nil)
	}
	if f.Changed("tick") {
		v, _ := f.GetInt("tick")
		k.Load(confmap.Provider(map[string]any{"tickMS": v}, "."), nil)
	}

	k.Load(env.Provider("CSAI_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CSAI_")), "_", ".", -1)
	}), nil)

	var cfg ServerConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
