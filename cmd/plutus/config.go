// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/plutus/internal/coordinator"
	"github.com/pdiddy/plutus/pkg/types"
)

func setDefaults() {
	viper.SetDefault("stream.base_url", "http://localhost:8000")
	viper.SetDefault("stream.timeout", 30*time.Second)
	viper.SetDefault("stream.mode", string(types.ModeStream))
	viper.SetDefault("stream.max_results", types.DefaultMaxResults)
	viper.SetDefault("stream.idle_timeout", coordinator.DefaultIdleTimeout)
	viper.SetDefault("stream.max_frame_bytes", 0)
	viper.SetDefault("archive.dir", "reports")
	viper.SetDefault("archive.disabled", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("secrets_dir", ".secrets")
}

// loadConfig assembles the client configuration from flags, environment
// (PLUTUS_*), the config file and defaults, in that order of precedence.
// The service token comes from PLUTUS_TOKEN or the secrets directory.
func loadConfig() types.ClientConfig {
	token := viper.GetString("token")
	if token == "" {
		token = loadedSecrets.APIToken()
	}

	return types.ClientConfig{
		Stream: types.StreamConfig{
			HTTPConfig: types.HTTPConfig{
				BaseURL:   viper.GetString("stream.base_url"),
				Timeout:   viper.GetDuration("stream.timeout"),
				UserAgent: "plutus/" + version,
				Token:     token,
			},
			Mode:          types.Mode(viper.GetString("stream.mode")),
			MaxResults:    viper.GetInt("stream.max_results"),
			IdleTimeout:   viper.GetDuration("stream.idle_timeout"),
			MaxFrameBytes: viper.GetInt("stream.max_frame_bytes"),
		},
		Archive: types.ArchiveConfig{
			Dir:      viper.GetString("archive.dir"),
			Disabled: viper.GetBool("archive.disabled"),
		},
		Log: types.LogConfig{
			Level: viper.GetString("log.level"),
			File:  viper.GetString("log.file"),
		},
	}
}
