package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlRange struct {
	Min []int `yaml:"min"`
	Max []int `yaml:"max"`
}

type yamlConfig struct {
	Colors map[string]yamlRange `yaml:"colors"`
	Grid   struct {
		Columns        *int     `yaml:"columns"`
		Rows           *int     `yaml:"rows"`
		BaseWidth      *int     `yaml:"base_width"`
		BaseHeight     *int     `yaml:"base_height"`
		Bands          *int     `yaml:"bands"`
		NearOffset     *float64 `yaml:"near_offset"`
		FarOffset      *float64 `yaml:"far_offset"`
		OccupancyRatio *float64 `yaml:"occupancy_ratio"`
	} `yaml:"grid"`
	Capture struct {
		Backend         string `yaml:"backend"`
		FrameIntervalMs int    `yaml:"frame_interval_ms"`
	} `yaml:"capture"`
	Session struct {
		WaitForStartClick   *bool  `yaml:"wait_for_start_click"`
		RecordWithoutPlayer *bool  `yaml:"record_without_player"`
		StopKey             string `yaml:"stop_key"`
		PlayerMissingWarn   *int   `yaml:"player_missing_warn"`
		StallTimeoutMs      *int   `yaml:"stall_timeout_ms"`
	} `yaml:"session"`
	Output struct {
		CSVPath       *string `yaml:"csv_path"`
		SQLitePath    string  `yaml:"sqlite_path"`
		MySQLDSN      string  `yaml:"mysql_dsn"`
		RedisAddr     string  `yaml:"redis_addr"`
		RedisKey      string  `yaml:"redis_key"`
		SnapshotDir   string  `yaml:"snapshot_dir"`
		SnapshotEvery int     `yaml:"snapshot_every"`
	} `yaml:"output"`
	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
}

// LoadFromYAML loads configuration from a YAML file. Absent keys keep their defaults.
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config := NewDefaultConfig()

	targets := map[string]*ColorRange{
		"platform":  &config.Colors.Platform,
		"coin":      &config.Colors.Coin,
		"player":    &config.Colors.Player,
		"playagain": &config.Colors.PlayAgain,
		"shop":      &config.Colors.Shop,
	}
	for name, yr := range raw.Colors {
		dst, ok := targets[name]
		if !ok {
			return nil, fmt.Errorf("unknown colour class %q", name)
		}
		r, err := rangeFromInts(name, yr.Min, yr.Max)
		if err != nil {
			return nil, err
		}
		*dst = r
	}

	setInt(&config.Grid.Columns, raw.Grid.Columns)
	setInt(&config.Grid.Rows, raw.Grid.Rows)
	setInt(&config.Grid.BaseWidth, raw.Grid.BaseWidth)
	setInt(&config.Grid.BaseHeight, raw.Grid.BaseHeight)
	setInt(&config.Grid.Bands, raw.Grid.Bands)
	setFloat(&config.Grid.NearOffset, raw.Grid.NearOffset)
	setFloat(&config.Grid.FarOffset, raw.Grid.FarOffset)
	setFloat(&config.Grid.OccupancyRatio, raw.Grid.OccupancyRatio)

	if raw.Capture.Backend != "" {
		config.Capture.Backend = CaptureBackend(raw.Capture.Backend)
	}
	config.Capture.FrameInterval = time.Duration(raw.Capture.FrameIntervalMs) * time.Millisecond

	if raw.Session.WaitForStartClick != nil {
		config.Session.WaitForStartClick = *raw.Session.WaitForStartClick
	}
	if raw.Session.RecordWithoutPlayer != nil {
		config.Session.RecordWithoutPlayer = *raw.Session.RecordWithoutPlayer
	}
	if raw.Session.StopKey != "" {
		config.Session.StopKey = raw.Session.StopKey
	}
	setInt(&config.Session.PlayerMissingWarn, raw.Session.PlayerMissingWarn)
	if raw.Session.StallTimeoutMs != nil {
		config.Session.StallTimeout = time.Duration(*raw.Session.StallTimeoutMs) * time.Millisecond
	}

	if raw.Output.CSVPath != nil {
		config.Output.CSVPath = *raw.Output.CSVPath
	}
	config.Output.SQLitePath = raw.Output.SQLitePath
	config.Output.MySQLDSN = raw.Output.MySQLDSN
	config.Output.RedisAddr = raw.Output.RedisAddr
	if raw.Output.RedisKey != "" {
		config.Output.RedisKey = raw.Output.RedisKey
	}
	config.Output.SnapshotDir = raw.Output.SnapshotDir
	config.Output.SnapshotEvery = raw.Output.SnapshotEvery

	if raw.Logging.Level != "" {
		config.Logging.Level = raw.Logging.Level
	}
	if raw.Logging.Dir != "" {
		config.Logging.Dir = raw.Logging.Dir
	}
	config.Logging.JSON = raw.Logging.JSON

	return config, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
