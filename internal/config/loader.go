package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Load reads a config file, picking the format from its extension
func Load(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini":
		cfg, err = LoadFromINI(path)
	case ".yaml", ".yml":
		cfg, err = LoadFromYAML(path)
	case ".json":
		cfg, err = LoadSettingsJSON(path)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromINI loads configuration from an INI file
func LoadFromINI(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := NewDefaultConfig()

	// Colour thresholds
	colors := file.Section("Colors")
	targets := []struct {
		key string
		dst *ColorRange
	}{
		{"platform", &config.Colors.Platform},
		{"coin", &config.Colors.Coin},
		{"player", &config.Colors.Player},
		{"playagain", &config.Colors.PlayAgain},
		{"shop", &config.Colors.Shop},
	}
	for _, t := range targets {
		minKey, maxKey := t.key+"MinRGB", t.key+"MaxRGB"
		if !colors.HasKey(minKey) && !colors.HasKey(maxKey) {
			continue
		}
		r, err := rangeFromInts(t.key, colors.Key(minKey).Ints(","), colors.Key(maxKey).Ints(","))
		if err != nil {
			return nil, err
		}
		*t.dst = r
	}

	// Grid
	grid := file.Section("Grid")
	config.Grid.Columns = grid.Key("scaledx").MustInt(config.Grid.Columns)
	config.Grid.Rows = grid.Key("scaledy").MustInt(config.Grid.Rows)
	config.Grid.BaseWidth = grid.Key("baseWidth").MustInt(config.Grid.BaseWidth)
	config.Grid.BaseHeight = grid.Key("baseHeight").MustInt(config.Grid.BaseHeight)
	config.Grid.Bands = grid.Key("bands").MustInt(config.Grid.Bands)
	config.Grid.NearOffset = grid.Key("nearOffset").MustFloat64(config.Grid.NearOffset)
	config.Grid.FarOffset = grid.Key("farOffset").MustFloat64(config.Grid.FarOffset)
	config.Grid.OccupancyRatio = grid.Key("occupancyRatio").MustFloat64(config.Grid.OccupancyRatio)

	// Capture
	capture := file.Section("Capture")
	config.Capture.Backend = CaptureBackend(capture.Key("backend").MustString(string(config.Capture.Backend)))
	config.Capture.FrameInterval = time.Duration(capture.Key("frameIntervalMs").MustInt(0)) * time.Millisecond

	// Session
	session := file.Section("Session")
	config.Session.WaitForStartClick = session.Key("waitForStartClick").MustBool(config.Session.WaitForStartClick)
	config.Session.RecordWithoutPlayer = session.Key("recordWithoutPlayer").MustBool(config.Session.RecordWithoutPlayer)
	config.Session.StopKey = session.Key("stopKey").MustString(config.Session.StopKey)
	config.Session.PlayerMissingWarn = session.Key("playerMissingWarn").MustInt(config.Session.PlayerMissingWarn)
	config.Session.StallTimeout = time.Duration(session.Key("stallTimeoutMs").MustInt(int(config.Session.StallTimeout/time.Millisecond))) * time.Millisecond

	// Output
	output := file.Section("Output")
	config.Output.CSVPath = output.Key("csvPath").MustString(config.Output.CSVPath)
	config.Output.SQLitePath = output.Key("sqlitePath").MustString("")
	config.Output.MySQLDSN = output.Key("mysqlDSN").MustString("")
	config.Output.RedisAddr = output.Key("redisAddr").MustString("")
	config.Output.RedisKey = output.Key("redisKey").MustString(config.Output.RedisKey)
	config.Output.SnapshotDir = output.Key("snapshotDir").MustString("")
	config.Output.SnapshotEvery = output.Key("snapshotEvery").MustInt(0)

	// Logging
	logging := file.Section("Logging")
	config.Logging.Level = logging.Key("level").MustString(config.Logging.Level)
	config.Logging.Dir = logging.Key("dir").MustString(config.Logging.Dir)
	config.Logging.JSON = logging.Key("json").MustBool(false)

	return config, nil
}

// SaveToINI saves configuration to an INI file
func SaveToINI(config *Config, path string) error {
	file := ini.Empty()

	colors := file.Section("Colors")
	for _, c := range []struct {
		key string
		r   ColorRange
	}{
		{"platform", config.Colors.Platform},
		{"coin", config.Colors.Coin},
		{"player", config.Colors.Player},
		{"playagain", config.Colors.PlayAgain},
		{"shop", config.Colors.Shop},
	} {
		lower, upper := rangeToInts(c.r)
		colors.Key(c.key + "MinRGB").SetValue(joinInts(lower))
		colors.Key(c.key + "MaxRGB").SetValue(joinInts(upper))
	}

	grid := file.Section("Grid")
	grid.Key("scaledx").SetValue(fmt.Sprintf("%d", config.Grid.Columns))
	grid.Key("scaledy").SetValue(fmt.Sprintf("%d", config.Grid.Rows))
	grid.Key("baseWidth").SetValue(fmt.Sprintf("%d", config.Grid.BaseWidth))
	grid.Key("baseHeight").SetValue(fmt.Sprintf("%d", config.Grid.BaseHeight))
	grid.Key("bands").SetValue(fmt.Sprintf("%d", config.Grid.Bands))
	grid.Key("nearOffset").SetValue(fmt.Sprintf("%g", config.Grid.NearOffset))
	grid.Key("farOffset").SetValue(fmt.Sprintf("%g", config.Grid.FarOffset))
	grid.Key("occupancyRatio").SetValue(fmt.Sprintf("%g", config.Grid.OccupancyRatio))

	capture := file.Section("Capture")
	capture.Key("backend").SetValue(string(config.Capture.Backend))
	capture.Key("frameIntervalMs").SetValue(fmt.Sprintf("%d", config.Capture.FrameInterval/time.Millisecond))

	session := file.Section("Session")
	session.Key("waitForStartClick").SetValue(fmt.Sprintf("%t", config.Session.WaitForStartClick))
	session.Key("recordWithoutPlayer").SetValue(fmt.Sprintf("%t", config.Session.RecordWithoutPlayer))
	session.Key("stopKey").SetValue(config.Session.StopKey)
	session.Key("playerMissingWarn").SetValue(fmt.Sprintf("%d", config.Session.PlayerMissingWarn))
	session.Key("stallTimeoutMs").SetValue(fmt.Sprintf("%d", config.Session.StallTimeout/time.Millisecond))

	output := file.Section("Output")
	output.Key("csvPath").SetValue(config.Output.CSVPath)
	output.Key("sqlitePath").SetValue(config.Output.SQLitePath)
	output.Key("mysqlDSN").SetValue(config.Output.MySQLDSN)
	output.Key("redisAddr").SetValue(config.Output.RedisAddr)
	output.Key("redisKey").SetValue(config.Output.RedisKey)
	output.Key("snapshotDir").SetValue(config.Output.SnapshotDir)
	output.Key("snapshotEvery").SetValue(fmt.Sprintf("%d", config.Output.SnapshotEvery))

	logging := file.Section("Logging")
	logging.Key("level").SetValue(config.Logging.Level)
	logging.Key("dir").SetValue(config.Logging.Dir)
	logging.Key("json").SetValue(fmt.Sprintf("%t", config.Logging.JSON))

	return file.SaveTo(path)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}
