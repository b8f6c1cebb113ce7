// Package config loads and saves the hydroprep configuration file, a TOML
// document that tunes service endpoints, HTTP behaviour, and tiling.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultFileName is the config file looked up under the user config dir.
const DefaultFileName = "hydroprep.toml"

// Config is the full configuration document.
type Config struct {
	Endpoints Endpoints `toml:"endpoints"`
	HTTP      HTTP      `toml:"http"`
	Tiling    Tiling    `toml:"tiling"`
	Workers   int       `toml:"workers"`
}

// Endpoints holds the remote service URLs.
type Endpoints struct {
	WFS        string `toml:"wfs"`
	SDA        string `toml:"sda"`
	WCS        string `toml:"wcs"`
	CoverageID string `toml:"coverage_id"`
}

// HTTP tunes request behaviour shared by all connectors.
type HTTP struct {
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	Attempts          uint    `toml:"attempts"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Tiling controls how query extents are split into service-sized tiles.
type Tiling struct {
	SoilsTileDegrees      float64 `toml:"soils_tile_degrees"`
	SoilsMarginDegrees    float64 `toml:"soils_margin_degrees"`
	LandCoverTileMeters   float64 `toml:"landcover_tile_meters"`
	LandCoverMarginMeters float64 `toml:"landcover_margin_meters"`
	SplitThresholdSqDeg   float64 `toml:"split_threshold_sqdeg"`
}

// Default returns the configuration used when no file exists. Zero-valued
// endpoint fields mean "use the connector's built-in default".
func Default() Config {
	return Config{
		HTTP: HTTP{
			TimeoutSeconds:    120,
			Attempts:          3,
			RequestsPerSecond: 2.0,
		},
		Tiling: Tiling{
			SoilsTileDegrees:      0.25,
			SoilsMarginDegrees:    0.0015,
			LandCoverTileMeters:   100000,
			LandCoverMarginMeters: 120,
			SplitThresholdSqDeg:   9.0,
		},
		Workers: 0, // 0 means derive from CPU count
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "hydroprep", DefaultFileName), nil
}

// Load reads the config file at path, or the per-user location when path
// is empty. A missing file is not an error; defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config file with owner-only permissions, creating parent
// directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
