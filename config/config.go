// Package config holds the immutable run configuration shared by every
// stage of the pipeline, and the viper-backed loader for it.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/csenn/space-trace-collisions/jd"
)

// Config is built once and passed by value (or pointer to an immutable
// instance) through every stage — no package keeps its own mutable copy.
type Config struct {
	HorizonMinutes         float64
	IntervalMinutes        float64
	CollisionDistanceKm    float64
	BoxSizeKm              float64
	StartTime              jd.Time
	RefineWindowSeconds    float64
	RefineToleranceSeconds float64
	TopK                   int
}

// Default returns the standard configuration defaults.
func Default(start jd.Time) Config {
	return Config{
		HorizonMinutes:         1440,
		IntervalMinutes:        4,
		CollisionDistanceKm:    100,
		BoxSizeKm:              1200,
		StartTime:              start,
		RefineWindowSeconds:    600,
		RefineToleranceSeconds: 1,
		TopK:                   100,
	}
}

// Validate enforces the configuration invariants the pipeline depends
// on: the broad-phase engine's 6-neighbor search is only complete when
// the spatial-hash cell is at least as large as the collision distance.
func (c Config) Validate() error {
	if c.BoxSizeKm < c.CollisionDistanceKm {
		return fmt.Errorf("config: box_size_km (%.3f) must be >= collision_distance_km (%.3f)", c.BoxSizeKm, c.CollisionDistanceKm)
	}
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("config: interval_minutes must be positive")
	}
	if c.HorizonMinutes < c.IntervalMinutes {
		return fmt.Errorf("config: horizon_minutes must be at least one interval")
	}
	if c.RefineWindowSeconds <= 0 {
		return fmt.Errorf("config: refine_window_seconds must be positive")
	}
	if c.RefineToleranceSeconds <= 0 {
		return fmt.Errorf("config: refine_tolerance_seconds must be positive")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("config: top_k must be positive")
	}
	return nil
}

// LoadFile reads a TOML configuration file via viper and projects it
// onto a Config, falling back to defaults for any field left unset.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	start := jd.Time{
		Whole: v.GetFloat64("start_time.whole"),
		Frac:  v.GetFloat64("start_time.fraction"),
	}
	cfg := Default(start)

	if v.IsSet("horizon_minutes") {
		cfg.HorizonMinutes = v.GetFloat64("horizon_minutes")
	}
	if v.IsSet("interval_minutes") {
		cfg.IntervalMinutes = v.GetFloat64("interval_minutes")
	}
	if v.IsSet("collision_distance_km") {
		cfg.CollisionDistanceKm = v.GetFloat64("collision_distance_km")
	}
	if v.IsSet("box_size_km") {
		cfg.BoxSizeKm = v.GetFloat64("box_size_km")
	}
	if v.IsSet("refine_window_seconds") {
		cfg.RefineWindowSeconds = v.GetFloat64("refine_window_seconds")
	}
	if v.IsSet("refine_tolerance_seconds") {
		cfg.RefineToleranceSeconds = v.GetFloat64("refine_tolerance_seconds")
	}
	if v.IsSet("top_k") {
		cfg.TopK = v.GetInt("top_k")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
