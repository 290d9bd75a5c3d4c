package config

import (
	"fmt"
	"path/filepath"
)

type Config struct {
	DataDir      string
	DBPath       string
	RoutinesPath string
	TuningPath   string
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, ".arrivalwatch", "arrivalwatch.db"),
		RoutinesPath: filepath.Join(dataDir, "routines.yaml"),
		TuningPath:   filepath.Join(dataDir, "config.yaml"),
	}, nil
}
