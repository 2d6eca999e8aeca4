package config

import "github.com/smazurov/marvin/internal/logging"

// Live is the part of the configuration applied without a restart.
type Live struct {
	Dispatch Dispatch
	Logging  logging.Config
}

// LoadLive loads the reloadable settings from path. It fails only when the
// [dispatch] table is unusable; logging falls back to its defaults.
func LoadLive(path string) (Live, error) {
	d, err := LoadDispatch(path)
	if err != nil {
		return Live{}, err
	}
	return Live{Dispatch: d, Logging: LoadLoggingConfig(path)}, nil
}
