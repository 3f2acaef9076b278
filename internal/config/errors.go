package config

import "errors"

var (
	// ErrSetupRequired means a provider or API key is missing. The CLI
	// answers it by starting the setup wizard.
	ErrSetupRequired = errors.New("setup required")

	// ErrUnknownKey is returned by Config.Set for a key with no setting.
	ErrUnknownKey = errors.New("unknown config key")
)
