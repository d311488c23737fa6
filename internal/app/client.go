package app

import (
	intrnl "bookchat/internal"
)

// RunClient launches the Bubble Tea TUI with the provided configuration.
func RunClient(cfg ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		derived, err := DeriveAPIBaseURL(cfg.ServerURL)
		if err != nil {
			return err
		}
		apiBase = derived
	}
	return intrnl.RunClient(intrnl.Config{
		ServerURL:  cfg.ServerURL,
		APIBaseURL: apiBase,
		Token:      cfg.Token,
		UserID:     cfg.UserID,
		DebugAddr:  cfg.DebugAddr,
	})
}
