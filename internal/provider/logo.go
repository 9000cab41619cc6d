package provider

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// materializeLogo writes an embedded logo into the logo directory if it is
// not already there, returning its path. Failures are logged and reported
// as "no logo"; a missing icon never blocks a fetch.
func materializeLogo(logoDir, id string, data []byte) string {
	if len(data) == 0 || logoDir == "" {
		return ""
	}
	path := filepath.Join(logoDir, id+".png")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if err := os.MkdirAll(logoDir, 0755); err != nil {
		log.Warn().Err(err).Str("provider", id).Msg("failed to create logo directory")
		return ""
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn().Err(err).Str("provider", id).Msg("failed to write logo")
		return ""
	}
	return path
}
