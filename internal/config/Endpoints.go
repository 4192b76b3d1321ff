package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NodeRPC is the JSON-RPC endpoint of the custody/venue node. Both the
	// asset transfer gateway and the exchange venue adapter talk to it.
	NodeRPC string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	// Sim mode never dials the node, so the endpoint is only required for
	// live mode.
	if Mode == "live" {
		var err error
		NodeRPC, err = getEnv("NODE_RPC")
		if err != nil {
			return err
		}
	} else {
		NodeRPC = ""
	}

	log.Debug().
		Str("NodeRPC", NodeRPC).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
