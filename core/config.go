package core

import (
	"fmt"
	"strings"
)

// InteractionRequiredConfig is the classification allow-list for server
// errors that demand a fresh interactive sign-in instead of a silent retry.
// The defaults track the directory's published codes; deployments can extend
// them through configuration.
type InteractionRequiredConfig struct {
	ErrorCodes    []string `koanf:"error_codes" mapstructure:"error_codes"`
	SubErrorCodes []string `koanf:"suberror_codes" mapstructure:"suberror_codes"`
}

type Config struct {
	ClientID            string                    `koanf:"client_id" mapstructure:"client_id"`
	InteractionRequired InteractionRequiredConfig `koanf:"interaction_required" mapstructure:"interaction_required"`
}

func DefaultConfig() Config {
	return Config{
		InteractionRequired: InteractionRequiredConfig{
			ErrorCodes: []string{
				"interaction_required",
				"consent_required",
				"login_required",
			},
			SubErrorCodes: []string{
				"message_only",
				"additional_action",
				"basic_action",
				"user_password_expired",
				"consent_required",
				"bad_token",
			},
		},
	}
}

func (c *Config) Validate() error {
	if c == nil || strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("core: client_id is required")
	}
	return nil
}

// RequiresInteraction is the fixed classification predicate over the
// configured allow-lists.
func (c InteractionRequiredConfig) RequiresInteraction(errCode, subError string) bool {
	return containsFold(c.ErrorCodes, errCode) || containsFold(c.SubErrorCodes, subError)
}

func containsFold(values []string, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), candidate) {
			return true
		}
	}
	return false
}
