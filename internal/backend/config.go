package backend

import (
	"fmt"

	"nbbang/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.Backend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.Backend)
	}

	return Config{
		Type:     backendType,
		BaseURL:  appConfig.APIBaseURL,
		Token:    appConfig.APIToken,
		Timeout:  appConfig.HTTPTimeout,
		SeedFile: appConfig.SeedFile,
		UserID:   appConfig.UserID,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type %q: must be one of %v", c.Type, GetBackendTypes())
	}
	if c.Type == RESTBackend && c.BaseURL == "" {
		return fmt.Errorf("base URL is required for rest backend")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{RESTBackend, MemoryBackend}
}
