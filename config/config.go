// Package config defines the server's configuration surface and loads it
// from JSON, filling unset fields with defaults.
//
// Grounded on the teacher's settings/settings.go Default()/Fill(original)
// pattern (explicit defaults struct, customOrDefault-style zero-value
// replacement) and wired to github.com/json-iterator/go for decoding —
// the teacher's own choice of JSON library, used here for Config.Load.
package config

import (
	"os"

	jsoniter "github.com/json-iterator/go"
)

// CORS mirrors the allow-list fields the distilled spec's configuration
// object enumerates for the built-in CORS middleware.
type CORS struct {
	AllowedOrigins   []string `json:"allowedOrigins"`
	AllowedMethods   []string `json:"allowedMethods"`
	AllowedHeaders   []string `json:"allowedHeaders"`
	AllowCredentials bool     `json:"allowCredentials"`
	MaxAge           int      `json:"maxAge"`
}

// Config is the full set of options the distilled spec's §6 enumerates,
// plus the ambient LogLevel/IdleTimeoutSeconds fields this expansion adds.
type Config struct {
	Port      int  `json:"port"`
	ThreadNum int  `json:"threadNum"`
	UseSSL    bool `json:"useSSL"`

	CertificateFile      string `json:"certificateFile"`
	PrivateKeyFile       string `json:"privateKeyFile"`
	CertificateChainFile string `json:"certificateChainFile"`

	ProtocolVersion string `json:"protocolVersion"`
	CipherList      string `json:"cipherList"`

	SessionCacheSize int `json:"sessionCacheSize"`
	SessionTimeout   int `json:"sessionTimeoutSeconds"`

	CORS CORS `json:"cors"`

	// IdleTimeoutSeconds bounds how long the reactor keeps an idle
	// connection open before closing it — ambient, outside the core's
	// scope per §5's "the reactor may close idle connections externally".
	IdleTimeoutSeconds int `json:"idleTimeoutSeconds"`

	// LogLevel is one of "debug", "info", "warn", "error", "fatal".
	LogLevel string `json:"logLevel"`
}

// Default returns the configuration used when a field is left at its
// zero value.
func Default() Config {
	return Config{
		Port:               8080,
		ThreadNum:          4,
		ProtocolVersion:    "TLS1.2",
		SessionCacheSize:   256,
		SessionTimeout:     300,
		IdleTimeoutSeconds: 60,
		LogLevel:           "info",
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         3600,
		},
	}
}

// Fill takes a partially-populated Config and returns a copy with every
// zero-valued field replaced by its Default() counterpart.
func Fill(original Config) Config {
	def := Default()

	original.Port = intOrDefault(original.Port, def.Port)
	original.ThreadNum = intOrDefault(original.ThreadNum, def.ThreadNum)
	original.ProtocolVersion = stringOrDefault(original.ProtocolVersion, def.ProtocolVersion)
	original.SessionCacheSize = intOrDefault(original.SessionCacheSize, def.SessionCacheSize)
	original.SessionTimeout = intOrDefault(original.SessionTimeout, def.SessionTimeout)
	original.IdleTimeoutSeconds = intOrDefault(original.IdleTimeoutSeconds, def.IdleTimeoutSeconds)
	original.LogLevel = stringOrDefault(original.LogLevel, def.LogLevel)

	if len(original.CORS.AllowedOrigins) == 0 {
		original.CORS.AllowedOrigins = def.CORS.AllowedOrigins
	}
	if len(original.CORS.AllowedMethods) == 0 {
		original.CORS.AllowedMethods = def.CORS.AllowedMethods
	}
	if len(original.CORS.AllowedHeaders) == 0 {
		original.CORS.AllowedHeaders = def.CORS.AllowedHeaders
	}
	if original.CORS.MaxAge == 0 {
		original.CORS.MaxAge = def.CORS.MaxAge
	}

	return original
}

// Load reads and decodes a JSON configuration file from path, then fills
// in defaults via Fill.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := jsoniter.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	return Fill(cfg), nil
}

func intOrDefault(value, def int) int {
	if value == 0 {
		return def
	}

	return value
}

func stringOrDefault(value, def string) string {
	if value == "" {
		return def
	}

	return value
}
