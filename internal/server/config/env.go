package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// loadDotEnv is a seam so tests do not pick up a developer's .env file.
var loadDotEnv = func() error { return godotenv.Load() }

// parseEnv overlays CREDKEEPER_* environment variables onto config. A .env
// file in the working directory is loaded first when present; variables
// already set in the process environment win over it. Unset variables leave
// the current values untouched.
//
// A malformed value (for example a non-numeric CREDKEEPER_BCRYPT_COST)
// panics, like malformed JSON or flags do.
func parseEnv(config *Config) {
	_ = loadDotEnv()

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
