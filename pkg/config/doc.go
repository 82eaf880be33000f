// Package config loads typed configuration structs from the process
// environment.
//
// Values are parsed with github.com/caarlos0/env/v11 using `env` struct tags.
// A `.env` file in the working directory is read once through
// github.com/joho/godotenv before the first parse; variables already present
// in the environment win over the file.
//
// Each configuration type is parsed at most once per process and served from
// an in-memory cache afterwards:
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// MustLoad panics on failure and is meant for program startup. Reset drops the
// cache and is meant for tests that change the environment between loads.
package config
