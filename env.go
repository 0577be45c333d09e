// FILE: env.go
// Package main – Environment helpers for the engine.
//
// This file provides:
//   1) Small helpers to read environment variables with sane defaults
//      (strings, ints, floats, bools).
//   2) loadBotEnv: hydrates the process env from a .env file via godotenv
//      without overriding variables already exported.
//
// Notes:
//   • The engine never requires `export $(cat .env ...)`.
//   • API credentials stay in the env file; they are consumed by the FTX
//     client constructor, not by Config.

package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// --------- Env helpers (used across files) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// --------- .env loader ---------

// loadBotEnv reads the .env file named by BOT_ENV_FILE (default ".env").
// godotenv.Load never overrides variables already in the environment, so
// exported values keep precedence.
func loadBotEnv() {
	path := getEnv("BOT_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		log.Printf("env: %s not found, relying on process env", path)
		return
	}
	log.Printf("env: loaded %s", path)
}
