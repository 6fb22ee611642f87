// Package config provides configuration helpers for the motioncam command.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Getenv looks up an environment variable. Tests substitute a map.
type Getenv func(key string) string

// OSEnv reads the process environment.
var OSEnv Getenv = os.Getenv

// Env reads typed values from a Getenv and remembers malformed ones.
type Env struct {
	get  Getenv
	errs []error
}

// NewEnv wraps get.
func NewEnv(get Getenv) *Env {
	return &Env{get: get}
}

// String returns the value of key, or def when unset or blank.
func (e *Env) String(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

// Int returns key parsed as an integer, or def when unset.
// A malformed value also returns def and is reported by Err.
func (e *Env) Int(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q: not an integer", key, v))
		return def
	}
	return n
}

// Bool returns key parsed as a boolean ("1", "true", "yes", "on" and their
// negatives), or def when unset. A malformed value is reported by Err.
func (e *Env) Bool(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	switch strings.ToLower(v) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	e.errs = append(e.errs, fmt.Errorf("%s=%q: not a boolean", key, v))
	return def
}

// Err joins every malformed value seen so far.
func (e *Env) Err() error {
	return errors.Join(e.errs...)
}
