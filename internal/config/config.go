// Copyright 2024 The Arcanist Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads project and user configuration.
//
// Project configuration lives in an .arcconfig file (JSON) found by walking
// up from the working directory. User configuration lives in ~/.arcrc and
// holds per-host API credentials.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the merged view of project and user configuration.
// Missing files yield zero values; unreadable or malformed files are errors.
type Config struct {
	Root string // directory containing .arcconfig, empty if none found

	project map[string]any
	user    userConfig
}

type userConfig struct {
	Hosts map[string]hostEntry `json:"hosts"`
}

type hostEntry struct {
	Token string `json:"token"`
}

// Load reads the configuration visible from dir.
func Load(dir string) (*Config, error) {
	cfg := &Config{project: make(map[string]any)}

	root, data, err := findArcconfig(dir)
	if err != nil {
		return nil, err
	}
	if data != nil {
		m, err := parseArcconfig(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", filepath.Join(root, ".arcconfig"), err)
		}
		cfg.Root = root
		cfg.project = m
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}
	path := filepath.Join(home, ".arcrc")
	data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &cfg.user); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return cfg, nil
}

// findArcconfig walks up from dir looking for an .arcconfig file.
// No file found is ("", nil, nil).
func findArcconfig(dir string) (string, []byte, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	for {
		path := filepath.Join(dir, ".arcconfig")
		data, err := os.ReadFile(path)
		if err == nil {
			return dir, data, nil
		}
		if !os.IsNotExist(err) {
			return "", nil, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}

func parseArcconfig(data []byte) (map[string]any, error) {
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed .arcconfig: %v", err)
	}
	return m, nil
}

// ConduitURI returns the configured API endpoint, preferring the modern
// "phabricator.uri" key over the legacy "conduit_uri".
func (c *Config) ConduitURI() string {
	if s := c.str("phabricator.uri"); s != "" {
		return s
	}
	return c.str("conduit_uri")
}

// Callsign returns the configured repository callsign, if any.
func (c *Config) Callsign() string {
	return c.str("repository.callsign")
}

// Get returns the string value of an arbitrary project key,
// such as "arc.push.from.default".
func (c *Config) Get(key string) string {
	return c.str(key)
}

func (c *Config) str(key string) string {
	v, _ := c.project[key].(string)
	return v
}

// Token returns the API token recorded for uri in ~/.arcrc.
// Host entries are keyed by the normalized "<uri>/api/" form, but exact
// matches are honored too.
func (c *Config) Token(uri string) string {
	if h, ok := c.user.Hosts[NormalizeURI(uri)]; ok {
		return h.Token
	}
	if h, ok := c.user.Hosts[uri]; ok {
		return h.Token
	}
	return ""
}

// NormalizeURI converts an install URI to the "<uri>/api/" form that keys
// host entries in ~/.arcrc.
func NormalizeURI(uri string) string {
	uri = strings.TrimRight(uri, "/")
	if !strings.HasSuffix(uri, "/api") {
		uri += "/api"
	}
	return uri + "/"
}
