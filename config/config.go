// Copyright (c) 2022 The eredis Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gencer/eredis/core/pkg/logging"
)

type Config struct {
	WebPort      int          `yaml:"web_port"`
	LogPath      string       `yaml:"log_path"`
	LogLevel     string       `yaml:"log_level"`
	LogExpireDay int          `yaml:"log_expire_day"`
	Mirror       mirrorConfig `yaml:"mirror"`
}

type mirrorConfig struct {
	// Hosts lists targets as `host:port`, or a bare path for unix sockets.
	// The first entry is the primary used by readers.
	Hosts []string `yaml:"hosts"`
	// HostFile is an alternative to Hosts, one target per line.
	HostFile string `yaml:"host_file"`

	TimeoutMs   int `yaml:"timeout_ms"`
	ReaderMax   int `yaml:"reader_max"`
	ReaderRetry int `yaml:"reader_retry"`

	// PipeRate caps stdin pipe mode at this many commands per second,
	// 0 means unlimited.
	PipeRate int `yaml:"pipe_rate"`
}

func LoadConfig(fileName string) (*Config, error) {
	file, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file from %s", fileName)
	}
	var cfg Config
	if err = yaml.Unmarshal(file, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", fileName)
	}
	if err = cfg.validate(); err != nil {
		return nil, errors.Wrapf(err, "config validate failed")
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, ok := logging.LevelMapperRev[c.LogLevel]; !ok {
		return errors.Errorf("unknown log level %s", c.LogLevel)
	}
	if len(c.Mirror.Hosts) < 1 && len(c.Mirror.HostFile) < 1 {
		return errors.Errorf("no mirror hosts configured")
	}
	return nil
}
