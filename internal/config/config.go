// MIT License
//
// Copyright (c) 2021 The gcs-uploader Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config loads and validates the gateway configuration file.
// The format is dispatched on the file extension: yml/yaml or json.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Settings Settings  `yaml:"settings" json:"settings"`
		Projects []Project `yaml:"projects" json:"projects"`
	}

	Settings struct {
		Port uint16 `yaml:"port" json:"port"`
	}

	Project struct {
		APIToken            string        `yaml:"api_token" json:"api_token"`
		GoogleStorageTarget GoogleStorage `yaml:"google_storage_target" json:"google_storage_target"`
		SlackLinkDub        *Slack        `yaml:"slack_link_dub,omitempty" json:"slack_link_dub,omitempty"`
	}

	GoogleStorage struct {
		CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
		BucketName      string `yaml:"bucket_name" json:"bucket_name"`
	}

	Slack struct {
		Token             string   `yaml:"token" json:"token"`
		Targets           []string `yaml:"targets" json:"targets"`
		QRCode            bool     `yaml:"qr_code" json:"qr_code"`
		DefaultTextBefore string   `yaml:"default_text_before,omitempty" json:"default_text_before,omitempty"`
	}
)

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(b, &config); err != nil {
			return nil, fmt.Errorf("error parsing yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &config); err != nil {
			return nil, fmt.Errorf("error parsing json config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q, only yml/yaml/json are supported", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if len(c.Projects) == 0 {
		return fmt.Errorf("empty projects list")
	}

	seenTokens := make(map[string]int, len(c.Projects))
	for i, proj := range c.Projects {
		if proj.APIToken == "" {
			return fmt.Errorf("project %d: empty api token", i)
		}
		if prev, ok := seenTokens[proj.APIToken]; ok {
			return fmt.Errorf("project %d: api token duplicates project %d", i, prev)
		}
		seenTokens[proj.APIToken] = i

		if proj.GoogleStorageTarget.BucketName == "" {
			return fmt.Errorf("project %d: empty google storage bucket", i)
		}
		fi, err := os.Stat(proj.GoogleStorageTarget.CredentialsFile)
		if err != nil {
			return fmt.Errorf("project %d: google storage credentials file: %w", i, err)
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("project %d: google storage credentials path is not a regular file", i)
		}

		if slack := proj.SlackLinkDub; slack != nil {
			if slack.Token == "" {
				return fmt.Errorf("project %d: empty slack token", i)
			}
			if len(slack.Targets) == 0 {
				return fmt.Errorf("project %d: empty slack targets", i)
			}
		}
	}

	return nil
}
