// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Recognized key files: tavily-api-key, openai-api-key, gemini-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Key file names.
const (
	TavilyAPIKey = "tavily-api-key"
	OpenAIAPIKey = "openai-api-key"
	GeminiAPIKey = "gemini-api-key"
)

// envNames maps each recognized key file to the environment variable the
// research agent reads.
var envNames = map[string]string{
	TavilyAPIKey: "TAVILY_API_KEY",
	OpenAIAPIKey: "OPENAI_API_KEY",
	GeminiAPIKey: "GEMINI_API_KEY",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, log *zap.Logger) (map[string]string, error) {
	if log == nil {
		log = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// ExportEnv sets the environment variable for every recognized secret whose
// variable is not already set, so values from the environment win over files.
// It returns the names of the variables it set, sorted.
func ExportEnv(secrets map[string]string) ([]string, error) {
	var set []string
	for file, env := range envNames {
		v, ok := secrets[file]
		if !ok {
			continue
		}
		if _, present := os.LookupEnv(env); present {
			continue
		}
		if err := os.Setenv(env, v); err != nil {
			return set, fmt.Errorf("setting %s: %w", env, err)
		}
		set = append(set, env)
	}
	sort.Strings(set)
	return set, nil
}
