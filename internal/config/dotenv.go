package config

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv sets variables from the nearest .env file in the working
// directory or up to five parents. Variables already present in the
// environment win.
func LoadDotEnv(logger *slog.Logger) {
	path, err := findEnvFile()
	if err != nil {
		logger.Warn("failed to locate .env", "error", err)
		return
	}
	if path == "" {
		logger.Debug(".env not found in current or parent directories")
		return
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to open .env", "path", path, "error", err)
		return
	}
	defer file.Close()

	if err := parseEnvFile(logger, file); err != nil {
		logger.Warn("failed to load .env", "path", path, "error", err)
		return
	}
	logger.Info("loaded env file", "path", path)
}

func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

func parseEnvFile(logger *slog.Logger, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = trimQuotes(strings.TrimSpace(value))
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			logger.Warn("failed to set variable from env file", "key", key)
		}
	}
	return scanner.Err()
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if (value[0] == '"' && value[len(value)-1] == '"') ||
		(value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
