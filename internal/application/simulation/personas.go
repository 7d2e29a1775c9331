package simulation

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/trafficsim/backend/internal/domain/traffic"
)

// personasFile is the on-disk persona catalog format
type personasFile struct {
	Personas []PersonaDTO `yaml:"personas"`
}

// LoadPersonasFile reads a persona catalog from a YAML file
func LoadPersonasFile(path string) ([]traffic.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading personas file: %w", err)
	}
	var file personasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing personas file %s: %w", path, err)
	}
	if len(file.Personas) == 0 {
		return nil, fmt.Errorf("personas file %s defines no personas", path)
	}
	personas := make([]traffic.Persona, len(file.Personas))
	for i, dto := range file.Personas {
		personas[i] = toDomainPersona(dto)
	}
	return personas, nil
}

// loadProxyFile reads one proxy URL per line, skipping blanks and comments.
// A missing file yields an empty list, matching the tolerant behavior of
// the rest of the run setup.
func loadProxyFile(path string, logger *zap.Logger) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("reading proxy file failed", zap.String("path", path), zap.Error(err))
		return nil
	}
	var proxies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	return proxies
}
