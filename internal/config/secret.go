package config

import (
	"fmt"
	"os"
	"strings"
)

// Secret represents secret value of config.
//
// Plain values are used as is. Value with "env:" prefix is read from
// environment variable and value with "file:" prefix is read from file.
type Secret string

const (
	envSecretPrefix  = "env:"
	fileSecretPrefix = "file:"
)

// Secret returns resolved secret value.
func (s Secret) Secret() (string, error) {
	value := string(s)
	switch {
	case strings.HasPrefix(value, envSecretPrefix):
		name := strings.TrimPrefix(value, envSecretPrefix)
		result, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %q does not exist", name)
		}
		return result, nil
	case strings.HasPrefix(value, fileSecretPrefix):
		bytes, err := os.ReadFile(strings.TrimPrefix(value, fileSecretPrefix))
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(bytes), "\r\n"), nil
	default:
		return value, nil
	}
}
