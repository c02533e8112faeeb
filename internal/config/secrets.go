package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretsDir - каталог Docker Secrets. Переопределяется в тестах.
var SecretsDir = "/run/secrets"

// ReadSecret читает секрет из файла в каталоге Docker Secrets.
func ReadSecret(secretName string) (string, error) {
	filePath := filepath.Join(SecretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}
