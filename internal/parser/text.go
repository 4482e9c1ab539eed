package parser

import "os"

// parsePlainText reads .txt and .md files as-is.
func parsePlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
