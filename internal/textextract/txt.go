package textextract

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// extractTXT accepts UTF-8 and falls back to Windows-1251, which is what
// legacy Russian screenplays are usually saved in.
func extractTXT(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode windows-1251: %w", err)
	}
	return string(decoded), nil
}
