package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadFile reads a JSON array of cards from path.
func LoadFile(path string) ([]Card, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	cards, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cards, nil
}

// Load decodes a JSON array of cards.
func Load(r io.Reader) ([]Card, error) {
	var cards []Card
	if err := json.NewDecoder(r).Decode(&cards); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return cards, nil
}
