package preprocess

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// IndicatorCatalog names the optional technical-indicator columns the
// preprocessor will pick up from a source file when present. Order here is
// the canonical feature order after the required columns.
type IndicatorCatalog struct {
	Indicators []string `yaml:"indicators" json:"indicators"`
}

func LoadCatalog(path string) (IndicatorCatalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}

	var catalog IndicatorCatalog
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return IndicatorCatalog{}, err
	}
	if len(catalog.Indicators) == 0 {
		return IndicatorCatalog{}, errors.New("no indicators configured")
	}
	return catalog, nil
}

func DefaultCatalog() IndicatorCatalog {
	return IndicatorCatalog{Indicators: []string{
		"SMA5",
		"SMA10",
		"SMA20",
		"SMA60",
		"MA5",
		"MA10",
		"DIF12-26",
		"MACD9",
		"K(9,3)",
		"D(9,3)",
	}}
}
