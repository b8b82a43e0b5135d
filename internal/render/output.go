package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
)

var separators = strings.NewReplacer("/", "-", "\\", "-")

// RangeDir names the run directory after the active date range,
// e.g. "2024.01.01_2024.01.31".
func RangeDir(from, to civil.Date) string {
	return dotted(from) + "_" + dotted(to)
}

func dotted(d civil.Date) string {
	return fmt.Sprintf("%04d.%02d.%02d", d.Year, int(d.Month), d.Day)
}

// SafeName makes an ad group or keyword usable as a single path element.
func SafeName(name string) string {
	name = separators.Replace(name)
	switch name {
	case "", ".", "..":
		return strings.Repeat("-", len(name)+1)
	}
	return name
}

// OutputPath returns <root>/<from>_<to>/<ad group>/<keyword>.<ext>.
func OutputPath(root string, from, to civil.Date, adGroup, keyword string, f Format) string {
	return filepath.Join(root, RangeDir(from, to), SafeName(adGroup), SafeName(keyword)+"."+f.Ext())
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("WriteFile: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("WriteFile: %s: %w", path, err)
	}
	return nil
}
