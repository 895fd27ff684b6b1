package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AliasFile is the name of the alias file inside the config directory.
const AliasFile = "aliases"

// Aliases maps item labels as they appear in input files to the label they
// are counted under, so "usb cable" and "cable" can be mined as one item.
type Aliases map[string]string

// LoadAliases reads {dir}/aliases. A missing file yields an empty map.
func LoadAliases(dir string) (Aliases, error) {
	path := filepath.Join(dir, AliasFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Aliases{}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	aliases, err := ParseAliases(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return aliases, nil
}

// ParseAliases reads "label=canonical" lines. Blank lines and # comments
// are ignored, as are lines without a label on both sides of the first "=".
// A later line for the same label wins.
func ParseAliases(r io.Reader) (Aliases, error) {
	aliases := Aliases{}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		label, canonical, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		label, canonical = strings.TrimSpace(label), strings.TrimSpace(canonical)
		if label == "" || canonical == "" || label == canonical {
			continue
		}
		aliases[label] = canonical
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return aliases.flatten(), nil
}

// flatten follows alias chains (a=b, b=c gives a=c). Labels caught in a
// cycle keep their first hop.
func (a Aliases) flatten() Aliases {
	out := make(Aliases, len(a))
	for label, next := range a {
		seen := map[string]bool{label: true}
		target := next
		for {
			hop, ok := a[target]
			if !ok || seen[hop] {
				break
			}
			seen[target] = true
			target = hop
		}
		out[label] = target
	}
	return out
}
