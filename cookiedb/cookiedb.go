// Package cookiedb classifies cookies by name into ICC cookie categories.
//
// A Database is loaded once from a reference dataset and is read-only
// afterwards, so it can be shared between sessions without locking.
package cookiedb

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Class is an ICC cookie category.
type Class string

const (
	StrictlyNecessary Class = "Strictly Necessary"
	Performance       Class = "Performance"
	Functionality     Class = "Functionality"
	Targeting         Class = "Targeting"
	Unclassified      Class = "Unclassified"
)

// ParseClass maps a category name to a Class.
func ParseClass(name string) (Class, error) {
	switch c := Class(strings.TrimSpace(name)); c {
	case StrictlyNecessary, Performance, Functionality, Targeting, Unclassified:
		return c, nil
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "strictly-necessary", "necessary":
		return StrictlyNecessary, nil
	case "performance":
		return Performance, nil
	case "functionality":
		return Functionality, nil
	case "targeting":
		return Targeting, nil
	case "unclassified":
		return Unclassified, nil
	}
	return "", fmt.Errorf("cookiedb: unknown cookie class %q", name)
}

// Database maps cookie names to classes.
type Database struct {
	classes map[string]Class
}

// New wraps an existing name → class mapping.
func New(classes map[string]Class) *Database {
	m := make(map[string]Class, len(classes))
	for k, v := range classes {
		m[k] = v
	}
	return &Database{classes: m}
}

// Class returns the class of the named cookie. Unknown cookies are
// Unclassified; no distinction is made between "not in the dataset" and
// "in the dataset without a category".
func (db *Database) Class(name string) Class {
	if db == nil {
		return Unclassified
	}
	if c, ok := db.classes[name]; ok {
		return c
	}
	return Unclassified
}

// Len returns the number of known cookie names.
func (db *Database) Len() int { return len(db.classes) }

// cookieScriptEntry is one line of a Cookie-Script export.
type cookieScriptEntry struct {
	Cookies []struct {
		Key   string `json:"cookieKey"`
		Class string `json:"class"`
	} `json:"cookies"`
}

// LoadCookieScript reads a Cookie-Script export: one JSON object per line,
// each with a "cookies" array of {cookieKey, class}.
func LoadCookieScript(r io.Reader) (*Database, error) {
	classes := make(map[string]Class)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var entry cookieScriptEntry
		if err := json.Unmarshal([]byte(text), &entry); err != nil {
			return nil, fmt.Errorf("cookiedb: cookie-script line %d: %w", line, err)
		}
		for _, c := range entry.Cookies {
			class, err := ParseClass(c.Class)
			if err != nil {
				return nil, fmt.Errorf("cookiedb: cookie-script line %d: %w", line, err)
			}
			classes[c.Key] = class
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cookiedb: read cookie-script: %w", err)
	}
	return &Database{classes: classes}, nil
}

// openCookieDatabaseClasses maps Open Cookie Database categories to ICC
// classes.
var openCookieDatabaseClasses = map[string]Class{
	"Functional":  StrictlyNecessary,
	"Preferences": Functionality,
	"Analytics":   Performance,
	"Marketing":   Targeting,
}

// LoadOpenCookieDatabase reads the Open Cookie Database CSV. The header row
// is skipped; column 2 holds the category and column 3 the cookie name.
func LoadOpenCookieDatabase(r io.Reader) (*Database, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return &Database{classes: map[string]Class{}}, nil
		}
		return nil, fmt.Errorf("cookiedb: read header: %w", err)
	}

	classes := make(map[string]Class)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cookiedb: read open cookie database: %w", err)
		}
		if len(row) < 4 {
			continue
		}
		class, ok := openCookieDatabaseClasses[row[2]]
		if !ok {
			return nil, fmt.Errorf("cookiedb: unknown open cookie database category %q", row[2])
		}
		classes[row[3]] = class
	}
	return &Database{classes: classes}, nil
}

// LoadFile picks a loader by extension: .csv for the Open Cookie Database,
// anything else for Cookie-Script JSON lines.
func LoadFile(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cookiedb: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return LoadOpenCookieDatabase(f)
	}
	return LoadCookieScript(f)
}
