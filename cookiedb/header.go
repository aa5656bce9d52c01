package cookiedb

import "strings"

// FilterHeader removes cookies whose class is in blocklist from a Cookie
// request header value ("k1=v1; k2=v2") and returns the rebuilt header.
// Cookie order is preserved. Pairs without '=' are kept verbatim.
func (db *Database) FilterHeader(header string, blocklist ...Class) string {
	if header == "" || len(blocklist) == 0 {
		return header
	}
	blocked := make(map[Class]struct{}, len(blocklist))
	for _, c := range blocklist {
		blocked[c] = struct{}{}
	}

	parts := strings.Split(header, ";")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		pair := strings.TrimSpace(part)
		if pair == "" {
			continue
		}
		name, _, _ := strings.Cut(pair, "=")
		if _, drop := blocked[db.Class(name)]; drop {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "; ")
}

// ParseBlocklist parses a comma-separated list of class names.
func ParseBlocklist(s string) ([]Class, error) {
	var out []Class
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		c, err := ParseClass(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
