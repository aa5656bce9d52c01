package scraper

import (
	"fmt"
	"strings"

	"github.com/use-agent/cookiediff/cookiedb"
	"github.com/use-agent/cookiediff/siteurl"
)

// TreatmentKind selects which cookies the experimental session withholds.
type TreatmentKind string

const (
	TreatNone       TreatmentKind = "none"
	TreatThirdParty TreatmentKind = "third-party"
	TreatAll        TreatmentKind = "all"
	TreatClass      TreatmentKind = "class"
)

// Treatment is the cookie restriction applied to a session's requests.
type Treatment struct {
	Kind      TreatmentKind
	Blocklist []cookiedb.Class
}

// NoTreatment leaves every request untouched.
var NoTreatment = Treatment{Kind: TreatNone}

// ParseTreatment parses "none", "third-party", "all" or
// "class:<Class>,<Class>".
func ParseTreatment(s string) (Treatment, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, string(TreatClass)+":"); ok {
		list, err := cookiedb.ParseBlocklist(rest)
		if err != nil {
			return Treatment{}, err
		}
		if len(list) == 0 {
			return Treatment{}, fmt.Errorf("scraper: treatment %q names no cookie class", s)
		}
		return Treatment{Kind: TreatClass, Blocklist: list}, nil
	}
	switch k := TreatmentKind(s); k {
	case "", TreatNone:
		return NoTreatment, nil
	case TreatThirdParty, TreatAll:
		return Treatment{Kind: k}, nil
	}
	return Treatment{}, fmt.Errorf("scraper: unknown treatment %q", s)
}

func (t Treatment) String() string {
	if t.Kind != TreatClass {
		return string(t.Kind)
	}
	names := make([]string, len(t.Blocklist))
	for i, c := range t.Blocklist {
		names[i] = string(c)
	}
	return string(TreatClass) + ":" + strings.Join(names, ",")
}

// Active reports whether the treatment intercepts requests at all.
func (t Treatment) Active() bool {
	return t.Kind != "" && t.Kind != TreatNone
}

type cookieAction int

const (
	keepCookies cookieAction = iota
	dropCookies
	filterCookies
)

// actionFor decides what happens to the cookies of a request to requestURL
// made while crawling siteURL.
func (t Treatment) actionFor(siteURL, requestURL string) cookieAction {
	switch t.Kind {
	case TreatAll:
		return dropCookies
	case TreatThirdParty:
		if siteurl.SameSite(siteURL, requestURL) {
			return keepCookies
		}
		return dropCookies
	case TreatClass:
		return filterCookies
	default:
		return keepCookies
	}
}
