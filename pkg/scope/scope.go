// Package scope implements the scope algebra for the consent core: parsing,
// normalization, domain-isolated matching, and human-readable description of
// scope strings.
package scope

import (
	"strings"
)

// Kind classifies a parsed scope string.
type Kind int

const (
	// KindUnclassified is the zero value: a malformed or unknown scope
	// string that matches nothing and satisfies nothing.
	KindUnclassified Kind = iota
	KindMaster
	KindStatic
	KindDynamicSpecific
	KindDynamicWildcard
)

func (k Kind) String() string {
	switch k {
	case KindMaster:
		return "master"
	case KindStatic:
		return "static"
	case KindDynamicSpecific:
		return "dynamic_specific"
	case KindDynamicWildcard:
		return "dynamic_wildcard"
	default:
		return "unclassified"
	}
}

// MasterScope is the exact string that grants everything.
const MasterScope = "vault.owner"

const dynamicPrefix = "attr."

// Scope is the tagged-variant parse result of a scope string. It is never
// collapsed into an enum: Raw is preserved byte-for-byte and used for every
// downstream comparison and error message, per the codec's single most
// important correctness rule.
type Scope struct {
	Raw      string
	Kind     Kind
	Domain   string // set for KindDynamicSpecific and KindDynamicWildcard
	Key      string // set for KindDynamicSpecific only
	Wildcard bool   // true for KindDynamicWildcard
}

func isLegalIdentStart(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func isLegalIdentRune(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '_'
}

// legalSegment checks the grammar `[a-z][a-z0-9_]*`.
func legalSegment(s string) bool {
	if s == "" || !isLegalIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isLegalIdentRune(s[i]) {
			return false
		}
	}
	return true
}

// Parse classifies a scope string. The input is assumed already normalized;
// callers at an HTTP or storage boundary should call Normalize first.
func Parse(s string) Scope {
	if s == MasterScope {
		return Scope{Raw: s, Kind: KindMaster}
	}

	if strings.HasPrefix(s, dynamicPrefix) {
		rest := s[len(dynamicPrefix):]
		parts := strings.Split(rest, ".")
		if len(parts) == 2 && legalSegment(parts[0]) {
			domain, key := parts[0], parts[1]
			if key == "*" {
				return Scope{Raw: s, Kind: KindDynamicWildcard, Domain: domain, Wildcard: true}
			}
			if legalSegment(key) {
				return Scope{Raw: s, Kind: KindDynamicSpecific, Domain: domain, Key: key}
			}
		}
		return Scope{Raw: s, Kind: KindUnclassified}
	}

	// Static / operation scope: dotted identifiers from a closed external
	// set. The engine does not know the closed set; any non-empty,
	// non-dynamic, non-master string that looks like a dotted identifier
	// chain is accepted as static and matched by exact string equality.
	if s == "" {
		return Scope{Raw: s, Kind: KindUnclassified}
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return Scope{Raw: s, Kind: KindUnclassified}
		}
	}
	return Scope{Raw: s, Kind: KindStatic}
}

// Normalize performs lossless canonicalization only. It accepts the legacy
// underscore form (`attr_<domain>`) and the older `vault.read.<domain>` /
// `vault.write.<domain>` / `vault_read_<domain>` / `vault_write_<domain>`
// forms exclusively at the ingress boundary, rewriting them to the dotted
// wildcard form `attr.<domain>.*`. Unknown or malformed strings pass through
// untouched for later rejection by Parse.
func Normalize(s string) string {
	switch {
	case strings.HasPrefix(s, "attr_"):
		domain := s[len("attr_"):]
		if legalSegment(domain) {
			return dynamicPrefix + domain + ".*"
		}
	case strings.HasPrefix(s, "vault.read."):
		domain := s[len("vault.read."):]
		if legalSegment(domain) {
			return dynamicPrefix + domain + ".*"
		}
	case strings.HasPrefix(s, "vault.write."):
		domain := s[len("vault.write."):]
		if legalSegment(domain) {
			return dynamicPrefix + domain + ".*"
		}
	case strings.HasPrefix(s, "vault_read_"):
		domain := s[len("vault_read_"):]
		if legalSegment(domain) {
			return dynamicPrefix + domain + ".*"
		}
	case strings.HasPrefix(s, "vault_write_"):
		domain := s[len("vault_write_"):]
		if legalSegment(domain) {
			return dynamicPrefix + domain + ".*"
		}
	}
	return s
}

// Satisfies decides whether a granted scope permits a requested scope.
// Rules are evaluated top to bottom per spec; rule 4's domain-equality check
// must never be skipped — it is what makes granular scopes granular.
func Satisfies(granted, requested string) bool {
	if granted == requested {
		return true
	}
	if granted == MasterScope {
		return true
	}
	if granted == "world_model.read" {
		if Parse(requested).Kind == KindDynamicSpecific || Parse(requested).Kind == KindDynamicWildcard {
			return true
		}
	}

	g, r := Parse(granted), Parse(requested)
	gDynamic := g.Kind == KindDynamicSpecific || g.Kind == KindDynamicWildcard
	rDynamic := r.Kind == KindDynamicSpecific || r.Kind == KindDynamicWildcard
	if gDynamic && rDynamic {
		if g.Domain != r.Domain {
			return false
		}
		if g.Wildcard {
			return true
		}
		return g.Key == r.Key
	}
	return false
}

// IsWriteScope reports whether a scope denotes a write operation. Mirrors
// the original's is_write_scope: only the master scope and world_model.write
// are write scopes. Every dynamic scope reports false, including the
// `attr.<domain>.*` form that Normalize produces from the legacy
// `vault.write.*` / `vault_write_*` forms.
func IsWriteScope(s string) bool {
	return s == MasterScope || s == "world_model.write"
}

// Describe returns a human-readable label for display in approval UIs.
func Describe(s string) string {
	p := Parse(s)
	switch p.Kind {
	case KindMaster:
		return "Full access to your vault"
	case KindDynamicWildcard:
		return "Access all your " + p.Domain + " data"
	case KindDynamicSpecific:
		return "Access your " + p.Domain + " - " + titleCase(p.Key)
	case KindStatic:
		if d, ok := staticDescriptions[s]; ok {
			return d
		}
		return "Access: " + s
	default:
		return "Access: " + s
	}
}

var staticDescriptions = map[string]string{
	"vault_read_food":          "Read your food preferences (dietary, cuisines, budget)",
	"vault_read_professional":  "Read your professional profile (title, skills, experience)",
	"vault_write_food":         "Write to your food preferences",
	"vault_write_professional": "Write to your professional profile",
	"world_model.read":         "Read your overall profile model",
	"world_model.write":        "Update your overall profile model",
}

func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
