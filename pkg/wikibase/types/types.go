package types

import (
	"regexp"
)

// EntityKind tags the variant of a knowledge base entity.
type EntityKind string

const (
	KindItem     EntityKind = "item"
	KindProperty EntityKind = "property"
	KindLexeme   EntityKind = "lexeme"
	KindForm     EntityKind = "form"
	KindSense    EntityKind = "sense"
)

func (k EntityKind) Valid() bool {
	switch k {
	case KindItem, KindProperty, KindLexeme, KindForm, KindSense:
		return true
	}
	return false
}

var idPatterns = map[EntityKind]*regexp.Regexp{
	KindItem:     regexp.MustCompile(`^Q[1-9][0-9]*$`),
	KindProperty: regexp.MustCompile(`^P[1-9][0-9]*$`),
	KindLexeme:   regexp.MustCompile(`^L[1-9][0-9]*$`),
	KindForm:     regexp.MustCompile(`^L[1-9][0-9]*-F[1-9][0-9]*$`),
	KindSense:    regexp.MustCompile(`^L[1-9][0-9]*-S[1-9][0-9]*$`),
}

// ValidID reports whether id carries the prefix format of this kind.
func (k EntityKind) ValidID(id string) bool {
	pattern, ok := idPatterns[k]
	return ok && pattern.MatchString(id)
}

// KindOfID derives the entity kind from an id's prefix format.
func KindOfID(id string) (EntityKind, bool) {
	// form and sense ids also match the lexeme prefix, so they go first
	for _, k := range []EntityKind{KindForm, KindSense, KindItem, KindProperty, KindLexeme} {
		if k.ValidID(id) {
			return k, true
		}
	}
	return "", false
}

var propertyIDPattern = regexp.MustCompile(`^P[1-9][0-9]*$`)

func IsPropertyID(id string) bool {
	return propertyIDPattern.MatchString(id)
}

var languagePattern = regexp.MustCompile(`^[a-z]{2,12}(-[a-z0-9]{1,8})*$`)

// IsLanguageTag reports whether lang is a well formed language code of
// the kind the store accepts (bcp47-ish, lower case, e.g. "en", "zh-hans").
func IsLanguageTag(lang string) bool {
	return languagePattern.MatchString(lang)
}

// Rank is the statement priority marker.
type Rank string

const (
	RankPreferred  Rank = "preferred"
	RankNormal     Rank = "normal"
	RankDeprecated Rank = "deprecated"
)

func (r Rank) Valid() bool {
	switch r {
	case RankPreferred, RankNormal, RankDeprecated:
		return true
	}
	return false
}

// SnakType distinguishes a snak carrying a value from the "unknown
// value" and "no value" markers.
type SnakType string

const (
	SnakValue     SnakType = "value"
	SnakSomeValue SnakType = "somevalue"
	SnakNoValue   SnakType = "novalue"
)

func (s SnakType) Valid() bool {
	switch s {
	case SnakValue, SnakSomeValue, SnakNoValue:
		return true
	}
	return false
}

// DataValue is one typed value inside a snak. The concrete variants
// live in the values package; unknown wire types round-trip through the
// opaque variant.
type DataValue interface {
	// Type returns the wire level datavalue type tag, e.g. "string",
	// "quantity" or "wikibase-entityid".
	Type() string
	Value() any
	Equal(other DataValue) bool
	MarshalJSON() ([]byte, error)
}
