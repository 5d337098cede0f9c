package entities

import (
	"sort"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types"
)

// Entity is the in-memory representation of one knowledge base record.
// All mutation goes through the methods below, which validate the
// structural invariants of the store's data model.
//
// An entity fetched from the store keeps a deep copy of the fetched
// state as its base snapshot, which is what diffs are computed against.
// A locally created entity has no base snapshot and is submitted whole.
type Entity struct {
	id   string
	kind types.EntityKind

	labels       map[string]string
	descriptions map[string]string
	// aliases distinguishes "explicitly cleared" (key present, empty
	// slice) from "never touched" (key absent)
	aliases    map[string][]string
	statements []*Statement
	sitelinks  map[string]Sitelink

	lastRevID int64
	base      *Entity

	decorateErr error
}

// Sitelink connects an item to a page on a client site.
type Sitelink struct {
	Site   string
	Title  string
	Badges []string
}

type EntityDecoratorFunc func(e *Entity)

// New creates an empty entity of the given kind. The id may be empty
// for an entity that does not exist in the store yet.
func New(id string, kind types.EntityKind, decorators ...EntityDecoratorFunc) (*Entity, error) {
	if !kind.Valid() {
		return nil, errors.NewValidationError("entity.type", string(kind))
	}
	if id != "" && !kind.ValidID(id) {
		return nil, errors.NewValidationError("entity.id", id+" does not match kind "+string(kind))
	}

	e := &Entity{
		id:           id,
		kind:         kind,
		labels:       map[string]string{},
		descriptions: map[string]string{},
		aliases:      map[string][]string{},
		sitelinks:    map[string]Sitelink{},
	}

	for _, decorator := range decorators {
		decorator(e)
		if e.decorateErr != nil {
			return nil, e.decorateErr
		}
	}

	return e, nil
}

func Label(language, value string) EntityDecoratorFunc {
	return func(e *Entity) { e.decorate(e.SetLabel(language, value)) }
}

func Description(language, value string) EntityDecoratorFunc {
	return func(e *Entity) { e.decorate(e.SetDescription(language, value)) }
}

func Aliases(language string, values ...string) EntityDecoratorFunc {
	return func(e *Entity) { e.decorate(e.SetAliases(language, values)) }
}

func Claim(statement *Statement) EntityDecoratorFunc {
	return func(e *Entity) { e.decorate(e.AddStatement(statement)) }
}

func Site(site, title string, badges ...string) EntityDecoratorFunc {
	return func(e *Entity) {
		e.decorate(e.SetSitelink(Sitelink{Site: site, Title: title, Badges: badges}))
	}
}

func (e *Entity) decorate(err error) {
	if e.decorateErr == nil {
		e.decorateErr = err
	}
}

func (e *Entity) ID() string             { return e.id }
func (e *Entity) Kind() types.EntityKind { return e.kind }

// LastRevisionID is the optimistic lock token, zero until first fetch.
func (e *Entity) LastRevisionID() int64 { return e.lastRevID }

// Base returns the snapshot of the entity as last fetched or committed,
// or nil for a locally created entity.
func (e *Entity) Base() *Entity { return e.base }

func (e *Entity) Label(language string) (string, bool) {
	v, ok := e.labels[language]
	return v, ok
}

func (e *Entity) Labels() map[string]string {
	return copyStringMap(e.labels)
}

func (e *Entity) Description(language string) (string, bool) {
	v, ok := e.descriptions[language]
	return v, ok
}

func (e *Entity) Descriptions() map[string]string {
	return copyStringMap(e.descriptions)
}

// Aliases returns the alias lists per language. A present, empty list
// means the aliases were explicitly cleared.
func (e *Entity) Aliases() map[string][]string {
	out := make(map[string][]string, len(e.aliases))
	for lang, vals := range e.aliases {
		out[lang] = append([]string{}, vals...)
	}
	return out
}

func (e *Entity) AliasesFor(language string) []string {
	return append([]string(nil), e.aliases[language]...)
}

func (e *Entity) Statements() []*Statement {
	return append([]*Statement(nil), e.statements...)
}

// StatementsFor returns the statements whose main snak uses the given
// property, in insertion order.
func (e *Entity) StatementsFor(property string) []*Statement {
	var out []*Statement
	for _, st := range e.statements {
		if st.Property() == property {
			out = append(out, st)
		}
	}
	return out
}

func (e *Entity) Sitelinks() map[string]Sitelink {
	out := make(map[string]Sitelink, len(e.sitelinks))
	for site, link := range e.sitelinks {
		link.Badges = append([]string(nil), link.Badges...)
		out[site] = link
	}
	return out
}

func (e *Entity) SetLabel(language, value string) error {
	if !types.IsLanguageTag(language) {
		return errors.NewValidationError("labels.language", language)
	}
	if value == "" {
		return errors.NewValidationError("labels.value", "empty (use RemoveLabel)")
	}
	e.labels[language] = value
	return nil
}

// RemoveLabel deletes the label for a language. Removing a label that
// is not set is a no-op.
func (e *Entity) RemoveLabel(language string) error {
	if !types.IsLanguageTag(language) {
		return errors.NewValidationError("labels.language", language)
	}
	delete(e.labels, language)
	return nil
}

func (e *Entity) SetDescription(language, value string) error {
	if !types.IsLanguageTag(language) {
		return errors.NewValidationError("descriptions.language", language)
	}
	if value == "" {
		return errors.NewValidationError("descriptions.value", "empty (use RemoveDescription)")
	}
	e.descriptions[language] = value
	return nil
}

func (e *Entity) RemoveDescription(language string) error {
	if !types.IsLanguageTag(language) {
		return errors.NewValidationError("descriptions.language", language)
	}
	delete(e.descriptions, language)
	return nil
}

// SetAliases replaces the alias list for a language. An empty list
// marks the aliases as explicitly cleared, which is distinct from
// never having touched them.
func (e *Entity) SetAliases(language string, values []string) error {
	if !types.IsLanguageTag(language) {
		return errors.NewValidationError("aliases.language", language)
	}

	seen := map[string]bool{}
	for _, v := range values {
		if v == "" {
			return errors.NewValidationError("aliases.value", "empty")
		}
		if seen[v] {
			return errors.NewValidationError("aliases.value", "duplicate "+v)
		}
		seen[v] = true
	}

	e.aliases[language] = append([]string{}, values...)
	return nil
}

func (e *Entity) AddAlias(language, value string) error {
	if contains(e.aliases[language], value) {
		return errors.NewValidationError("aliases.value", "duplicate "+value)
	}
	return e.SetAliases(language, append(e.AliasesFor(language), value))
}

// ClearAliases explicitly empties the alias list for a language.
func (e *Entity) ClearAliases(language string) error {
	return e.SetAliases(language, []string{})
}

// AddStatement appends a statement, or replaces the existing statement
// with the same id when the statement carries one.
func (e *Entity) AddStatement(statement *Statement) error {
	if statement == nil {
		return errors.NewValidationError("statement", "nil")
	}
	if err := statement.mainSnak.Validate(); err != nil {
		return err
	}
	if !statement.rank.Valid() {
		return errors.NewValidationError("statement.rank", string(statement.rank))
	}

	if statement.id != "" {
		for idx, existing := range e.statements {
			if existing.id == statement.id {
				e.statements[idx] = statement
				return nil
			}
		}
	}

	e.statements = append(e.statements, statement)
	return nil
}

// RemoveStatement removes the statement with the given id. Removing an
// unknown id is a no-op, so removals are idempotent.
func (e *Entity) RemoveStatement(id string) error {
	if id == "" {
		return errors.NewValidationError("statement.id", "empty")
	}

	for idx, st := range e.statements {
		if st.id == id {
			e.statements = append(e.statements[:idx], e.statements[idx+1:]...)
			return nil
		}
	}
	return nil
}

func (e *Entity) SetSitelink(link Sitelink) error {
	if e.kind != types.KindItem {
		return errors.NewValidationError("sitelinks", "only items carry sitelinks")
	}
	if link.Site == "" {
		return errors.NewValidationError("sitelinks.site", "empty")
	}
	if link.Title == "" {
		return errors.NewValidationError("sitelinks.title", "empty")
	}
	for _, badge := range link.Badges {
		if !types.KindItem.ValidID(badge) {
			return errors.NewValidationError("sitelinks.badges", badge)
		}
	}

	link.Badges = append([]string(nil), link.Badges...)
	e.sitelinks[link.Site] = link
	return nil
}

func (e *Entity) RemoveSitelink(site string) error {
	if e.kind != types.KindItem {
		return errors.NewValidationError("sitelinks", "only items carry sitelinks")
	}
	delete(e.sitelinks, site)
	return nil
}

// Copy returns a deep copy of the entity content. The base snapshot is
// shared, not copied, since snapshots are never mutated.
func (e *Entity) Copy() *Entity {
	cp := &Entity{
		id:           e.id,
		kind:         e.kind,
		labels:       copyStringMap(e.labels),
		descriptions: copyStringMap(e.descriptions),
		aliases:      map[string][]string{},
		sitelinks:    map[string]Sitelink{},
		lastRevID:    e.lastRevID,
		base:         e.base,
	}
	for lang, vals := range e.aliases {
		cp.aliases[lang] = append([]string{}, vals...)
	}
	for _, st := range e.statements {
		cp.statements = append(cp.statements, st.Copy())
	}
	for site, link := range e.sitelinks {
		link.Badges = append([]string(nil), link.Badges...)
		cp.sitelinks[site] = link
	}
	return cp
}

// Equal compares entity content, ignoring revision bookkeeping, the
// base snapshot and server computed reference hashes. Statement ids
// take part in the comparison when both sides carry one.
func (e *Entity) Equal(other *Entity) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.id != other.id || e.kind != other.kind {
		return false
	}
	if !equalStringMaps(e.labels, other.labels) || !equalStringMaps(e.descriptions, other.descriptions) {
		return false
	}

	if len(e.aliases) != len(other.aliases) {
		return false
	}
	for lang, vals := range e.aliases {
		ovals, ok := other.aliases[lang]
		if !ok || !equalStringSlices(vals, ovals) {
			return false
		}
	}

	if len(e.statements) != len(other.statements) {
		return false
	}
	for idx := range e.statements {
		a, b := e.statements[idx], other.statements[idx]
		if a.id != "" && b.id != "" && a.id != b.id {
			return false
		}
		if !a.EquivalentTo(b) {
			return false
		}
	}

	if len(e.sitelinks) != len(other.sitelinks) {
		return false
	}
	for site, link := range e.sitelinks {
		olink, ok := other.sitelinks[site]
		if !ok || link.Site != olink.Site || link.Title != olink.Title || !equalStringSlices(link.Badges, olink.Badges) {
			return false
		}
	}

	return true
}

// Commit adopts the state the store confirmed for this entity: content
// (including server assigned statement ids and reference hashes) and
// revision id, and replaces the base snapshot with the just-committed
// state.
func (e *Entity) Commit(committed *Entity) {
	adopted := committed.Copy()

	e.id = adopted.id
	e.kind = adopted.kind
	e.labels = adopted.labels
	e.descriptions = adopted.descriptions
	e.aliases = adopted.aliases
	e.statements = adopted.statements
	e.sitelinks = adopted.sitelinks
	e.lastRevID = adopted.lastRevID

	snapshot := e.Copy()
	snapshot.base = nil
	e.base = snapshot
}

// PropertyOrder returns the statements' property ids in first
// appearance order, which is the group order used for serialization.
func (e *Entity) PropertyOrder() []string {
	var order []string
	for _, st := range e.statements {
		if !contains(order, st.Property()) {
			order = append(order, st.Property())
		}
	}
	return order
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func equalStringMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
