package entities

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types"
)

// Snak is a single property-value assertion unit, used as a statement's
// main value, a qualifier, or a reference component. Datatype carries
// the property's wire datatype (e.g. "external-id") verbatim so that
// encoding round-trips.
type Snak struct {
	SnakType  types.SnakType
	Property  string
	Datatype  string
	DataValue types.DataValue
}

func NewValueSnak(property, datatype string, value types.DataValue) (Snak, error) {
	s := Snak{
		SnakType:  types.SnakValue,
		Property:  property,
		Datatype:  datatype,
		DataValue: value,
	}
	return s, s.Validate()
}

func NewSomeValueSnak(property string) (Snak, error) {
	s := Snak{SnakType: types.SnakSomeValue, Property: property}
	return s, s.Validate()
}

func NewNoValueSnak(property string) (Snak, error) {
	s := Snak{SnakType: types.SnakNoValue, Property: property}
	return s, s.Validate()
}

func (s Snak) Validate() error {
	if !types.IsPropertyID(s.Property) {
		return errors.NewValidationError("snak.property", s.Property)
	}
	if !s.SnakType.Valid() {
		return errors.NewValidationError("snak.snaktype", string(s.SnakType))
	}
	if s.SnakType == types.SnakValue && s.DataValue == nil {
		return errors.NewValidationError("snak.datavalue", "missing for snaktype value")
	}
	if s.SnakType != types.SnakValue && s.DataValue != nil {
		return errors.NewValidationError("snak.datavalue", "present for snaktype "+string(s.SnakType))
	}
	return nil
}

func (s Snak) Equal(other Snak) bool {
	if s.SnakType != other.SnakType || s.Property != other.Property || s.Datatype != other.Datatype {
		return false
	}
	if s.DataValue == nil || other.DataValue == nil {
		return s.DataValue == nil && other.DataValue == nil
	}
	return s.DataValue.Equal(other.DataValue)
}

// Reference is a group of snaks citing support for a statement. The
// hash is computed server side and empty until the reference has been
// committed.
type Reference struct {
	hash       string
	snaks      []Snak
	snaksOrder []string
}

func NewReference(snaks ...Snak) (Reference, error) {
	r := Reference{}
	for _, snak := range snaks {
		if err := r.Add(snak); err != nil {
			return Reference{}, err
		}
	}
	return r, nil
}

func (r Reference) Hash() string { return r.hash }

func (r Reference) Snaks() []Snak {
	return append([]Snak(nil), r.snaks...)
}

func (r Reference) SnaksOrder() []string {
	return append([]string(nil), r.snaksOrder...)
}

func (r *Reference) Add(snak Snak) error {
	if err := snak.Validate(); err != nil {
		return err
	}

	r.snaks = append(r.snaks, snak)
	if !contains(r.snaksOrder, snak.Property) {
		r.snaksOrder = append(r.snaksOrder, snak.Property)
	}
	// a local change invalidates any server computed hash
	r.hash = ""

	return nil
}

// Equal ignores the server computed hash, so a locally built reference
// compares equal to its committed counterpart.
func (r Reference) Equal(other Reference) bool {
	return equalSnakSlices(r.snaks, other.snaks) && equalStringSlices(r.snaksOrder, other.snaksOrder)
}

func (r Reference) copy() Reference {
	return Reference{
		hash:       r.hash,
		snaks:      append([]Snak(nil), r.snaks...),
		snaksOrder: append([]string(nil), r.snaksOrder...),
	}
}

// Statement is one claim about an entity: a main snak plus qualifiers,
// references and a rank.
type Statement struct {
	id              string
	mainSnak        Snak
	qualifiers      []Snak
	qualifiersOrder []string
	references      []Reference
	rank            types.Rank
}

type StatementDecoratorFunc func(s *Statement) error

func Rank(rank types.Rank) StatementDecoratorFunc {
	return func(s *Statement) error {
		return s.SetRank(rank)
	}
}

func Qualifier(snak Snak) StatementDecoratorFunc {
	return func(s *Statement) error {
		return s.AddQualifier(snak)
	}
}

func Ref(reference Reference) StatementDecoratorFunc {
	return func(s *Statement) error {
		return s.AddReference(reference)
	}
}

func NewStatement(mainSnak Snak, decorators ...StatementDecoratorFunc) (*Statement, error) {
	if err := mainSnak.Validate(); err != nil {
		return nil, err
	}

	s := &Statement{
		mainSnak: mainSnak,
		rank:     types.RankNormal,
	}

	for _, decorator := range decorators {
		if err := decorator(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// NewStatementID generates a client side claim GUID in the store's
// <entity-id>$<uuid> format.
func NewStatementID(entityID string) string {
	return fmt.Sprintf("%s$%s", entityID, uuid.NewString())
}

func (s *Statement) ID() string          { return s.id }
func (s *Statement) MainSnak() Snak      { return s.mainSnak }
func (s *Statement) Rank() types.Rank    { return s.rank }
func (s *Statement) Property() string    { return s.mainSnak.Property }

func (s *Statement) Qualifiers() []Snak {
	return append([]Snak(nil), s.qualifiers...)
}

func (s *Statement) QualifiersOrder() []string {
	return append([]string(nil), s.qualifiersOrder...)
}

func (s *Statement) References() []Reference {
	refs := make([]Reference, 0, len(s.references))
	for _, r := range s.references {
		refs = append(refs, r.copy())
	}
	return refs
}

// SetID assigns the statement id. Ids are immutable once assigned.
func (s *Statement) SetID(id string) error {
	if s.id != "" && s.id != id {
		return errors.NewValidationError("statement.id", "already assigned")
	}
	if id == "" {
		return errors.NewValidationError("statement.id", "empty")
	}
	s.id = id
	return nil
}

func (s *Statement) SetRank(rank types.Rank) error {
	if !rank.Valid() {
		return errors.NewValidationError("statement.rank", string(rank))
	}
	s.rank = rank
	return nil
}

func (s *Statement) AddQualifier(snak Snak) error {
	if err := snak.Validate(); err != nil {
		return err
	}

	s.qualifiers = append(s.qualifiers, snak)
	if !contains(s.qualifiersOrder, snak.Property) {
		s.qualifiersOrder = append(s.qualifiersOrder, snak.Property)
	}

	return nil
}

// RemoveQualifiers removes all qualifiers for the given property and
// drops the property from the qualifiers order.
func (s *Statement) RemoveQualifiers(property string) error {
	if !types.IsPropertyID(property) {
		return errors.NewValidationError("snak.property", property)
	}

	kept := s.qualifiers[:0]
	for _, q := range s.qualifiers {
		if q.Property != property {
			kept = append(kept, q)
		}
	}
	s.qualifiers = kept

	order := s.qualifiersOrder[:0]
	for _, p := range s.qualifiersOrder {
		if p != property {
			order = append(order, p)
		}
	}
	s.qualifiersOrder = order

	return nil
}

func (s *Statement) AddReference(reference Reference) error {
	if len(reference.snaks) == 0 {
		return errors.NewValidationError("reference.snaks", "empty")
	}

	for _, existing := range s.references {
		if existing.Equal(reference) {
			return nil
		}
	}

	s.references = append(s.references, reference.copy())
	return nil
}

// RemoveReference removes the reference matching by hash, or by content
// equality when the reference has no hash yet.
func (s *Statement) RemoveReference(reference Reference) bool {
	for idx, existing := range s.references {
		matched := existing.Equal(reference)
		if !matched && reference.hash != "" {
			matched = existing.hash == reference.hash
		}

		if matched {
			s.references = append(s.references[:idx], s.references[idx+1:]...)
			return true
		}
	}
	return false
}

// EquivalentTo compares statement content, ignoring ids and server
// computed reference hashes.
func (s *Statement) EquivalentTo(other *Statement) bool {
	if s == nil || other == nil {
		return s == other
	}
	if !s.mainSnak.Equal(other.mainSnak) || s.rank != other.rank {
		return false
	}
	if !equalSnakSlices(s.qualifiers, other.qualifiers) {
		return false
	}
	if !equalStringSlices(s.qualifiersOrder, other.qualifiersOrder) {
		return false
	}
	if len(s.references) != len(other.references) {
		return false
	}
	for idx := range s.references {
		if !s.references[idx].Equal(other.references[idx]) {
			return false
		}
	}
	return true
}

func (s *Statement) Copy() *Statement {
	if s == nil {
		return nil
	}

	cp := &Statement{
		id:              s.id,
		mainSnak:        s.mainSnak,
		qualifiers:      append([]Snak(nil), s.qualifiers...),
		qualifiersOrder: append([]string(nil), s.qualifiersOrder...),
		rank:            s.rank,
	}
	for _, r := range s.references {
		cp.references = append(cp.references, r.copy())
	}
	return cp
}

func contains(slice []string, find string) bool {
	for idx := range slice {
		if slice[idx] == find {
			return true
		}
	}
	return false
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if a[idx] != b[idx] {
			return false
		}
	}
	return true
}

func equalSnakSlices(a, b []Snak) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if !a[idx].Equal(b[idx]) {
			return false
		}
	}
	return true
}
