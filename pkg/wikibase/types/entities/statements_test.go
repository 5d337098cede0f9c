package entities

import (
	goerrors "errors"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types"
	"github.com/knowbase/wikibase/pkg/wikibase/types/values"
)

func TestSnakValueRequiresDataValue(t *testing.T) {
	is := is.New(t)

	_, err := NewValueSnak("P31", "wikibase-item", nil)
	is.True(goerrors.Is(err, errors.ErrValidation))

	snak, err := NewSomeValueSnak("P31")
	is.NoErr(err)

	// a datavalue on a somevalue snak violates the model
	snak.DataValue = values.NewStringValue("nope")
	is.True(goerrors.Is(snak.Validate(), errors.ErrValidation))
}

func TestStatementRankDefaultsToNormal(t *testing.T) {
	is := is.New(t)

	st := testStatement(t, "P31", "Q5")
	is.Equal(st.Rank(), types.RankNormal)

	is.NoErr(st.SetRank(types.RankPreferred))
	is.Equal(st.Rank(), types.RankPreferred)

	err := st.SetRank(types.Rank("best"))
	is.True(goerrors.Is(err, errors.ErrValidation))
}

func TestStatementIDIsImmutableOnceAssigned(t *testing.T) {
	is := is.New(t)

	st := testStatement(t, "P31", "Q5")

	id := NewStatementID("Q64")
	is.True(strings.HasPrefix(id, "Q64$"))

	is.NoErr(st.SetID(id))
	is.NoErr(st.SetID(id)) // same id is fine

	err := st.SetID("Q64$other")
	is.True(goerrors.Is(err, errors.ErrValidation))
	is.Equal(st.ID(), id)
}

func TestQualifiersKeepPropertyOrder(t *testing.T) {
	is := is.New(t)

	st := testStatement(t, "P31", "Q5")

	p582, _ := NewSomeValueSnak("P582")
	p580, _ := NewSomeValueSnak("P580")
	another580, _ := NewNoValueSnak("P580")

	is.NoErr(st.AddQualifier(p582))
	is.NoErr(st.AddQualifier(p580))
	is.NoErr(st.AddQualifier(another580))

	is.Equal(st.QualifiersOrder(), []string{"P582", "P580"})
	is.Equal(len(st.Qualifiers()), 3)

	is.NoErr(st.RemoveQualifiers("P580"))
	is.Equal(st.QualifiersOrder(), []string{"P582"})
	is.Equal(len(st.Qualifiers()), 1)
}

func TestReferencesDeduplicateOnAdd(t *testing.T) {
	is := is.New(t)

	st := testStatement(t, "P31", "Q5")

	url, _ := NewValueSnak("P854", "url", values.NewStringValue("https://example.org"))
	ref, err := NewReference(url)
	is.NoErr(err)

	is.NoErr(st.AddReference(ref))
	is.NoErr(st.AddReference(ref))
	is.Equal(len(st.References()), 1)

	is.True(st.RemoveReference(ref))
	is.Equal(len(st.References()), 0)
	is.True(!st.RemoveReference(ref))
}

func TestLocalChangeClearsReferenceHash(t *testing.T) {
	is := is.New(t)

	e, err := NewFromJSON([]byte(wireBerlin))
	is.NoErr(err)

	st := e.Statements()[0]
	refs := st.References()
	is.Equal(refs[0].Hash(), "deadbeef")

	retrieved, _ := NewValueSnak("P813", "time", mustTime(t, "2020-01-01T00:00:00Z"))
	ref := refs[0]
	is.NoErr(ref.Add(retrieved))
	is.Equal(ref.Hash(), "")
}

func TestEquivalentToIgnoresIDsAndHashes(t *testing.T) {
	is := is.New(t)

	a := testStatement(t, "P31", "Q515")
	b := testStatement(t, "P31", "Q515")
	is.NoErr(a.SetID("Q64$11111111-2222-3333-4444-555555555555"))

	is.True(a.EquivalentTo(b))

	is.NoErr(b.SetRank(types.RankDeprecated))
	is.True(!a.EquivalentTo(b))
}

func mustTime(t *testing.T, timestamp string) values.TimeValue {
	t.Helper()

	v, err := values.NewTimeValue(timestamp)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
