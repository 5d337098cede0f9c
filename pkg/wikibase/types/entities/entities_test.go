package entities

import (
	goerrors "errors"
	"testing"

	"github.com/matryer/is"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types"
	"github.com/knowbase/wikibase/pkg/wikibase/types/values"
)

func TestNewEntityValidatesIDAgainstKind(t *testing.T) {
	is := is.New(t)

	_, err := New("P64", types.KindItem)
	is.True(goerrors.Is(err, errors.ErrValidation))

	e, err := New("Q64", types.KindItem)
	is.NoErr(err)
	is.Equal(e.ID(), "Q64")

	// locally created entities have no id yet
	e, err = New("", types.KindItem)
	is.NoErr(err)
	is.Equal(e.ID(), "")
}

func TestDecodeWireEntity(t *testing.T) {
	is := is.New(t)

	e, err := NewFromJSON([]byte(wireBerlin))
	is.NoErr(err)

	is.Equal(e.ID(), "Q64")
	is.Equal(e.Kind(), types.KindItem)
	is.Equal(e.LastRevisionID(), int64(1234))

	label, ok := e.Label("en")
	is.True(ok)
	is.Equal(label, "Berlin")

	desc, ok := e.Description("en")
	is.True(ok)
	is.Equal(desc, "capital of Germany")

	is.Equal(e.AliasesFor("en"), []string{"Berlin, Germany"})

	statements := e.StatementsFor("P31")
	is.Equal(len(statements), 1)
	is.Equal(statements[0].ID(), "Q64$5A2E6F1C-7A1D-4F4E-A917-B37B1B4C2A61")
	is.Equal(statements[0].Rank(), types.RankNormal)
	is.Equal(statements[0].QualifiersOrder(), []string{"P580"})

	refs := statements[0].References()
	is.Equal(len(refs), 1)
	is.Equal(refs[0].Hash(), "deadbeef")
	is.Equal(refs[0].SnaksOrder(), []string{"P854"})

	links := e.Sitelinks()
	is.Equal(links["enwiki"].Title, "Berlin")

	// the decoded state is the base snapshot
	is.True(e.Base() != nil)
	is.True(e.Equal(e.Base()))
}

func TestDecodeRejectsQualifiersOrderMismatch(t *testing.T) {
	is := is.New(t)

	_, err := NewFromJSON([]byte(`{
		"type":"item","id":"Q1","claims":{"P31":[{
			"mainsnak":{"snaktype":"novalue","property":"P31"},
			"type":"statement","rank":"normal",
			"qualifiers":{"P580":[{"snaktype":"novalue","property":"P580"}]},
			"qualifiers-order":["P580","P582"]
		}]}}`))

	is.True(goerrors.Is(err, errors.ErrDecode))
}

func TestDecodeRejectsEmptyQualifierGroup(t *testing.T) {
	is := is.New(t)

	// an empty group would leave the order naming a property that has
	// no snaks, which a re-encode could not reproduce
	_, err := NewFromJSON([]byte(`{
		"type":"item","id":"Q1","claims":{"P31":[{
			"mainsnak":{"snaktype":"novalue","property":"P31"},
			"type":"statement","rank":"normal",
			"qualifiers":{"P580":[]},
			"qualifiers-order":["P580"]
		}]}}`))

	is.True(goerrors.Is(err, errors.ErrDecode))

	// the same holds when the wire omits the order array
	_, err = NewFromJSON([]byte(`{
		"type":"item","id":"Q1","claims":{"P31":[{
			"mainsnak":{"snaktype":"novalue","property":"P31"},
			"type":"statement","rank":"normal",
			"qualifiers":{"P580":[]}
		}]}}`))

	is.True(goerrors.Is(err, errors.ErrDecode))
}

func TestDecodeDefaultsMissingRankToNormal(t *testing.T) {
	is := is.New(t)

	e, err := NewFromJSON([]byte(`{
		"type":"item","id":"Q1","claims":{"P31":[{
			"mainsnak":{"snaktype":"somevalue","property":"P31"},
			"type":"statement"
		}]}}`))

	is.NoErr(err)
	is.Equal(e.Statements()[0].Rank(), types.RankNormal)
}

func TestDecodeRejectsSitelinksOnProperty(t *testing.T) {
	is := is.New(t)

	_, err := NewFromJSON([]byte(`{
		"type":"property","id":"P69",
		"sitelinks":{"enwiki":{"site":"enwiki","title":"Nope","badges":[]}}}`))

	is.True(goerrors.Is(err, errors.ErrDecode))
}

func TestDecodeMissingEntityMarker(t *testing.T) {
	is := is.New(t)

	_, err := NewFromJSON([]byte(`{"id":"Q404","missing":""}`))
	is.True(goerrors.Is(err, errors.ErrNotFound))
}

func TestMarshalIsDeterministicAndRoundTrips(t *testing.T) {
	is := is.New(t)

	e, err := NewFromJSON([]byte(wireBerlin))
	is.NoErr(err)

	first, err := e.MarshalJSON()
	is.NoErr(err)
	second, err := e.MarshalJSON()
	is.NoErr(err)
	is.Equal(string(first), string(second))

	decoded, err := NewFromJSON(first)
	is.NoErr(err)
	is.True(decoded.Equal(e))
	is.Equal(decoded.LastRevisionID(), e.LastRevisionID())
}

func TestSetLabelRejectsEmptyValue(t *testing.T) {
	is := is.New(t)

	e, _ := New("Q1", types.KindItem)

	err := e.SetLabel("en", "")
	is.True(goerrors.Is(err, errors.ErrValidation))

	err = e.SetLabel("not a tag!", "x")
	is.True(goerrors.Is(err, errors.ErrValidation))
}

func TestSetAliasesRejectsDuplicates(t *testing.T) {
	is := is.New(t)

	e, _ := New("Q1", types.KindItem)

	err := e.SetAliases("en", []string{"a", "a"})
	is.True(goerrors.Is(err, errors.ErrValidation))

	err = e.AddAlias("en", "a")
	is.NoErr(err)
	err = e.AddAlias("en", "a")
	is.True(goerrors.Is(err, errors.ErrValidation))
}

func TestClearedAliasesStayPresent(t *testing.T) {
	is := is.New(t)

	e, _ := New("Q1", types.KindItem, Aliases("en", "a", "b"))

	err := e.ClearAliases("en")
	is.NoErr(err)

	all := e.Aliases()
	vals, ok := all["en"]
	is.True(ok) // cleared, not forgotten
	is.Equal(len(vals), 0)

	_, ok = all["de"]
	is.True(!ok)
}

func TestAddStatementReplacesByID(t *testing.T) {
	is := is.New(t)

	e, _ := New("Q1", types.KindItem)

	first := testStatement(t, "P31", "Q5")
	is.NoErr(first.SetID("Q1$11111111-2222-3333-4444-555555555555"))
	is.NoErr(e.AddStatement(first))

	replacement := testStatement(t, "P31", "Q515")
	is.NoErr(replacement.SetID(first.ID()))
	is.NoErr(e.AddStatement(replacement))

	is.Equal(len(e.Statements()), 1)
	is.True(e.Statements()[0].EquivalentTo(replacement))
}

func TestRemoveStatementIsIdempotent(t *testing.T) {
	is := is.New(t)

	e, _ := New("Q1", types.KindItem)

	st := testStatement(t, "P31", "Q5")
	is.NoErr(st.SetID("Q1$11111111-2222-3333-4444-555555555555"))
	is.NoErr(e.AddStatement(st))

	is.NoErr(e.RemoveStatement(st.ID()))
	is.NoErr(e.RemoveStatement(st.ID()))
	is.Equal(len(e.Statements()), 0)
}

func TestSitelinksOnlyOnItems(t *testing.T) {
	is := is.New(t)

	p, _ := New("P69", types.KindProperty)
	err := p.SetSitelink(Sitelink{Site: "enwiki", Title: "Nope"})
	is.True(goerrors.Is(err, errors.ErrValidation))

	q, _ := New("Q1", types.KindItem)
	err = q.SetSitelink(Sitelink{Site: "enwiki", Title: "Yep", Badges: []string{"Q17437796"}})
	is.NoErr(err)

	err = q.SetSitelink(Sitelink{Site: "enwiki", Title: "Bad badge", Badges: []string{"P1"}})
	is.True(goerrors.Is(err, errors.ErrValidation))
}

func TestCommitAdoptsServerState(t *testing.T) {
	is := is.New(t)

	e, _ := New("Q1", types.KindItem, Label("en", "draft"))

	committed, err := NewFromJSON([]byte(`{
		"type":"item","id":"Q1","lastrevid":99,
		"labels":{"en":{"language":"en","value":"draft"}},
		"claims":{"P31":[{
			"id":"Q1$99999999-8888-7777-6666-555555555555",
			"mainsnak":{"snaktype":"novalue","property":"P31"},
			"type":"statement","rank":"normal"
		}]}}`))
	is.NoErr(err)

	e.Commit(committed)

	is.Equal(e.LastRevisionID(), int64(99))
	is.Equal(e.Statements()[0].ID(), "Q1$99999999-8888-7777-6666-555555555555")
	is.True(e.Equal(e.Base()))
}

func testStatement(t *testing.T, property, target string) *Statement {
	t.Helper()

	v, err := values.NewEntityIDValue(target)
	if err != nil {
		t.Fatal(err)
	}

	snak, err := NewValueSnak(property, "wikibase-item", v)
	if err != nil {
		t.Fatal(err)
	}

	st, err := NewStatement(snak)
	if err != nil {
		t.Fatal(err)
	}

	return st
}

const wireBerlin string = `{
	"type":"item","id":"Q64",
	"labels":{"en":{"language":"en","value":"Berlin"}},
	"descriptions":{"en":{"language":"en","value":"capital of Germany"}},
	"aliases":{"en":[{"language":"en","value":"Berlin, Germany"}]},
	"claims":{"P31":[{
		"id":"Q64$5A2E6F1C-7A1D-4F4E-A917-B37B1B4C2A61",
		"mainsnak":{
			"snaktype":"value","property":"P31","datatype":"wikibase-item",
			"datavalue":{"value":{"entity-type":"item","numeric-id":515,"id":"Q515"},"type":"wikibase-entityid"}
		},
		"type":"statement","rank":"normal",
		"qualifiers":{"P580":[{
			"snaktype":"value","property":"P580","datatype":"time",
			"datavalue":{"value":{"time":"+1237-01-01T00:00:00Z","timezone":0,"before":0,"after":0,"precision":9,"calendarmodel":"http://www.wikidata.org/entity/Q1985727"},"type":"time"}
		}]},
		"qualifiers-order":["P580"],
		"references":[{
			"hash":"deadbeef",
			"snaks":{"P854":[{
				"snaktype":"value","property":"P854","datatype":"url",
				"datavalue":{"value":"https://example.org/berlin","type":"string"}
			}]},
			"snaks-order":["P854"]
		}]
	}]},
	"sitelinks":{"enwiki":{"site":"enwiki","title":"Berlin","badges":[]}},
	"lastrevid":1234
}`
