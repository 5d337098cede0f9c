package diff

import (
	goerrors "errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/matryer/is"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types/entities"
	"github.com/knowbase/wikibase/pkg/wikibase/types/values"
)

func TestDiffOfUnmodifiedEntityIsEmpty(t *testing.T) {
	is := is.New(t)

	e := fetchedBerlin(t)
	p := Between(e.Base(), e)

	is.True(p.IsEmpty())
	is.Equal(p.EntityID, "Q64")
	is.Equal(p.BaseRevisionID, int64(100))
}

func TestDiffCapturesEveryKindOfChange(t *testing.T) {
	is := is.New(t)

	e := fetchedBerlin(t)

	is.NoErr(e.SetLabel("fr", "Berlin"))
	is.NoErr(e.RemoveLabel("de"))
	is.NoErr(e.SetDescription("en", "capital and largest city of Germany"))
	is.NoErr(e.ClearAliases("en"))
	is.NoErr(e.RemoveStatement("Q64$STMT-1"))
	is.NoErr(e.AddStatement(population(t, "3644826")))
	is.NoErr(e.SetSitelink(entities.Sitelink{Site: "dewiki", Title: "Berlin"}))

	p := Between(e.Base(), e)

	is.Equal(p.Labels["fr"], TermOp{Value: "Berlin"})
	is.Equal(p.Labels["de"], TermOp{Remove: true})
	is.Equal(p.Descriptions["en"], TermOp{Value: "capital and largest city of Germany"})
	is.Equal(len(p.Aliases["en"].Values), 0)
	is.Equal(len(p.Statements), 2)
	is.Equal(p.Sitelinks["dewiki"], SitelinkOp{Link: entities.Sitelink{Site: "dewiki", Title: "Berlin"}})
}

func TestApplyReproducesTheModifiedEntity(t *testing.T) {
	is := is.New(t)

	e := fetchedBerlin(t)

	is.NoErr(e.SetLabel("fr", "Berlin"))
	is.NoErr(e.RemoveLabel("de"))
	is.NoErr(e.ClearAliases("en"))
	is.NoErr(e.AddStatement(population(t, "3644826")))
	is.NoErr(e.RemoveSitelink("enwiki"))

	p := Between(e.Base(), e)

	replayed, err := Apply(e.Base(), p)
	is.NoErr(err)
	is.True(replayed.Equal(e))
}

func TestDiffAgainstNilBaseSubmitsEverything(t *testing.T) {
	is := is.New(t)

	e, err := entities.New("", "item",
		entities.Label("en", "new thing"),
		entities.Claim(population(t, "1")),
	)
	is.NoErr(err)

	p := Between(nil, e)

	is.Equal(p.EntityID, "")
	is.Equal(p.BaseRevisionID, int64(0))
	is.Equal(p.Labels["en"], TermOp{Value: "new thing"})
	is.Equal(len(p.Statements), 1)
}

func TestUntouchedAliasesProduceNoOp(t *testing.T) {
	is := is.New(t)

	e := fetchedBerlin(t)
	is.NoErr(e.SetLabel("fr", "Berlin"))

	p := Between(e.Base(), e)

	_, touched := p.Aliases["en"]
	is.True(!touched)
}

func TestPatchMarshalEmitsRemoveMarkers(t *testing.T) {
	is := is.New(t)

	e := fetchedBerlin(t)
	is.NoErr(e.RemoveLabel("de"))
	is.NoErr(e.RemoveStatement("Q64$STMT-1"))
	is.NoErr(e.RemoveSitelink("enwiki"))

	p := Between(e.Base(), e)

	b, err := json.Marshal(p)
	is.NoErr(err)

	body := string(b)
	is.True(strings.Contains(body, `"labels":{"de":{"language":"de","remove":""}}`))
	is.True(strings.Contains(body, `{"id":"Q64$STMT-1","remove":""}`))
	is.True(strings.Contains(body, `"sitelinks":{"enwiki":{"site":"enwiki","remove":""}}`))
}

func TestAppliedToRecognizesACommittedChangeSet(t *testing.T) {
	is := is.New(t)

	e := fetchedBerlin(t)
	is.NoErr(e.SetLabel("fr", "Berlin"))
	is.NoErr(e.RemoveLabel("de"))
	is.NoErr(e.AddStatement(population(t, "3644826")))

	p := Between(e.Base(), e)

	is.True(!AppliedTo(p, e.Base()))
	is.True(AppliedTo(p, e))
}

func TestRebaseKeepsOpsOnUntouchedRegions(t *testing.T) {
	is := is.New(t)

	e := fetchedBerlin(t)
	is.NoErr(e.SetLabel("fr", "Berlin"))

	p := Between(e.Base(), e)

	// upstream changed something this patch does not touch
	upstream := fetchedBerlinAt(t, 101, `"en":{"language":"en","value":"Berlin!"}`)

	rebased, err := Rebase(p, e.Base(), upstream)
	is.NoErr(err)
	is.Equal(rebased.BaseRevisionID, int64(101))
	is.Equal(rebased.Labels["fr"], TermOp{Value: "Berlin"})
}

func TestRebaseConflictsOnOverlappingEdits(t *testing.T) {
	is := is.New(t)

	e := fetchedBerlin(t)
	is.NoErr(e.SetLabel("en", "Berlin, Germany"))

	p := Between(e.Base(), e)

	upstream := fetchedBerlinAt(t, 101, `"en":{"language":"en","value":"Berlin!"}`)

	_, err := Rebase(p, e.Base(), upstream)
	is.True(goerrors.Is(err, errors.ErrConflict))

	var conflict *errors.ConflictError
	is.True(goerrors.As(err, &conflict))
	is.Equal(conflict.Upstream, "Berlin!")
}

func TestRebaseDropsRemovesAlreadyAppliedUpstream(t *testing.T) {
	is := is.New(t)

	e := fetchedBerlin(t)
	is.NoErr(e.SetLabel("fr", "Berlin"))
	is.NoErr(e.RemoveStatement("Q64$STMT-1"))

	p := Between(e.Base(), e)
	is.Equal(len(p.Statements), 1)

	// upstream already removed the same statement
	upstream, err := entities.NewFromJSON([]byte(`{
		"type":"item","id":"Q64","lastrevid":101,
		"labels":{"en":{"language":"en","value":"Berlin"},"de":{"language":"de","value":"Berlin"}},
		"aliases":{"en":[{"language":"en","value":"Spree-Athen"}]},
		"sitelinks":{"enwiki":{"site":"enwiki","title":"Berlin","badges":[]}}}`))
	is.NoErr(err)

	rebased, rerr := Rebase(p, e.Base(), upstream)
	is.NoErr(rerr)
	is.Equal(len(rebased.Statements), 0)
	is.Equal(rebased.Labels["fr"], TermOp{Value: "Berlin"})
}

func fetchedBerlin(t *testing.T) *entities.Entity {
	return fetchedBerlinAt(t, 100, `"en":{"language":"en","value":"Berlin"}`)
}

func fetchedBerlinAt(t *testing.T, revision int64, enLabel string) *entities.Entity {
	t.Helper()

	doc := `{
		"type":"item","id":"Q64","lastrevid":` + jsonInt(revision) + `,
		"labels":{` + enLabel + `,"de":{"language":"de","value":"Berlin"}},
		"aliases":{"en":[{"language":"en","value":"Spree-Athen"}]},
		"claims":{"P31":[{
			"id":"Q64$STMT-1",
			"mainsnak":{
				"snaktype":"value","property":"P31","datatype":"wikibase-item",
				"datavalue":{"value":{"entity-type":"item","numeric-id":515,"id":"Q515"},"type":"wikibase-entityid"}
			},
			"type":"statement","rank":"normal"
		}]},
		"sitelinks":{"enwiki":{"site":"enwiki","title":"Berlin","badges":[]}}
	}`

	e, err := entities.NewFromJSON([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func population(t *testing.T, amount string) *entities.Statement {
	t.Helper()

	qty, err := values.NewQuantityValue(amount)
	if err != nil {
		t.Fatal(err)
	}

	snak, err := entities.NewValueSnak("P1082", "quantity", qty)
	if err != nil {
		t.Fatal(err)
	}

	st, err := entities.NewStatement(snak)
	if err != nil {
		t.Fatal(err)
	}
	return st
}
