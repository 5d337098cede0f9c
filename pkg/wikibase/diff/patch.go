package diff

import (
	json "github.com/goccy/go-json"

	"github.com/knowbase/wikibase/pkg/wikibase/types"
	"github.com/knowbase/wikibase/pkg/wikibase/types/entities"
)

// TermOp sets or removes one label or description in one language.
type TermOp struct {
	Value  string
	Remove bool
}

// AliasesOp replaces the full alias list for one language. An empty
// list clears the aliases.
type AliasesOp struct {
	Values []string
}

// StatementOp sets (add or replace by id) or removes one statement.
// Removals address the statement by id; statements that never received
// an id cannot be removed remotely.
type StatementOp struct {
	Statement *entities.Statement
	Remove    bool
	ID        string
}

// SitelinkOp sets or removes the sitelink for one site.
type SitelinkOp struct {
	Link   entities.Sitelink
	Remove bool
}

// Patch is the minimal set of operations that reproduces a modified
// entity when applied to its base revision. It serializes to the edit
// endpoint's data document, carrying only touched components plus the
// wire format's explicit remove markers.
type Patch struct {
	EntityID       string
	Kind           types.EntityKind
	BaseRevisionID int64

	Labels       map[string]TermOp
	Descriptions map[string]TermOp
	Aliases      map[string]AliasesOp
	Statements   []StatementOp
	Sitelinks    map[string]SitelinkOp
}

func (p *Patch) IsEmpty() bool {
	return len(p.Labels) == 0 &&
		len(p.Descriptions) == 0 &&
		len(p.Aliases) == 0 &&
		len(p.Statements) == 0 &&
		len(p.Sitelinks) == 0
}

// Copy returns a shallow copy of the patch with its own op containers.
func (p *Patch) Copy() *Patch {
	cp := &Patch{
		EntityID:       p.EntityID,
		Kind:           p.Kind,
		BaseRevisionID: p.BaseRevisionID,
		Statements:     append([]StatementOp(nil), p.Statements...),
	}
	if p.Labels != nil {
		cp.Labels = map[string]TermOp{}
		for k, v := range p.Labels {
			cp.Labels[k] = v
		}
	}
	if p.Descriptions != nil {
		cp.Descriptions = map[string]TermOp{}
		for k, v := range p.Descriptions {
			cp.Descriptions[k] = v
		}
	}
	if p.Aliases != nil {
		cp.Aliases = map[string]AliasesOp{}
		for k, v := range p.Aliases {
			cp.Aliases[k] = v
		}
	}
	if p.Sitelinks != nil {
		cp.Sitelinks = map[string]SitelinkOp{}
		for k, v := range p.Sitelinks {
			cp.Sitelinks[k] = v
		}
	}
	return cp
}

type wireTermOp struct {
	Language string  `json:"language"`
	Value    string  `json:"value,omitempty"`
	Remove   *string `json:"remove,omitempty"`
}

type wireAliasTerm struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type wireStatementRemove struct {
	ID     string  `json:"id"`
	Remove *string `json:"remove"`
}

type wireSitelinkOp struct {
	Site   string   `json:"site"`
	Title  string   `json:"title,omitempty"`
	Badges []string `json:"badges,omitempty"`
	Remove *string  `json:"remove,omitempty"`
}

type wirePatch struct {
	Labels       map[string]wireTermOp       `json:"labels,omitempty"`
	Descriptions map[string]wireTermOp       `json:"descriptions,omitempty"`
	Aliases      map[string][]wireAliasTerm  `json:"aliases,omitempty"`
	Claims       []json.RawMessage           `json:"claims,omitempty"`
	Sitelinks    map[string]wireSitelinkOp   `json:"sitelinks,omitempty"`
}

var removeMarker = ""

// MarshalJSON emits the edit endpoint's data document. Encoding is
// deterministic, so an unchanged patch always yields the same bytes.
func (p *Patch) MarshalJSON() ([]byte, error) {
	doc := wirePatch{}

	if len(p.Labels) > 0 {
		doc.Labels = map[string]wireTermOp{}
		for lang, op := range p.Labels {
			doc.Labels[lang] = termOpWire(lang, op)
		}
	}

	if len(p.Descriptions) > 0 {
		doc.Descriptions = map[string]wireTermOp{}
		for lang, op := range p.Descriptions {
			doc.Descriptions[lang] = termOpWire(lang, op)
		}
	}

	if len(p.Aliases) > 0 {
		doc.Aliases = map[string][]wireAliasTerm{}
		for lang, op := range p.Aliases {
			terms := make([]wireAliasTerm, 0, len(op.Values))
			for _, v := range op.Values {
				terms = append(terms, wireAliasTerm{Language: lang, Value: v})
			}
			doc.Aliases[lang] = terms
		}
	}

	for _, op := range p.Statements {
		var raw []byte
		var err error

		if op.Remove {
			raw, err = json.Marshal(wireStatementRemove{ID: op.ID, Remove: &removeMarker})
		} else {
			raw, err = json.Marshal(op.Statement)
		}
		if err != nil {
			return nil, err
		}

		doc.Claims = append(doc.Claims, raw)
	}

	if len(p.Sitelinks) > 0 {
		doc.Sitelinks = map[string]wireSitelinkOp{}
		for site, op := range p.Sitelinks {
			if op.Remove {
				doc.Sitelinks[site] = wireSitelinkOp{Site: site, Remove: &removeMarker}
				continue
			}
			doc.Sitelinks[site] = wireSitelinkOp{
				Site:   op.Link.Site,
				Title:  op.Link.Title,
				Badges: op.Link.Badges,
			}
		}
	}

	return json.Marshal(doc)
}

func termOpWire(lang string, op TermOp) wireTermOp {
	if op.Remove {
		return wireTermOp{Language: lang, Remove: &removeMarker}
	}
	return wireTermOp{Language: lang, Value: op.Value}
}
