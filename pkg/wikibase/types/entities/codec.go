package entities

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types"
	"github.com/knowbase/wikibase/pkg/wikibase/types/values"
)

// NewFromJSON decodes a wire entity document, e.g. the body returned by
// the store for a single entity. The decoded state becomes the
// entity's base snapshot.
func NewFromJSON(body []byte) (*Entity, error) {
	e := &Entity{}
	if err := e.UnmarshalJSON(body); err != nil {
		return nil, err
	}

	snapshot := e.Copy()
	snapshot.base = nil
	e.base = snapshot

	return e, nil
}

type wireTerm struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type wireSitelink struct {
	Site   string   `json:"site"`
	Title  string   `json:"title"`
	Badges []string `json:"badges"`
}

type wireSnak struct {
	SnakType  string          `json:"snaktype"`
	Property  string          `json:"property"`
	Datatype  string          `json:"datatype,omitempty"`
	DataValue types.DataValue `json:"datavalue,omitempty"`
}

type wireSnakIn struct {
	SnakType  string          `json:"snaktype"`
	Property  string          `json:"property"`
	Datatype  string          `json:"datatype"`
	DataValue json.RawMessage `json:"datavalue"`
}

type wireReference struct {
	Hash       string                `json:"hash,omitempty"`
	Snaks      map[string][]wireSnak `json:"snaks"`
	SnaksOrder []string              `json:"snaks-order"`
}

type wireReferenceIn struct {
	Hash       string                  `json:"hash"`
	Snaks      map[string][]wireSnakIn `json:"snaks"`
	SnaksOrder []string                `json:"snaks-order"`
}

type wireStatement struct {
	ID              string                `json:"id,omitempty"`
	MainSnak        wireSnak              `json:"mainsnak"`
	Type            string                `json:"type"`
	Qualifiers      map[string][]wireSnak `json:"qualifiers,omitempty"`
	QualifiersOrder []string              `json:"qualifiers-order,omitempty"`
	References      []wireReference       `json:"references,omitempty"`
	Rank            string                `json:"rank"`
}

type wireStatementIn struct {
	ID              string                  `json:"id"`
	MainSnak        *wireSnakIn             `json:"mainsnak"`
	Qualifiers      map[string][]wireSnakIn `json:"qualifiers"`
	QualifiersOrder []string                `json:"qualifiers-order"`
	References      []wireReferenceIn       `json:"references"`
	Rank            string                  `json:"rank"`
}

type wireEntity struct {
	ID           string                     `json:"id,omitempty"`
	Type         string                     `json:"type"`
	Labels       map[string]wireTerm        `json:"labels,omitempty"`
	Descriptions map[string]wireTerm        `json:"descriptions,omitempty"`
	Aliases      map[string][]wireTerm      `json:"aliases,omitempty"`
	Claims       map[string][]wireStatement `json:"claims,omitempty"`
	Sitelinks    map[string]wireSitelink    `json:"sitelinks,omitempty"`
	LastRevID    int64                      `json:"lastrevid,omitempty"`
}

type wireEntityIn struct {
	ID           string                       `json:"id"`
	Type         string                       `json:"type"`
	Missing      *string                      `json:"missing"`
	Labels       map[string]wireTerm          `json:"labels"`
	Descriptions map[string]wireTerm          `json:"descriptions"`
	Aliases      map[string][]wireTerm        `json:"aliases"`
	Claims       map[string][]wireStatementIn `json:"claims"`
	Sitelinks    map[string]wireSitelink      `json:"sitelinks"`
	LastRevID    int64                        `json:"lastrevid"`
}

// MarshalJSON emits the entity in canonical wire form. Output is
// deterministic: the same entity always serializes to the same bytes.
func (e *Entity) MarshalJSON() ([]byte, error) {
	doc := wireEntity{
		ID:        e.id,
		Type:      string(e.kind),
		LastRevID: e.lastRevID,
	}

	if len(e.labels) > 0 {
		doc.Labels = map[string]wireTerm{}
		for lang, value := range e.labels {
			doc.Labels[lang] = wireTerm{Language: lang, Value: value}
		}
	}

	if len(e.descriptions) > 0 {
		doc.Descriptions = map[string]wireTerm{}
		for lang, value := range e.descriptions {
			doc.Descriptions[lang] = wireTerm{Language: lang, Value: value}
		}
	}

	if len(e.aliases) > 0 {
		doc.Aliases = map[string][]wireTerm{}
		for lang, vals := range e.aliases {
			terms := make([]wireTerm, 0, len(vals))
			for _, v := range vals {
				terms = append(terms, wireTerm{Language: lang, Value: v})
			}
			doc.Aliases[lang] = terms
		}
	}

	if len(e.statements) > 0 {
		doc.Claims = map[string][]wireStatement{}
		for _, st := range e.statements {
			doc.Claims[st.Property()] = append(doc.Claims[st.Property()], st.wire())
		}
	}

	if len(e.sitelinks) > 0 {
		doc.Sitelinks = map[string]wireSitelink{}
		for site, link := range e.sitelinks {
			badges := link.Badges
			if badges == nil {
				badges = []string{}
			}
			doc.Sitelinks[site] = wireSitelink{Site: link.Site, Title: link.Title, Badges: badges}
		}
	}

	return json.Marshal(doc)
}

// MarshalJSON emits the statement in canonical wire form.
func (s *Statement) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wire())
}

func (s *Statement) wire() wireStatement {
	w := wireStatement{
		ID:       s.id,
		MainSnak: s.mainSnak.wire(),
		Type:     "statement",
		Rank:     string(s.rank),
	}

	if len(s.qualifiers) > 0 {
		w.Qualifiers = map[string][]wireSnak{}
		for _, q := range s.qualifiers {
			w.Qualifiers[q.Property] = append(w.Qualifiers[q.Property], q.wire())
		}
		w.QualifiersOrder = append([]string(nil), s.qualifiersOrder...)
	}

	for _, r := range s.references {
		wr := wireReference{
			Hash:       r.hash,
			Snaks:      map[string][]wireSnak{},
			SnaksOrder: append([]string{}, r.snaksOrder...),
		}
		for _, snak := range r.snaks {
			wr.Snaks[snak.Property] = append(wr.Snaks[snak.Property], snak.wire())
		}
		w.References = append(w.References, wr)
	}

	return w
}

func (s Snak) wire() wireSnak {
	return wireSnak{
		SnakType:  string(s.SnakType),
		Property:  s.Property,
		Datatype:  s.Datatype,
		DataValue: s.DataValue,
	}
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var doc wireEntityIn
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.NewDecodeError("entity", err.Error())
	}

	if doc.Missing != nil {
		return errors.NewNotFoundError("entity " + doc.ID + " does not exist")
	}

	kind := types.EntityKind(doc.Type)
	if !kind.Valid() {
		return errors.NewDecodeError("entity.type", doc.Type)
	}
	if doc.ID == "" {
		return errors.NewDecodeError("entity.id", "missing")
	}
	if !kind.ValidID(doc.ID) {
		return errors.NewDecodeError("entity.id", doc.ID+" does not match type "+doc.Type)
	}
	if len(doc.Sitelinks) > 0 && kind != types.KindItem {
		return errors.NewDecodeError("entity.sitelinks", "present on "+doc.Type)
	}

	e.id = doc.ID
	e.kind = kind
	e.lastRevID = doc.LastRevID
	e.labels = map[string]string{}
	e.descriptions = map[string]string{}
	e.aliases = map[string][]string{}
	e.statements = nil
	e.sitelinks = map[string]Sitelink{}

	for lang, term := range doc.Labels {
		if term.Value == "" {
			return errors.NewDecodeError(fmt.Sprintf("entity.labels.%s", lang), "missing value")
		}
		e.labels[lang] = term.Value
	}

	for lang, term := range doc.Descriptions {
		if term.Value == "" {
			return errors.NewDecodeError(fmt.Sprintf("entity.descriptions.%s", lang), "missing value")
		}
		e.descriptions[lang] = term.Value
	}

	for lang, terms := range doc.Aliases {
		vals := make([]string, 0, len(terms))
		for _, term := range terms {
			vals = append(vals, term.Value)
		}
		e.aliases[lang] = vals
	}

	// group order on the wire is a JSON object, so groups are walked in
	// sorted property order to keep decoding deterministic
	for _, property := range sortedKeys(doc.Claims) {
		if !types.IsPropertyID(property) {
			return errors.NewDecodeError("entity.claims", "bad property id "+property)
		}

		for idx, ws := range doc.Claims[property] {
			st, err := decodeStatement(ws, fmt.Sprintf("entity.claims.%s[%d]", property, idx))
			if err != nil {
				return err
			}
			if st.Property() != property {
				return errors.NewDecodeError(
					fmt.Sprintf("entity.claims.%s[%d].mainsnak.property", property, idx),
					"group key mismatch: "+st.Property(),
				)
			}
			e.statements = append(e.statements, st)
		}
	}

	for site, link := range doc.Sitelinks {
		if link.Title == "" {
			return errors.NewDecodeError(fmt.Sprintf("entity.sitelinks.%s", site), "missing title")
		}
		if link.Site == "" {
			link.Site = site
		}
		e.sitelinks[site] = Sitelink{Site: link.Site, Title: link.Title, Badges: link.Badges}
	}

	return nil
}

func decodeStatement(ws wireStatementIn, path string) (*Statement, error) {
	if ws.MainSnak == nil {
		return nil, errors.NewDecodeError(path+".mainsnak", "missing")
	}

	mainSnak, err := decodeSnak(*ws.MainSnak, path+".mainsnak")
	if err != nil {
		return nil, err
	}

	rank := types.RankNormal
	if ws.Rank != "" {
		rank = types.Rank(ws.Rank)
		if !rank.Valid() {
			return nil, errors.NewDecodeError(path+".rank", ws.Rank)
		}
	}

	st := &Statement{
		id:       ws.ID,
		mainSnak: mainSnak,
		rank:     rank,
	}

	st.qualifiers, st.qualifiersOrder, err = decodeSnakGroups(
		ws.Qualifiers, ws.QualifiersOrder, path+".qualifiers",
	)
	if err != nil {
		return nil, err
	}

	for idx, wr := range ws.References {
		refPath := fmt.Sprintf("%s.references[%d]", path, idx)

		snaks, order, err := decodeSnakGroups(wr.Snaks, wr.SnaksOrder, refPath+".snaks")
		if err != nil {
			return nil, err
		}
		if len(snaks) == 0 {
			return nil, errors.NewDecodeError(refPath+".snaks", "empty")
		}

		st.references = append(st.references, Reference{
			hash:       wr.Hash,
			snaks:      snaks,
			snaksOrder: order,
		})
	}

	return st, nil
}

// decodeSnakGroups turns a property-grouped snak map plus its order
// array into a flat ordered snak slice. The order array must name
// exactly the property ids present among the groups; when the wire
// omits it, sorted property order is used.
func decodeSnakGroups(groups map[string][]wireSnakIn, order []string, path string) ([]Snak, []string, error) {
	if len(groups) == 0 {
		if len(order) > 0 {
			return nil, nil, errors.NewDecodeError(path+"-order", "names properties without snaks")
		}
		return nil, nil, nil
	}

	if order == nil {
		order = sortedKeys(groups)
	}

	if len(order) != len(groups) {
		return nil, nil, errors.NewDecodeError(path+"-order", "does not match present properties")
	}
	for _, property := range order {
		group, ok := groups[property]
		if !ok {
			return nil, nil, errors.NewDecodeError(path+"-order", "names absent property "+property)
		}
		if len(group) == 0 {
			return nil, nil, errors.NewDecodeError(path+"."+property, "empty snak group")
		}
	}

	var snaks []Snak
	for _, property := range order {
		for idx, ws := range groups[property] {
			snak, err := decodeSnak(ws, fmt.Sprintf("%s.%s[%d]", path, property, idx))
			if err != nil {
				return nil, nil, err
			}
			if snak.Property != property {
				return nil, nil, errors.NewDecodeError(
					fmt.Sprintf("%s.%s[%d].property", path, property, idx),
					"group key mismatch: "+snak.Property,
				)
			}
			snaks = append(snaks, snak)
		}
	}

	return snaks, append([]string(nil), order...), nil
}

func decodeSnak(ws wireSnakIn, path string) (Snak, error) {
	snakType := types.SnakType(ws.SnakType)
	if !snakType.Valid() {
		return Snak{}, errors.NewDecodeError(path+".snaktype", ws.SnakType)
	}
	if !types.IsPropertyID(ws.Property) {
		return Snak{}, errors.NewDecodeError(path+".property", ws.Property)
	}

	snak := Snak{
		SnakType: snakType,
		Property: ws.Property,
		Datatype: ws.Datatype,
	}

	if snakType == types.SnakValue {
		if len(ws.DataValue) == 0 {
			return Snak{}, errors.NewDecodeError(path+".datavalue", "missing for snaktype value")
		}
		value, err := values.UnmarshalV(ws.DataValue)
		if err != nil {
			return Snak{}, err
		}
		snak.DataValue = value
	} else if len(ws.DataValue) > 0 {
		return Snak{}, errors.NewDecodeError(path+".datavalue", "present for snaktype "+ws.SnakType)
	}

	return snak, nil
}
