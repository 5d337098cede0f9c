package diff

import (
	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types/entities"
)

// Between computes the minimal patch that reproduces modified when
// applied to base. Between(e, e) is the empty patch. A nil base means
// the entity does not exist in the store yet, so everything present in
// modified becomes a set operation.
func Between(base, modified *entities.Entity) *Patch {
	p := &Patch{
		EntityID: modified.ID(),
		Kind:     modified.Kind(),
	}
	if base != nil {
		p.BaseRevisionID = base.LastRevisionID()
	}

	baseLabels := map[string]string{}
	baseDescriptions := map[string]string{}
	baseAliases := map[string][]string{}
	baseSitelinks := map[string]entities.Sitelink{}
	var baseStatements []*entities.Statement

	if base != nil {
		baseLabels = base.Labels()
		baseDescriptions = base.Descriptions()
		baseAliases = base.Aliases()
		baseSitelinks = base.Sitelinks()
		baseStatements = base.Statements()
	}

	p.Labels = termOps(baseLabels, modified.Labels())
	p.Descriptions = termOps(baseDescriptions, modified.Descriptions())
	p.Aliases = aliasOps(baseAliases, modified.Aliases())
	p.Statements = statementOps(baseStatements, modified.Statements())
	p.Sitelinks = sitelinkOps(baseSitelinks, modified.Sitelinks())

	return p
}

func termOps(base, modified map[string]string) map[string]TermOp {
	ops := map[string]TermOp{}

	for lang, value := range modified {
		if base[lang] != value {
			ops[lang] = TermOp{Value: value}
		}
	}
	for lang := range base {
		if _, ok := modified[lang]; !ok {
			ops[lang] = TermOp{Remove: true}
		}
	}

	if len(ops) == 0 {
		return nil
	}
	return ops
}

func aliasOps(base, modified map[string][]string) map[string]AliasesOp {
	ops := map[string]AliasesOp{}

	for lang, vals := range modified {
		baseVals, inBase := base[lang]
		if equalStrings(baseVals, vals) {
			continue
		}
		if len(vals) == 0 && !inBase {
			// clearing aliases that were never set changes nothing
			continue
		}
		ops[lang] = AliasesOp{Values: append([]string{}, vals...)}
	}

	for lang, vals := range base {
		if _, ok := modified[lang]; !ok && len(vals) > 0 {
			ops[lang] = AliasesOp{Values: []string{}}
		}
	}

	if len(ops) == 0 {
		return nil
	}
	return ops
}

func statementOps(base, modified []*entities.Statement) []StatementOp {
	var ops []StatementOp

	baseByID := map[string]*entities.Statement{}
	var baseAnonymous []*entities.Statement
	for _, st := range base {
		if st.ID() != "" {
			baseByID[st.ID()] = st
		} else {
			baseAnonymous = append(baseAnonymous, st)
		}
	}

	modifiedIDs := map[string]bool{}
	for _, st := range modified {
		if st.ID() != "" {
			modifiedIDs[st.ID()] = true

			if existing, ok := baseByID[st.ID()]; ok && existing.EquivalentTo(st) {
				continue
			}
			ops = append(ops, StatementOp{Statement: st.Copy(), ID: st.ID()})
			continue
		}

		// best-effort positional match for statements without an id
		matched := false
		for idx, candidate := range baseAnonymous {
			if candidate != nil && candidate.EquivalentTo(st) {
				baseAnonymous[idx] = nil
				matched = true
				break
			}
		}
		if !matched {
			ops = append(ops, StatementOp{Statement: st.Copy()})
		}
	}

	for _, st := range base {
		if st.ID() != "" && !modifiedIDs[st.ID()] {
			ops = append(ops, StatementOp{Remove: true, ID: st.ID()})
		}
	}

	return ops
}

func sitelinkOps(base, modified map[string]entities.Sitelink) map[string]SitelinkOp {
	ops := map[string]SitelinkOp{}

	for site, link := range modified {
		baseLink, ok := base[site]
		if ok && baseLink.Title == link.Title && equalStrings(baseLink.Badges, link.Badges) {
			continue
		}
		ops[site] = SitelinkOp{Link: link}
	}
	for site := range base {
		if _, ok := modified[site]; !ok {
			ops[site] = SitelinkOp{Remove: true}
		}
	}

	if len(ops) == 0 {
		return nil
	}
	return ops
}

// Apply replays a patch on top of a base entity and returns the result.
// Apply(base, Between(base, modified)) is structurally equal to
// modified. A nil base applies the patch to a fresh entity.
func Apply(base *entities.Entity, p *Patch) (*entities.Entity, error) {
	var result *entities.Entity
	var err error

	if base != nil {
		result = base.Copy()
	} else {
		result, err = entities.New(p.EntityID, p.Kind)
		if err != nil {
			return nil, err
		}
	}

	for lang, op := range p.Labels {
		if op.Remove {
			err = result.RemoveLabel(lang)
		} else {
			err = result.SetLabel(lang, op.Value)
		}
		if err != nil {
			return nil, err
		}
	}

	for lang, op := range p.Descriptions {
		if op.Remove {
			err = result.RemoveDescription(lang)
		} else {
			err = result.SetDescription(lang, op.Value)
		}
		if err != nil {
			return nil, err
		}
	}

	for lang, op := range p.Aliases {
		if err = result.SetAliases(lang, op.Values); err != nil {
			return nil, err
		}
	}

	for _, op := range p.Statements {
		if op.Remove {
			err = result.RemoveStatement(op.ID)
		} else {
			err = result.AddStatement(op.Statement.Copy())
		}
		if err != nil {
			return nil, err
		}
	}

	for site, op := range p.Sitelinks {
		if op.Remove {
			err = result.RemoveSitelink(site)
		} else {
			err = result.SetSitelink(op.Link)
		}
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// AppliedTo reports whether every operation of the patch is already
// reflected in the given entity state. It backs the idempotency check
// after a lost write confirmation.
func AppliedTo(p *Patch, current *entities.Entity) bool {
	for lang, op := range p.Labels {
		value, ok := current.Label(lang)
		if op.Remove == ok || (!op.Remove && value != op.Value) {
			return false
		}
	}

	for lang, op := range p.Descriptions {
		value, ok := current.Description(lang)
		if op.Remove == ok || (!op.Remove && value != op.Value) {
			return false
		}
	}

	for lang, op := range p.Aliases {
		if !equalStrings(current.AliasesFor(lang), op.Values) {
			return false
		}
	}

	statements := current.Statements()
	for _, op := range p.Statements {
		if op.Remove {
			if findByID(statements, op.ID) != nil {
				return false
			}
			continue
		}

		if op.ID != "" {
			existing := findByID(statements, op.ID)
			if existing == nil || !existing.EquivalentTo(op.Statement) {
				return false
			}
			continue
		}

		if !anyEquivalent(statements, op.Statement) {
			return false
		}
	}

	sitelinks := current.Sitelinks()
	for site, op := range p.Sitelinks {
		link, ok := sitelinks[site]
		if op.Remove {
			if ok {
				return false
			}
			continue
		}
		if !ok || link.Title != op.Link.Title || !equalStrings(link.Badges, op.Link.Badges) {
			return false
		}
	}

	return true
}

// Rebase carries a patch over from its old base onto a newer base
// revision. Operations whose target region the server left untouched
// survive unchanged; a region that diverged upstream is an unresolvable
// conflict and yields a ConflictError carrying both sides.
func Rebase(p *Patch, oldBase, newBase *entities.Entity) (*Patch, error) {
	rebased := p.Copy()
	rebased.BaseRevisionID = newBase.LastRevisionID()

	oldLabels, newLabels := baseTerms(oldBase, newBase, (*entities.Entity).Labels)
	for lang := range p.Labels {
		if oldLabels[lang] != newLabels[lang] {
			return nil, errors.NewConflictError(
				"label "+lang+" changed upstream", oldLabels[lang], newLabels[lang],
			)
		}
	}

	oldDescs, newDescs := baseTerms(oldBase, newBase, (*entities.Entity).Descriptions)
	for lang := range p.Descriptions {
		if oldDescs[lang] != newDescs[lang] {
			return nil, errors.NewConflictError(
				"description "+lang+" changed upstream", oldDescs[lang], newDescs[lang],
			)
		}
	}

	for lang := range p.Aliases {
		oldVals := baseAliases(oldBase, lang)
		newVals := baseAliases(newBase, lang)
		if !equalStrings(oldVals, newVals) {
			return nil, errors.NewConflictError(
				"aliases "+lang+" changed upstream", oldVals, newVals,
			)
		}
	}

	oldStatements := baseStatements(oldBase)
	newStatements := baseStatements(newBase)

	kept := rebased.Statements[:0]
	for _, op := range p.Statements {
		if op.ID == "" {
			// a brand new statement appends cleanly onto any base
			kept = append(kept, op)
			continue
		}

		oldSt := findByID(oldStatements, op.ID)
		newSt := findByID(newStatements, op.ID)

		if op.Remove {
			if newSt == nil {
				// already gone upstream, the removal is redundant
				continue
			}
			if oldSt != nil && !oldSt.EquivalentTo(newSt) {
				return nil, errors.NewConflictError(
					"statement "+op.ID+" changed upstream", oldSt, newSt,
				)
			}
			kept = append(kept, op)
			continue
		}

		switch {
		case oldSt == nil && newSt == nil:
			kept = append(kept, op)
		case oldSt != nil && newSt != nil && oldSt.EquivalentTo(newSt):
			kept = append(kept, op)
		default:
			return nil, errors.NewConflictError(
				"statement "+op.ID+" changed upstream", oldSt, newSt,
			)
		}
	}
	rebased.Statements = kept

	oldLinks := baseSitelinks(oldBase)
	newLinks := baseSitelinks(newBase)
	for site := range p.Sitelinks {
		oldLink, oldOK := oldLinks[site]
		newLink, newOK := newLinks[site]
		if oldOK != newOK || oldLink.Title != newLink.Title || !equalStrings(oldLink.Badges, newLink.Badges) {
			return nil, errors.NewConflictError(
				"sitelink "+site+" changed upstream", oldLink, newLink,
			)
		}
	}

	return rebased, nil
}

func baseTerms(oldBase, newBase *entities.Entity, get func(*entities.Entity) map[string]string) (map[string]string, map[string]string) {
	oldTerms := map[string]string{}
	newTerms := map[string]string{}
	if oldBase != nil {
		oldTerms = get(oldBase)
	}
	if newBase != nil {
		newTerms = get(newBase)
	}
	return oldTerms, newTerms
}

func baseAliases(e *entities.Entity, lang string) []string {
	if e == nil {
		return nil
	}
	return e.AliasesFor(lang)
}

func baseStatements(e *entities.Entity) []*entities.Statement {
	if e == nil {
		return nil
	}
	return e.Statements()
}

func baseSitelinks(e *entities.Entity) map[string]entities.Sitelink {
	if e == nil {
		return map[string]entities.Sitelink{}
	}
	return e.Sitelinks()
}

func findByID(statements []*entities.Statement, id string) *entities.Statement {
	for _, st := range statements {
		if st.ID() == id {
			return st
		}
	}
	return nil
}

func anyEquivalent(statements []*entities.Statement, target *entities.Statement) bool {
	for _, st := range statements {
		if st.EquivalentTo(target) {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
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
