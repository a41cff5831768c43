package gen

import (
	"github.com/pkg/errors"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// termSink resolves or mints the scale-term taxonomy entries generated
// tokens are classified under. It works on copies: the caller's taxonomy
// slice is never mutated, new and updated taxonomies come back as data.
type termSink struct {
	wantedID string
	target   tokens.Taxonomy
	isNew    bool
	found    bool
	changed  bool
}

func newTermSink(tg *tokens.TokenGeneration, taxonomies []tokens.Taxonomy) *termSink {
	sink := &termSink{wantedID: tg.TaxonomyID}

	if tg.NewTaxonomyName != "" {
		sink.isNew = true
		sink.found = true
		sink.target = tokens.Taxonomy{
			ID:   deterministicID("taxonomy", tg.NewTaxonomyName),
			Name: tg.NewTaxonomyName,
		}
		return sink
	}

	for _, tax := range taxonomies {
		if tax.ID == tg.TaxonomyID {
			sink.found = true
			sink.target = tokens.Taxonomy{
				ID:          tax.ID,
				Name:        tax.Name,
				Description: tax.Description,
				Terms:       append([]tokens.TaxonomyTerm{}, tax.Terms...),
			}
			break
		}
	}
	return sink
}

// ensure returns the term ref for a scale label, minting the term (and
// recording the taxonomy as changed) when it does not exist yet.
func (sink *termSink) ensure(label string) (tokens.TaxonomyRef, error) {
	if !sink.found {
		return tokens.TaxonomyRef{}, errors.Wrapf(tokens.ErrNoTaxonomy, "taxonomy %q not found", sink.wantedID)
	}
	for _, term := range sink.target.Terms {
		if term.Name == label {
			return tokens.TaxonomyRef{TaxonomyID: sink.target.ID, TermID: term.ID}, nil
		}
	}
	term := tokens.TaxonomyTerm{
		ID:   deterministicID("term", sink.target.ID, label),
		Name: label,
	}
	sink.target.Terms = append(sink.target.Terms, term)
	sink.changed = true
	return tokens.TaxonomyRef{TaxonomyID: sink.target.ID, TermID: term.ID}, nil
}

func (sink *termSink) created() []tokens.Taxonomy {
	if sink.isNew && len(sink.target.Terms) > 0 {
		return []tokens.Taxonomy{sink.target}
	}
	return nil
}

func (sink *termSink) updated() []tokens.Taxonomy {
	if !sink.isNew && sink.changed {
		return []tokens.Taxonomy{sink.target}
	}
	return nil
}
