package query

// Projection rewrites returned payloads to a subset of their top-level
// fields. Include and Exclude are mutually exclusive; if both are empty the
// payload passes through unchanged.
type Projection struct {
	Include []string
	Exclude []string
}

func (proj *Projection) apply(payload any) any {
	if proj == nil {
		return payload
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return payload
	}

	if len(proj.Include) > 0 {
		out := make(map[string]any, len(proj.Include))
		for _, f := range proj.Include {
			if v, ok := m[f]; ok {
				out[f] = v
			}
		}
		return out
	}

	if len(proj.Exclude) > 0 {
		excluded := make(map[string]struct{}, len(proj.Exclude))
		for _, f := range proj.Exclude {
			excluded[f] = struct{}{}
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			if _, skip := excluded[k]; !skip {
				out[k] = v
			}
		}
		return out
	}

	return payload
}

func projectAll(docs []DocumentView, proj *Projection) []DocumentView {
	if proj == nil {
		return docs
	}
	out := make([]DocumentView, len(docs))
	for i, d := range docs {
		out[i] = DocumentView{ID: d.ID, Payload: proj.apply(d.Payload)}
	}
	return out
}
