package catalog

import (
	"context"
	"sort"
)

// memoryCatalog is immutable after construction.
type memoryCatalog struct {
	activities map[Kind]map[string]Activity
	parts      map[string][]Part     // listening activity id -> parts
	questions  map[string][]Question // activity id -> questions, display order
}

// NewMemoryCatalog serves b from memory. Positions default to fixture order.
func NewMemoryCatalog(b Bundle) Catalog {
	m := &memoryCatalog{
		activities: map[Kind]map[string]Activity{},
		parts:      map[string][]Part{},
		questions:  map[string][]Question{},
	}
	for _, k := range Kinds {
		m.activities[k] = map[string]Activity{}
	}
	put := func(kind Kind, a Activity) {
		a.Kind = kind
		m.activities[kind][a.ID] = a
	}

	for _, la := range b.Listening {
		put(Listening, la.Activity)
		parts := make([]PartFixture, len(la.Parts))
		copy(parts, la.Parts)
		for i := range parts {
			if parts[i].Position == 0 {
				parts[i].Position = i + 1
			}
		}
		sort.SliceStable(parts, func(i, j int) bool { return parts[i].Position < parts[j].Position })
		for _, p := range parts {
			p.ActivityID = la.ID
			m.parts[la.ID] = append(m.parts[la.ID], p.Part)
			for _, q := range ordered(p.Questions) {
				q.ActivityID, q.PartID = la.ID, p.ID
				m.questions[la.ID] = append(m.questions[la.ID], q)
			}
		}
	}
	for _, ra := range b.Reading {
		put(Reading, ra.Activity)
		for _, q := range ordered(ra.Questions) {
			q.ActivityID = ra.ID
			m.questions[ra.ID] = append(m.questions[ra.ID], q)
		}
	}
	for _, sa := range b.Speaking {
		put(Speaking, sa.Activity)
		for _, q := range ordered(sa.Questions) {
			q.ActivityID, q.Correct, q.Options = sa.ID, "", nil
			m.questions[sa.ID] = append(m.questions[sa.ID], q)
		}
	}
	for _, wa := range b.Writing {
		put(Writing, wa)
	}
	return m
}

func ordered(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	for i := range out {
		if out[i].Position == 0 {
			out[i].Position = i + 1
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m *memoryCatalog) Activity(_ context.Context, kind Kind, id string) (Activity, error) {
	a, ok := m.activities[kind][id]
	if !ok {
		return Activity{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryCatalog) Parts(_ context.Context, activityID string) ([]Part, error) {
	return append([]Part(nil), m.parts[activityID]...), nil
}

func (m *memoryCatalog) Questions(_ context.Context, kind Kind, activityID string) ([]Question, error) {
	if _, ok := m.activities[kind][activityID]; !ok {
		return nil, nil
	}
	return append([]Question(nil), m.questions[activityID]...), nil
}

func (m *memoryCatalog) CountQuestions(ctx context.Context, kind Kind, activityID string) (int, error) {
	qs, err := m.Questions(ctx, kind, activityID)
	return len(qs), err
}
