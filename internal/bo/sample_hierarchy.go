package bo

import (
	"openbis/pkg/domain"
)

// SampleHierarchy is a sample with its ancestors, nearest first, limited
// to the depths configured on its sample type.
type SampleHierarchy struct {
	Sample        domain.Sample
	GeneratedFrom []domain.Sample
	Containers    []domain.Sample
}

// SampleParentWithDerived is a sample hierarchy plus the samples generated from it.
type SampleParentWithDerived struct {
	Parent  SampleHierarchy
	Derived []domain.Sample
}

// LoadSampleHierarchy follows generated-from and container links of s.
func LoadSampleHierarchy(view domain.TransactionView, s domain.Sample) SampleHierarchy {
	h := SampleHierarchy{Sample: s}
	t, ok := view.FindEntityType(s.TypeID)
	if !ok {
		return h
	}
	h.GeneratedFrom = chain(view, s, t.GeneratedFromDepth, func(x domain.Sample) *string { return x.GeneratedFromID })
	h.Containers = chain(view, s, t.ContainerDepth, func(x domain.Sample) *string { return x.ContainerID })
	return h
}

func chain(view domain.TransactionView, s domain.Sample, depth int, next func(domain.Sample) *string) []domain.Sample {
	var out []domain.Sample
	seen := map[string]bool{s.ID: true}
	cur := s
	for i := 0; i < depth; i++ {
		id := next(cur)
		if id == nil || seen[*id] {
			break
		}
		parent, ok := view.FindSample(*id)
		if !ok {
			break
		}
		seen[parent.ID] = true
		out = append(out, parent)
		cur = parent
	}
	return out
}

// GetSampleInfo loads the hierarchy of a sample and the samples derived from it.
func GetSampleInfo(view domain.TransactionView, sampleID string) (SampleParentWithDerived, error) {
	s, ok := view.FindSample(sampleID)
	if !ok {
		return SampleParentWithDerived{}, domain.ErrNotFound{Entity: domain.RecordSample, ID: sampleID}
	}
	return SampleParentWithDerived{
		Parent:  LoadSampleHierarchy(view, s),
		Derived: view.ListSamplesGeneratedFrom(s.ID),
	}, nil
}
