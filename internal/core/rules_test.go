package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"openbis/pkg/domain"
)

// ruleView serves the lookups the rules need from fixed maps.
type ruleView struct {
	domain.TransactionView
	samples       map[string]domain.Sample
	experiments   map[string]domain.Experiment
	assignments   []domain.Assignment
	propertyTypes map[string]domain.PropertyType
}

func (v ruleView) FindSample(id string) (domain.Sample, bool) {
	s, ok := v.samples[id]
	return s, ok
}

func (v ruleView) FindExperiment(id string) (domain.Experiment, bool) {
	e, ok := v.experiments[id]
	return e, ok
}

func (v ruleView) ListAssignments(kind domain.EntityKind, typeID string) []domain.Assignment {
	var out []domain.Assignment
	for _, a := range v.assignments {
		if a.Kind == kind && a.EntityTypeID == typeID {
			out = append(out, a)
		}
	}
	return out
}

func (v ruleView) FindPropertyType(id string) (domain.PropertyType, bool) {
	pt, ok := v.propertyTypes[id]
	return pt, ok
}

func ptr(s string) *string { return &s }

func sample(id string, mutate func(*domain.Sample)) domain.Sample {
	s := domain.Sample{Base: domain.Base{ID: id}, Code: id, GroupID: ptr("g1"), TypeID: "well"}
	if mutate != nil {
		mutate(&s)
	}
	return s
}

func violationRules(res domain.Result) []string {
	out := make([]string, 0, len(res.Violations))
	for _, v := range res.Violations {
		out = append(out, v.Rule+":"+string(v.Severity)+":"+v.EntityID)
	}
	return out
}

func TestSampleHierarchyRule(t *testing.T) {
	a := sample("A", func(s *domain.Sample) { s.GeneratedFromID = ptr("B") })
	b := sample("B", func(s *domain.Sample) { s.GeneratedFromID = ptr("A") })
	c := sample("C", func(s *domain.Sample) { s.ContainerID = ptr("C") })
	shared := sample("S", func(s *domain.Sample) { s.GroupID = nil; s.ExperimentID = ptr("e1") })
	plain := sample("P", func(s *domain.Sample) { s.GeneratedFromID = ptr("B0") })
	view := ruleView{samples: map[string]domain.Sample{"A": a, "B": b, "C": c, "S": shared, "P": plain}}

	var changes []domain.Change
	for _, s := range []domain.Sample{a, c, shared, plain} {
		changes = append(changes, domain.Change{Entity: domain.RecordSample, Action: domain.ActionUpdate, After: s})
	}
	res, err := SampleHierarchyRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := []string{
		"sample_hierarchy:block:A",
		"sample_hierarchy:block:C",
		"sample_hierarchy:block:S",
	}
	if diff := cmp.Diff(want, violationRules(res)); diff != "" {
		t.Fatalf("violations (-want +got):\n%s", diff)
	}
}

func TestDataSetOwnershipRule(t *testing.T) {
	view := ruleView{
		experiments: map[string]domain.Experiment{"e1": {Base: domain.Base{ID: "e1"}}, "e2": {Base: domain.Base{ID: "e2"}}},
		samples: map[string]domain.Sample{
			"s1": sample("s1", func(s *domain.Sample) { s.ExperimentID = ptr("e1") }),
		},
	}
	dataSets := []domain.DataSet{
		{Base: domain.Base{ID: "ok"}, Code: "OK", ExperimentID: "e1", SampleID: ptr("s1")},
		{Base: domain.Base{ID: "other"}, Code: "OTHER", ExperimentID: "e2", SampleID: ptr("s1")},
		{Base: domain.Base{ID: "lost"}, Code: "LOST", ExperimentID: "e9"},
		{Base: domain.Base{ID: "nosample"}, Code: "NOSAMPLE", ExperimentID: "e1", SampleID: ptr("s9")},
		{Base: domain.Base{ID: "plain"}, Code: "PLAIN", ExperimentID: "e2"},
	}
	var changes []domain.Change
	for _, ds := range dataSets {
		changes = append(changes, domain.Change{Entity: domain.RecordDataSet, Action: domain.ActionCreate, After: ds})
	}
	res, err := DataSetOwnershipRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := []string{
		"data_set_ownership:block:other",
		"data_set_ownership:block:lost",
		"data_set_ownership:block:nosample",
	}
	if diff := cmp.Diff(want, violationRules(res)); diff != "" {
		t.Fatalf("violations (-want +got):\n%s", diff)
	}
	if !res.HasBlocking() {
		t.Fatalf("ownership violations must block")
	}
}

func TestMandatoryPropertiesRuleOnlyWarns(t *testing.T) {
	view := ruleView{
		assignments: []domain.Assignment{
			{Kind: domain.KindSample, EntityTypeID: "well", PropertyTypeID: "pt1", Mandatory: true},
			{Kind: domain.KindSample, EntityTypeID: "well", PropertyTypeID: "pt2"},
		},
		propertyTypes: map[string]domain.PropertyType{
			"pt1": {Base: domain.Base{ID: "pt1"}, Code: "CONCENTRATION"},
			"pt2": {Base: domain.Base{ID: "pt2"}, Code: "COMMENT"},
		},
	}
	filled := sample("filled", func(s *domain.Sample) {
		s.Properties = []domain.EntityProperty{{PropertyTypeCode: "CONCENTRATION", Value: "5"}}
	})
	empty := sample("empty", nil)
	changes := []domain.Change{
		{Entity: domain.RecordSample, Action: domain.ActionCreate, After: filled},
		{Entity: domain.RecordSample, Action: domain.ActionCreate, After: empty},
		{Entity: domain.RecordSample, Action: domain.ActionDelete, Before: empty},
	}
	res, err := MandatoryPropertiesRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if diff := cmp.Diff([]string{"mandatory_properties:warn:empty"}, violationRules(res)); diff != "" {
		t.Fatalf("violations (-want +got):\n%s", diff)
	}
	if res.HasBlocking() {
		t.Fatalf("missing mandatory properties must not block")
	}
}

func TestDefaultRulesEngineRegistersEveryRule(t *testing.T) {
	var names []string
	for _, r := range NewDefaultRulesEngine().Rules() {
		names = append(names, r.Name())
	}
	want := []string{"data_set_ownership", "sample_hierarchy", "mandatory_properties"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("rules (-want +got):\n%s", diff)
	}
}
