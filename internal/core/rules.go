package core

import (
	"context"
	"fmt"

	"openbis/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in integrity
// rules.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(DataSetOwnershipRule())
	engine.Register(SampleHierarchyRule())
	engine.Register(MandatoryPropertiesRule())
	return engine
}

// DataSetOwnershipRule blocks data sets whose sample belongs to another
// experiment than the data set itself.
func DataSetOwnershipRule() domain.Rule { return dataSetOwnershipRule{} }

type dataSetOwnershipRule struct{}

func (dataSetOwnershipRule) Name() string { return "data_set_ownership" }

func (r dataSetOwnershipRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, ch := range changes {
		ds, ok := ch.After.(domain.DataSet)
		if !ok || ch.Entity != domain.RecordDataSet {
			continue
		}
		if _, ok := view.FindExperiment(ds.ExperimentID); !ok {
			res.Violations = append(res.Violations, r.violation(ds, fmt.Sprintf("data set %s references missing experiment %s", ds.Code, ds.ExperimentID)))
			continue
		}
		if ds.SampleID == nil {
			continue
		}
		smp, ok := view.FindSample(*ds.SampleID)
		if !ok {
			res.Violations = append(res.Violations, r.violation(ds, fmt.Sprintf("data set %s references missing sample %s", ds.Code, *ds.SampleID)))
			continue
		}
		if smp.ExperimentID == nil || *smp.ExperimentID != ds.ExperimentID {
			res.Violations = append(res.Violations, r.violation(ds, fmt.Sprintf("data set %s and its sample %s belong to different experiments", ds.Code, smp.Code)))
		}
	}
	return res, nil
}

func (r dataSetOwnershipRule) violation(ds domain.DataSet, message string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.RecordDataSet,
		EntityID: ds.ID,
	}
}

// SampleHierarchyRule blocks cycles in the generated-from and container
// chains of changed samples and shared samples attached to experiments.
func SampleHierarchyRule() domain.Rule { return sampleHierarchyRule{} }

type sampleHierarchyRule struct{}

func (sampleHierarchyRule) Name() string { return "sample_hierarchy" }

func (r sampleHierarchyRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, ch := range changes {
		smp, ok := ch.After.(domain.Sample)
		if !ok || ch.Entity != domain.RecordSample {
			continue
		}
		if smp.Shared() && smp.ExperimentID != nil {
			res.Violations = append(res.Violations, r.violation(smp, fmt.Sprintf("shared sample %s cannot belong to an experiment", smp.Code)))
		}
		if loops(view, smp, func(s domain.Sample) *string { return s.GeneratedFromID }) {
			res.Violations = append(res.Violations, r.violation(smp, fmt.Sprintf("sample %s is derived from itself", smp.Code)))
		}
		if loops(view, smp, func(s domain.Sample) *string { return s.ContainerID }) {
			res.Violations = append(res.Violations, r.violation(smp, fmt.Sprintf("sample %s contains itself", smp.Code)))
		}
	}
	return res, nil
}

// loops follows next from start and reports whether it returns to a sample
// already visited.
func loops(view domain.RuleView, start domain.Sample, next func(domain.Sample) *string) bool {
	seen := map[string]bool{start.ID: true}
	current := start
	for {
		id := next(current)
		if id == nil {
			return false
		}
		if seen[*id] {
			return true
		}
		seen[*id] = true
		s, ok := view.FindSample(*id)
		if !ok {
			return false
		}
		current = s
	}
}

func (r sampleHierarchyRule) violation(s domain.Sample, message string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.RecordSample,
		EntityID: s.ID,
	}
}

// MandatoryPropertiesRule warns about changed entities lacking a value for a
// mandatory property of their type.
func MandatoryPropertiesRule() domain.Rule { return mandatoryPropertiesRule{} }

type mandatoryPropertiesRule struct{}

func (mandatoryPropertiesRule) Name() string { return "mandatory_properties" }

func (r mandatoryPropertiesRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, ch := range changes {
		var (
			kind   domain.EntityKind
			id     string
			code   string
			typeID string
			props  []domain.EntityProperty
		)
		switch v := ch.After.(type) {
		case domain.Experiment:
			kind, id, code, typeID, props = domain.KindExperiment, v.ID, v.Code, v.TypeID, v.Properties
		case domain.Sample:
			kind, id, code, typeID, props = domain.KindSample, v.ID, v.Code, v.TypeID, v.Properties
		case domain.Material:
			kind, id, code, typeID, props = domain.KindMaterial, v.ID, v.Code, v.TypeID, v.Properties
		case domain.DataSet:
			kind, id, code, typeID, props = domain.KindDataSet, v.ID, v.Code, v.TypeID, v.Properties
		default:
			continue
		}
		for _, a := range view.ListAssignments(kind, typeID) {
			if !a.Mandatory {
				continue
			}
			pt, ok := view.FindPropertyType(a.PropertyTypeID)
			if !ok {
				continue
			}
			if v, ok := domain.PropertyValue(props, pt.Code); ok && v != "" {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("%s %s lacks mandatory property %s", kind.Label(), code, pt.Code),
				Entity:   ch.Entity,
				EntityID: id,
			})
		}
	}
	return res, nil
}
