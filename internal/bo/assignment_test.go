package bo

import (
	"testing"

	"openbis/pkg/domain"
)

func TestEntityTypePropertyTypeBOCreateAssignment(t *testing.T) {
	w := newWorld(t)
	s1 := w.registerSample(t, NewSample{Identifier: "S1", SampleType: "MASTER_PLATE"})
	s2 := w.registerSample(t, NewSample{Identifier: "S2", SampleType: "MASTER_PLATE"})

	cases := []struct {
		name         string
		propertyType string
		entityType   string
		mandatory    bool
		defaultValue string
		want         string
	}{
		{"unknown property type", "NOPE", "MASTER_PLATE", false, "", "Property type 'NOPE' does not exist."},
		{"internal property type", "$PLATE_GEOMETRY", "MASTER_PLATE", false, "", "Property type '$PLATE_GEOMETRY' is managed internally."},
		{"unknown entity type", "COUNT", "NOPE", false, "", "Sample type 'NOPE' does not exist."},
		{"mandatory without initial value", "COUNT", "MASTER_PLATE", true, "",
			"Cannot create mandatory assignment. Please specify 'Initial Value', which will be used for 2 samples of type 'MASTER_PLATE' already existing in the database."},
		{"invalid default", "COUNT", "MASTER_PLATE", true, "many", "Integer value 'many' has improper format."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := w.run(func(tx domain.Transaction) error {
				return NewEntityTypePropertyTypeBO(tx, w.session, domain.KindSample).CreateAssignment(tc.propertyType, tc.entityType, tc.mandatory, tc.defaultValue)
			})
			expectUserFailure(t, err, tc.want)
		})
	}

	w.mustRun(t, func(tx domain.Transaction) error {
		return NewEntityTypePropertyTypeBO(tx, w.session, domain.KindSample).CreateAssignment("count", "master_plate", true, "7")
	})
	for _, id := range []string{s1.ID, s2.ID} {
		if v, _ := domain.PropertyValue(w.sample(t, id).Properties, "COUNT"); v != "7" {
			t.Fatalf("expected initial value on %s, got %q", id, v)
		}
	}
	err := w.run(func(tx domain.Transaction) error {
		return NewEntityTypePropertyTypeBO(tx, w.session, domain.KindSample).CreateAssignment("COUNT", "MASTER_PLATE", false, "")
	})
	expectUserFailure(t, err, "Property type 'COUNT' is already assigned to sample type 'MASTER_PLATE'.")
}

func TestEntityTypePropertyTypeBOUpdateAndDelete(t *testing.T) {
	w := newWorld(t)
	w.assign(t, domain.KindSample, "MASTER_PLATE", false, "DESCRIPTION")
	with := w.registerSample(t, NewSample{Identifier: "WITH", SampleType: "MASTER_PLATE", Properties: []PropertyValue{{Code: "DESCRIPTION", Value: "kept"}}})
	without := w.registerSample(t, NewSample{Identifier: "WITHOUT", SampleType: "MASTER_PLATE"})

	w.mustRun(t, func(tx domain.Transaction) error {
		b := NewEntityTypePropertyTypeBO(tx, w.session, domain.KindSample)
		if _, err := b.LoadedAssignment(); err == nil || err.Error() != "No assignment loaded." {
			t.Fatalf("expected no assignment loaded, got %v", err)
		}
		return nil
	})

	err := w.run(func(tx domain.Transaction) error {
		b := NewEntityTypePropertyTypeBO(tx, w.session, domain.KindSample)
		if err := b.LoadAssignment("DESCRIPTION", "MASTER_PLATE"); err != nil {
			return err
		}
		return b.UpdateLoadedAssignment(true, "")
	})
	expectUserFailure(t, err, "Please specify 'Update Value', which will be used for 1 sample of type 'MASTER_PLATE'")

	w.mustRun(t, func(tx domain.Transaction) error {
		b := NewEntityTypePropertyTypeBO(tx, w.session, domain.KindSample)
		if err := b.LoadAssignment("DESCRIPTION", "MASTER_PLATE"); err != nil {
			return err
		}
		return b.UpdateLoadedAssignment(true, "filled")
	})
	if v, _ := domain.PropertyValue(w.sample(t, with.ID).Properties, "DESCRIPTION"); v != "kept" {
		t.Fatalf("existing value overwritten: %q", v)
	}
	if v, _ := domain.PropertyValue(w.sample(t, without.ID).Properties, "DESCRIPTION"); v != "filled" {
		t.Fatalf("expected update value, got %q", v)
	}

	w.mustRun(t, func(tx domain.Transaction) error {
		b := NewEntityTypePropertyTypeBO(tx, w.session, domain.KindSample)
		if err := b.LoadAssignment("DESCRIPTION", "MASTER_PLATE"); err != nil {
			return err
		}
		a, err := b.LoadedAssignment()
		if err != nil {
			return err
		}
		if !a.Mandatory || a.Ordinal != 1 {
			t.Fatalf("unexpected assignment %+v", a)
		}
		return b.DeleteLoadedAssignment()
	})
	if _, ok := domain.PropertyValue(w.sample(t, with.ID).Properties, "DESCRIPTION"); ok {
		t.Fatalf("expected property values to be removed with the assignment")
	}
}
