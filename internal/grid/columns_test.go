package grid

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"openbis/internal/infra/persistence/memory"
	"openbis/pkg/domain"
)

func TestSampleColumnsExport(t *testing.T) {
	store := memory.NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		inst, err := tx.CreateDatabaseInstance(domain.DatabaseInstance{Code: "DB", Home: true})
		if err != nil {
			return err
		}
		g, err := tx.CreateGroup(domain.Group{Code: "CISD", InstanceID: inst.ID})
		if err != nil {
			return err
		}
		plate, err := tx.CreateEntityType(domain.EntityType{Kind: domain.KindSample, Code: "PLATE"})
		if err != nil {
			return err
		}
		count, err := tx.CreatePropertyType(domain.PropertyType{Code: "COUNT", Label: "Count", DataType: domain.DataInteger})
		if err != nil {
			return err
		}
		if _, err := tx.CreateAssignment(domain.Assignment{Kind: domain.KindSample, EntityTypeID: plate.ID, PropertyTypeID: count.ID}); err != nil {
			return err
		}
		master, err := tx.CreateSample(domain.Sample{Code: "MASTER", TypeID: plate.ID, InstanceID: inst.ID})
		if err != nil {
			return err
		}
		_, err = tx.CreateSample(domain.Sample{
			Code: "P1", TypeID: plate.ID, InstanceID: inst.ID, GroupID: &g.ID, GeneratedFromID: &master.ID, PermID: "perm-1",
			Properties: []domain.EntityProperty{{PropertyTypeCode: "COUNT", Value: "7"}},
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		plate, _ := v.FindEntityTypeByCode(domain.KindSample, "PLATE")
		cols := SampleColumns(v, AssignedPropertyTypes(v, domain.KindSample, plate.ID))
		var keep []ColumnDef[domain.Sample]
		for _, c := range cols {
			switch c.Identifier {
			case "SAMPLE_IDENTIFIER", "IS_INSTANCE_SAMPLE", "GENERATED_FROM_PARENT", ColPermID, "property-COUNT":
				keep = append(keep, c)
			}
		}
		page, err := Apply(context.Background(), v.ListSamples(), keep, Criteria{Filters: map[string]string{"property-COUNT": "7"}})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		got := RenderTSV(page.Rows, keep, "\n")
		want := "Identifier\tShared?\tParent\tPerm ID\tCount\n" +
			"DB:/CISD/P1\tno\tDB:/MASTER\tperm-1\t7\n"
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("tsv mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}
