package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"openbis/pkg/domain"
)

func TestSnapshotEncodeDecodeBuckets(t *testing.T) {
	store := NewStore(nil)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		inst, err := tx.CreateDatabaseInstance(domain.DatabaseInstance{Code: "DB", Home: true})
		if err != nil {
			return err
		}
		_, err = tx.CreateGroup(domain.Group{Code: "CISD", InstanceID: inst.ID})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	enc, err := store.ExportState().Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(enc) != len(BucketNames) {
		t.Fatalf("expected %d buckets, got %d", len(BucketNames), len(enc))
	}

	var restored Snapshot
	for name, payload := range enc {
		if _, err := restored.DecodeBucket(name, payload); err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
	}
	if diff := cmp.Diff(store.ExportState(), restored, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if ok, err := restored.DecodeBucket("unknown", []byte(`{}`)); ok || err != nil {
		t.Fatalf("unknown bucket: ok=%v err=%v", ok, err)
	}
	if ok, err := restored.DecodeBucket("groups", nil); ok || err != nil {
		t.Fatalf("empty payload: ok=%v err=%v", ok, err)
	}
	if _, err := restored.DecodeBucket("groups", []byte("{")); err == nil || !strings.Contains(err.Error(), "decode groups") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDigestsPending(t *testing.T) {
	enc := Encoded{"groups": []byte(`{}`), "sequence": []byte(`1`)}
	d := Digests{}
	if diff := cmp.Diff([]string{"groups", "sequence"}, d.Pending(enc)); diff != "" {
		t.Fatalf("fresh digests (-want +got):\n%s", diff)
	}
	d.Record(enc, "groups")
	if diff := cmp.Diff([]string{"sequence"}, d.Pending(enc)); diff != "" {
		t.Fatalf("after record (-want +got):\n%s", diff)
	}
	d.Record(enc, "sequence")
	if got := d.Pending(enc); len(got) != 0 {
		t.Fatalf("expected nothing pending, got %v", got)
	}
	enc["sequence"] = []byte(`2`)
	if diff := cmp.Diff([]string{"sequence"}, d.Pending(enc)); diff != "" {
		t.Fatalf("after change (-want +got):\n%s", diff)
	}
}
