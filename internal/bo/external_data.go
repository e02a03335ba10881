package bo

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"openbis/internal/datastore"
	"openbis/pkg/domain"
)

// Upload comment layout.
const (
	UploadCommentText      = "Uploaded zip file contains the following data sets:"
	UploadCommentNewLine   = "\n"
	UploadCommentAndMore   = "and %d more."
	MaxUploadCommentLength = 1000
)

// ExternalDataTable loads data sets from a view and plans the calls to the
// data store servers holding their files.
type ExternalDataTable struct {
	view     domain.TransactionView
	factory  datastore.Factory
	dataSets []domain.DataSet
	loaded   bool
}

// NewExternalDataTable constructs an ExternalDataTable.
func NewExternalDataTable(view domain.TransactionView, factory datastore.Factory) *ExternalDataTable {
	return &ExternalDataTable{view: view, factory: factory}
}

// LoadBySampleID loads the data sets of a sample.
func (t *ExternalDataTable) LoadBySampleID(sampleID string) error {
	if sampleID == "" {
		return fmt.Errorf("unspecified sample id")
	}
	t.dataSets, t.loaded = t.view.ListDataSetsBySample(sampleID), true
	return nil
}

// LoadByExperimentID loads the data sets of an experiment.
func (t *ExternalDataTable) LoadByExperimentID(experimentID string) error {
	if experimentID == "" {
		return fmt.Errorf("unspecified experiment id")
	}
	t.dataSets, t.loaded = t.view.ListDataSetsByExperiment(experimentID), true
	return nil
}

// LoadByDataSetCodes loads data sets by code. Unknown codes are skipped.
func (t *ExternalDataTable) LoadByDataSetCodes(codes []string) {
	t.dataSets = t.dataSets[:0:0]
	for _, code := range codes {
		if ds, ok := t.view.FindDataSetByCode(domain.NormalizeCode(code)); ok {
			t.dataSets = append(t.dataSets, ds)
		}
	}
	t.loaded = true
}

// DataSets returns the loaded data sets.
func (t *ExternalDataTable) DataSets() ([]domain.DataSet, error) {
	if !t.loaded {
		return nil, fmt.Errorf("external data not loaded")
	}
	out := make([]domain.DataSet, len(t.dataSets))
	copy(out, t.dataSets)
	return out, nil
}

// Plan groups the loaded data sets by the data store holding them.
func (t *ExternalDataTable) Plan() (*DataStoreCalls, error) {
	dataSets, err := t.DataSets()
	if err != nil {
		return nil, err
	}
	c := &DataStoreCalls{factory: t.factory, dataSets: dataSets}
	index := map[string]int{}
	for _, ds := range dataSets {
		store, ok := t.view.FindDataStore(ds.DataStoreID)
		if !ok {
			return nil, domain.ErrNotFound{Entity: domain.RecordDataStore, ID: ds.DataStoreID}
		}
		if store.RemoteURL == "" {
			c.local = append(c.local, ds)
			continue
		}
		i, seen := index[store.ID]
		if !seen {
			i = len(c.groups)
			index[store.ID] = i
			c.groups = append(c.groups, storeGroup{store: store})
		}
		c.groups[i].dataSets = append(c.groups[i].dataSets, ds)
	}
	return c, nil
}

// storeGroup is the planned data sets held by one data store.
type storeGroup struct {
	store    domain.DataStore
	dataSets []domain.DataSet
}

func (g storeGroup) locations() []string {
	out := make([]string, len(g.dataSets))
	for i, ds := range g.dataSets {
		out[i] = ds.Location
	}
	return out
}

// DataStoreCalls talks to the data store servers about planned data sets.
// It works on copies of the records, so callers run it without holding the
// store.
type DataStoreCalls struct {
	factory  datastore.Factory
	dataSets []domain.DataSet
	// groups holds data sets on stores with a remote URL, in first-seen order.
	groups []storeGroup
	local  []domain.DataSet
}

// DataSets returns the planned data sets.
func (c *DataStoreCalls) DataSets() []domain.DataSet { return c.dataSets }

// forEachStore calls fn concurrently for every store group.
func (c *DataStoreCalls) forEachStore(ctx context.Context, fn func(context.Context, int, datastore.Service, storeGroup) error) error {
	if len(c.groups) > 0 && c.factory == nil {
		return fmt.Errorf("no data store service factory configured")
	}
	eg, egCtx := errgroup.WithContext(ctx)
	for i, g := range c.groups {
		eg.Go(func() error {
			svc, err := c.factory.Service(g.store.RemoteURL)
			if err != nil {
				return fmt.Errorf("data store %s: %w", g.store.Code, err)
			}
			return fn(egCtx, i, svc, g)
		})
	}
	return eg.Wait()
}

// AssertKnown fails when a data store server does not know one of its
// planned data sets.
func (c *DataStoreCalls) AssertKnown(ctx context.Context) error {
	unknownPerStore := make([][]string, len(c.groups))
	err := c.forEachStore(ctx, func(ctx context.Context, i int, svc datastore.Service, g storeGroup) error {
		known, err := svc.KnownDataSets(ctx, g.store.SessionToken, g.locations())
		if err != nil {
			return fmt.Errorf("data store %s: %w", g.store.Code, err)
		}
		knownSet := make(map[string]bool, len(known))
		for _, loc := range known {
			knownSet[loc] = true
		}
		for _, ds := range g.dataSets {
			if !knownSet[ds.Location] {
				unknownPerStore[i] = append(unknownPerStore[i], ds.Code)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	var unknown []string
	for _, codes := range unknownPerStore {
		unknown = append(unknown, codes...)
	}
	if len(unknown) > 0 {
		return domain.UserFailuref("The following data sets are unknown by any registered Data Store Server. "+
			"May be the responsible Data Store Server is not running.\n[%s]", strings.Join(unknown, ", "))
	}
	return nil
}

// DeleteFiles asks the data store servers to remove the files of the
// planned data sets.
func (c *DataStoreCalls) DeleteFiles(ctx context.Context) error {
	return c.forEachStore(ctx, func(ctx context.Context, _ int, svc datastore.Service, g storeGroup) error {
		if err := svc.DeleteDataSets(ctx, g.store.SessionToken, g.locations()); err != nil {
			return fmt.Errorf("data store %s: %w", g.store.Code, err)
		}
		return nil
	})
}

// Upload asks the data store servers to upload the planned data sets once
// they all know them. It returns a message naming data sets on stores
// without a remote URL, or an empty string when every data set was handed
// over.
func (c *DataStoreCalls) Upload(ctx context.Context, uc datastore.UploadContext) (string, error) {
	if err := c.AssertKnown(ctx); err != nil {
		return "", err
	}
	if uc.Comment == "" {
		uc.Comment = CreateUploadComment(c.dataSets)
	}
	err := c.forEachStore(ctx, func(ctx context.Context, _ int, svc datastore.Service, g storeGroup) error {
		sets := make([]datastore.DataSet, len(g.dataSets))
		for i, ds := range g.dataSets {
			sets[i] = datastore.DataSet{Code: ds.Code, Location: ds.Location}
		}
		return svc.UploadDataSets(ctx, g.store.SessionToken, sets, uc)
	})
	if err != nil {
		return "", err
	}
	if len(c.local) == 0 {
		return "", nil
	}
	codes := make([]string, len(c.local))
	for i, ds := range c.local {
		codes[i] = ds.Code
	}
	return "The following data sets couldn't be uploaded because of unknown data store: " + strings.Join(codes, ", "), nil
}

// DeleteDataSets removes planned data sets in tx and records a deletion
// event for each. A data set moved or removed since it was planned fails
// the whole deletion.
func DeleteDataSets(tx domain.Transaction, session Session, dataSets []domain.DataSet, reason string) error {
	b := base{tx: tx, session: session}
	for _, ds := range dataSets {
		current, ok := tx.FindDataSetByCode(ds.Code)
		if !ok || current.ID != ds.ID || current.DataStoreID != ds.DataStoreID || current.Location != ds.Location {
			return domain.StaleModificationError{Entity: domain.RecordDataSet, Identifier: ds.Code}
		}
		if err := b.deletionEvent(domain.RecordDataSet, ds.Code, reason); err != nil {
			return err
		}
		if err := tx.DeleteDataSet(ds.ID); err != nil {
			return err
		}
	}
	return nil
}

// CreateUploadComment lists data set codes under a header, replacing the
// tail with "and N more." so the comment stays below MaxUploadCommentLength.
func CreateUploadComment(dataSets []domain.DataSet) string {
	var b strings.Builder
	b.WriteString(UploadCommentText)
	n := len(dataSets)
	for i, ds := range dataSets {
		b.WriteString(UploadCommentNewLine)
		length := b.Len() + len(ds.Code)
		if i < n-1 {
			length += len(UploadCommentNewLine) + len(fmt.Sprintf(UploadCommentAndMore, n-i-1))
		}
		if length < MaxUploadCommentLength {
			b.WriteString(ds.Code)
			continue
		}
		fmt.Fprintf(&b, UploadCommentAndMore, n-i)
		break
	}
	return b.String()
}
