package core

import (
	"context"
	"fmt"
	"strings"

	"openbis/internal/authz"
	"openbis/internal/bo"
	"openbis/internal/datastore"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// ListDataStores returns the known data store servers.
func (s *Service) ListDataStores(ctx context.Context, token string) ([]api.DataStore, error) {
	var out []api.DataStore
	err := s.read(ctx, "list_data_stores", token, authz.RoleSetObserverOrETL, func(_ context.Context, view domain.TransactionView, req request) error {
		out = req.tr.DataStores(view.ListDataStores())
		return nil
	})
	return out, err
}

// RegisterDataStore announces a data store server or refreshes its URLs.
func (s *Service) RegisterDataStore(ctx context.Context, token string, nd bo.NewDataStore) (*api.DataStore, error) {
	var out *api.DataStore
	err := s.write(ctx, "register_data_store", token, authz.RoleSetETLServer, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		ds, err := bo.NewDataStoreBO(tx, req.session).Register(nd)
		if err != nil {
			return err
		}
		out = req.tr.DataStore(&ds)
		fx.entityID = ds.ID
		return nil
	})
	return out, err
}

// RegisterDataSet records a data set stored by a data store server.
func (s *Service) RegisterDataSet(ctx context.Context, token string, nd bo.NewDataSet) (*api.DataSet, error) {
	var out *api.DataSet
	err := s.write(ctx, "register_data_set", token, authz.RoleSetETLServer, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		switch {
		case nd.SampleIdentifier != "":
			if err := check[string](req, authz.SampleIdentifierPredicate(), authz.RoleSetETLServer, nd.SampleIdentifier); err != nil {
				return err
			}
		case nd.ExperimentIdentifier != "":
			if err := check[string](req, authz.ExperimentIdentifierPredicate(), authz.RoleSetETLServer, nd.ExperimentIdentifier); err != nil {
				return err
			}
		}
		dbo := bo.NewDataSetBO(tx, req.session)
		if err := dbo.Register(nd); err != nil {
			return err
		}
		ds, err := dbo.DataSet()
		if err != nil {
			return err
		}
		out = req.tr.DataSet(&ds)
		fx.entityID = ds.ID
		return nil
	})
	return out, err
}

// DataSetHolder names the sample or experiment whose data sets are listed.
type DataSetHolder struct {
	Kind domain.RecordKind `json:"kind"`
	ID   string            `json:"id"`
}

// ListDataSets returns the data sets of a sample or an experiment.
func (s *Service) ListDataSets(ctx context.Context, token string, holder DataSetHolder) ([]api.DataSet, error) {
	var out []api.DataSet
	err := s.read(ctx, "list_data_sets", token, authz.RoleSetObserverOrETL, func(_ context.Context, view domain.TransactionView, req request) error {
		dataSets, err := holderDataSets(view, req, holder, authz.RoleSetObserverOrETL)
		if err != nil {
			return err
		}
		out = req.tr.DataSets(dataSets)
		return nil
	})
	return out, err
}

func holderDataSets(view domain.TransactionView, req request, holder DataSetHolder, allowed authz.RoleSet) ([]domain.DataSet, error) {
	switch holder.Kind {
	case domain.RecordSample:
		smp, ok := view.FindSample(holder.ID)
		if !ok {
			return nil, domain.ErrNotFound{Entity: domain.RecordSample, ID: holder.ID}
		}
		if err := checkSample(req, view, smp, allowed); err != nil {
			return nil, err
		}
		return view.ListDataSetsBySample(smp.ID), nil
	case domain.RecordExperiment:
		e, ok := view.FindExperiment(holder.ID)
		if !ok {
			return nil, domain.ErrNotFound{Entity: domain.RecordExperiment, ID: holder.ID}
		}
		if err := checkExperiment(req, view, e, allowed); err != nil {
			return nil, err
		}
		return view.ListDataSetsByExperiment(e.ID), nil
	default:
		return nil, domain.UserFailuref("Data sets belong to samples or experiments, not to '%s'.", holder.Kind)
	}
}

// checkDataSets authorizes access to the experiments of data sets given by
// code. Unknown codes are left to the caller.
func checkDataSets(req request, view domain.TransactionView, codes []string, allowed authz.RoleSet) error {
	for _, code := range codes {
		ds, ok := view.FindDataSetByCode(domain.NormalizeCode(code))
		if !ok {
			continue
		}
		e, ok := view.FindExperiment(ds.ExperimentID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordExperiment, ID: ds.ExperimentID}
		}
		if err := checkExperiment(req, view, e, allowed); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDataSets removes data sets and asks their data store servers to
// delete the files. Nothing is deleted when a server does not know one of
// the data sets. The servers are asked outside the store transaction: first
// whether they know the data sets, then, once the records are gone, to
// remove the files.
func (s *Service) DeleteDataSets(ctx context.Context, token string, codes []string, reason string) error {
	return s.operate(ctx, "delete_data_sets", token, authz.RoleSetPowerUser, func(ctx context.Context, o *operation) error {
		o.fx.entityID = strings.Join(codes, ",")
		calls, err := s.planDataStoreCalls(ctx, o, codes, authz.RoleSetPowerUser)
		if err != nil {
			return err
		}
		if err := calls.AssertKnown(ctx); err != nil {
			return err
		}
		err = o.update(ctx, func(_ context.Context, tx domain.Transaction, req request, _ *effects) error {
			if err := checkDataSets(req, tx, codes, authz.RoleSetPowerUser); err != nil {
				return err
			}
			return bo.DeleteDataSets(tx, req.session, calls.DataSets(), reason)
		})
		if err != nil {
			return err
		}
		if err := calls.DeleteFiles(ctx); err != nil {
			return fmt.Errorf("data sets deleted, removing their files failed: %w", err)
		}
		return nil
	})
}

// UploadDataSets asks the data store servers to upload data sets to a file
// sharing service. The returned message names data sets that could not be
// handed over.
func (s *Service) UploadDataSets(ctx context.Context, token string, codes []string, uc datastore.UploadContext) (string, error) {
	var message string
	err := s.operate(ctx, "upload_data_sets", token, authz.RoleSetObserver, func(ctx context.Context, o *operation) error {
		o.fx.entityID = strings.Join(codes, ",")
		if err := o.view(ctx, func(_ domain.TransactionView, req request) error {
			if uc.UserEmail == "" {
				uc.UserEmail = req.session.Person.Email
			}
			return nil
		}); err != nil {
			return err
		}
		calls, err := s.planDataStoreCalls(ctx, o, codes, authz.RoleSetObserver)
		if err != nil {
			return err
		}
		message, err = calls.Upload(ctx, uc)
		return err
	})
	return message, err
}

// planDataStoreCalls checks access to the data sets and groups them by data
// store on a snapshot.
func (s *Service) planDataStoreCalls(ctx context.Context, o *operation, codes []string, allowed authz.RoleSet) (*bo.DataStoreCalls, error) {
	var calls *bo.DataStoreCalls
	err := o.view(ctx, func(view domain.TransactionView, req request) error {
		if err := checkDataSets(req, view, codes, allowed); err != nil {
			return err
		}
		table := bo.NewExternalDataTable(view, s.dataStores)
		table.LoadByDataSetCodes(codes)
		var err error
		calls, err = table.Plan()
		return err
	})
	return calls, err
}
