package bo

import (
	"strings"

	"openbis/pkg/domain"
)

// NewDataStore describes a data store server announcing itself.
type NewDataStore struct {
	Code         string `json:"code"`
	DownloadURL  string `json:"download_url,omitempty"`
	RemoteURL    string `json:"remote_url,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
}

// DataStoreBO registers data store servers.
type DataStoreBO struct {
	base
}

// NewDataStoreBO constructs a DataStoreBO.
func NewDataStoreBO(tx domain.Transaction, session Session) *DataStoreBO {
	return &DataStoreBO{base: base{tx: tx, session: session}}
}

// Register creates a data store or refreshes the URLs and session token of
// an existing one.
func (b *DataStoreBO) Register(nd NewDataStore) (domain.DataStore, error) {
	code := domain.NormalizeCode(nd.Code)
	if err := domain.ValidateCode(code); err != nil {
		return domain.DataStore{}, err
	}
	if existing, ok := b.tx.FindDataStoreByCode(code); ok {
		return b.tx.UpdateDataStore(existing.ID, func(ds *domain.DataStore) error {
			ds.DownloadURL = nd.DownloadURL
			ds.RemoteURL = strings.TrimSpace(nd.RemoteURL)
			ds.SessionToken = nd.SessionToken
			return nil
		})
	}
	return b.tx.CreateDataStore(domain.DataStore{
		Code:         code,
		DownloadURL:  nd.DownloadURL,
		RemoteURL:    strings.TrimSpace(nd.RemoteURL),
		SessionToken: nd.SessionToken,
	})
}

// NewDataSet describes a data set registered by a data store server. Exactly
// one of SampleIdentifier and ExperimentIdentifier names the owner.
type NewDataSet struct {
	Code                 string          `json:"code,omitempty"`
	DataSetType          string          `json:"data_set_type"`
	DataStoreCode        string          `json:"data_store_code"`
	Location             string          `json:"location"`
	SampleIdentifier     string          `json:"sample_identifier,omitempty"`
	ExperimentIdentifier string          `json:"experiment_identifier,omitempty"`
	ParentCodes          []string        `json:"parent_codes,omitempty"`
	Properties           []PropertyValue `json:"properties,omitempty"`
}

// DataSetBO registers data sets.
type DataSetBO struct {
	base
	converter *PropertiesConverter
	dataSet   *domain.DataSet
}

// NewDataSetBO constructs a DataSetBO.
func NewDataSetBO(tx domain.Transaction, session Session) *DataSetBO {
	return &DataSetBO{
		base:      base{tx: tx, session: session},
		converter: NewPropertiesConverter(tx, domain.KindDataSet),
	}
}

// DataSet returns the registered data set.
func (b *DataSetBO) DataSet() (domain.DataSet, error) {
	if b.dataSet == nil {
		return domain.DataSet{}, domain.UserFailuref("Unloaded data set.")
	}
	return *b.dataSet, nil
}

// Register validates and stores a data set. A data set of a sample belongs
// to the sample's experiment. An empty code is replaced by a permanent id.
func (b *DataSetBO) Register(nd NewDataSet) error {
	dataSetType, err := b.findEntityType(domain.KindDataSet, nd.DataSetType)
	if err != nil {
		return err
	}
	store, ok := b.tx.FindDataStoreByCode(domain.NormalizeCode(nd.DataStoreCode))
	if !ok {
		return domain.UserFailuref("Data store '%s' does not exist.", nd.DataStoreCode)
	}
	if strings.TrimSpace(nd.Location) == "" {
		return domain.UserFailuref("Location of data set not specified.")
	}
	ds := domain.DataSet{
		TypeID:        dataSetType.ID,
		DataStoreID:   store.ID,
		Location:      strings.TrimSpace(nd.Location),
		RegistratorID: b.registrator(),
	}
	if err := b.setOwner(&ds, nd); err != nil {
		return err
	}
	ds.Code = domain.NormalizeCode(nd.Code)
	if ds.Code == "" {
		ds.Code = b.tx.NextPermID()
	} else if err := domain.ValidateCode(ds.Code); err != nil {
		return err
	}
	if _, exists := b.tx.FindDataSetByCode(ds.Code); exists {
		return domain.UserFailuref("Data set '%s' already exists.", ds.Code)
	}
	for _, pc := range nd.ParentCodes {
		parent, ok := b.tx.FindDataSetByCode(domain.NormalizeCode(pc))
		if !ok {
			return domain.UserFailuref("Parent data set '%s' does not exist.", pc)
		}
		ds.ParentIDs = append(ds.ParentIDs, parent.ID)
	}
	props, err := b.converter.Convert(nd.Properties, dataSetType.Code, b.registrator())
	if err != nil {
		return err
	}
	if err := b.converter.CheckMandatory(props, dataSetType); err != nil {
		return err
	}
	ds.Properties = props
	created, err := b.tx.CreateDataSet(ds)
	if err != nil {
		return err
	}
	b.dataSet = &created
	return nil
}

func (b *DataSetBO) setOwner(ds *domain.DataSet, nd NewDataSet) error {
	switch {
	case nd.SampleIdentifier != "" && nd.ExperimentIdentifier != "":
		return domain.UserFailuref("Data set owner has to be either a sample or an experiment.")
	case nd.SampleIdentifier != "":
		id, err := domain.ParseSampleIdentifier(nd.SampleIdentifier)
		if err != nil {
			return err
		}
		s, err := b.resolveSample(id)
		if err != nil {
			return err
		}
		if s.ExperimentID == nil {
			return domain.UserFailuref("Data set can not be registered because sample '%s' is not attached to an experiment.",
				domain.IdentifySample(b.tx, s))
		}
		ds.SampleID = &s.ID
		ds.ExperimentID = *s.ExperimentID
	case nd.ExperimentIdentifier != "":
		id, err := domain.ParseExperimentIdentifier(nd.ExperimentIdentifier)
		if err != nil {
			return err
		}
		e, err := b.resolveExperiment(id)
		if err != nil {
			return err
		}
		ds.ExperimentID = e.ID
	default:
		return domain.UserFailuref("Data set owner has to be either a sample or an experiment.")
	}
	return nil
}
