// Package datastore talks to remote data store servers, which hold the
// files of registered data sets.
package datastore

import (
	"context"
	"sync"
)

// DataSet identifies a data set on a data store server.
type DataSet struct {
	Code     string `json:"code"`
	Location string `json:"location"`
}

// UploadContext carries the credentials and comment used when a data store
// server uploads data sets to a file sharing service.
type UploadContext struct {
	FileServiceURL string `json:"file_service_url"`
	UserID         string `json:"user_id"`
	Password       string `json:"password"`
	UserEmail      string `json:"user_email,omitempty"`
	Comment        string `json:"comment,omitempty"`
}

// Service is the remote interface of a data store server.
type Service interface {
	// KnownDataSets returns the subset of locations the server holds.
	KnownDataSets(ctx context.Context, sessionToken string, locations []string) ([]string, error)
	DeleteDataSets(ctx context.Context, sessionToken string, locations []string) error
	UploadDataSets(ctx context.Context, sessionToken string, dataSets []DataSet, uc UploadContext) error
}

// Factory returns the Service reachable at a remote URL.
type Factory interface {
	Service(remoteURL string) (Service, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(remoteURL string) (Service, error)

// Service implements Factory.
func (f FactoryFunc) Service(remoteURL string) (Service, error) { return f(remoteURL) }

// CachingFactory memoizes services per remote URL.
type CachingFactory struct {
	next     Factory
	mu       sync.Mutex
	services map[string]Service
}

// NewCachingFactory wraps next.
func NewCachingFactory(next Factory) *CachingFactory {
	return &CachingFactory{next: next, services: make(map[string]Service)}
}

// Service implements Factory.
func (f *CachingFactory) Service(remoteURL string) (Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if svc, ok := f.services[remoteURL]; ok {
		return svc, nil
	}
	svc, err := f.next.Service(remoteURL)
	if err != nil {
		return nil, err
	}
	f.services[remoteURL] = svc
	return svc, nil
}
