package bo

import (
	"github.com/google/uuid"

	"openbis/pkg/domain"
)

// InstanceBootstrap reports what EnsureHomeDatabaseInstance did.
type InstanceBootstrap struct {
	Instance     domain.DatabaseInstance
	Created      bool
	Renamed      bool
	PreviousCode string
}

// EnsureHomeDatabaseInstance makes sure a home database instance exists. A
// store without one gets SYSTEM_DEFAULT. A SYSTEM_DEFAULT instance is renamed
// to code and given a fresh UUID; an instance that was renamed before is
// kept as is.
func EnsureHomeDatabaseInstance(tx domain.Transaction, code string) (InstanceBootstrap, error) {
	var out InstanceBootstrap
	home, ok := tx.HomeDatabaseInstance()
	if !ok {
		created, err := tx.CreateDatabaseInstance(domain.DatabaseInstance{
			Code: domain.SystemDefaultInstance,
			UUID: uuid.NewString(),
			Home: true,
		})
		if err != nil {
			return out, err
		}
		home, out.Created = created, true
	}
	out.Instance, out.PreviousCode = home, home.Code
	if home.Code != domain.SystemDefaultInstance {
		return out, nil
	}
	newCode := domain.NormalizeCode(code)
	if newCode == "" || newCode == domain.SystemDefaultInstance {
		return out, domain.UserFailuref("Invalid database instance '%s'.", code)
	}
	if _, err := uuid.Parse(newCode); err == nil {
		return out, domain.UserFailuref("The new database instance code '%s' has an UUID format and should not.", code)
	}
	if err := domain.ValidateCode(newCode); err != nil {
		return out, err
	}
	renamed, err := tx.UpdateDatabaseInstance(home.ID, func(inst *domain.DatabaseInstance) error {
		inst.Code = newCode
		inst.UUID = uuid.NewString()
		return nil
	})
	if err != nil {
		return out, err
	}
	out.Instance, out.Renamed = renamed, true
	return out, nil
}
