package domain

import (
	"testing"

	"openbis/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of internal
// implementation packages so that every layer can depend on it.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyForbidden(testutil.InternalImportForbidden, testutil.PrefixForbidden("openbis/pkg/api")),
		"domain must not depend on implementation or transport packages")
}
