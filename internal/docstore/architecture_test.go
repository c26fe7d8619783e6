package docstore_test

import (
	"testing"

	"growbook/testutil"
)

func TestDocstoreContractHasNoBackends(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, "growbook/internal/docstore",
		testutil.Any(testutil.InfraImportForbidden, testutil.StorageSDKForbidden),
		"the document store contract must not pull in a driver")
}
