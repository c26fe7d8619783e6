package photos_test

import (
	"testing"

	"growbook/testutil"
)

func TestPhotosDependOnArchiveContract(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(testutil.InfraImportForbidden, testutil.AppImportForbidden), "photo service uses archive.Store")
	testutil.AssertNoDirectImports(t, "archive", testutil.InfraImportForbidden, "archive is a contract")
	testutil.AssertNoTransitiveDependency(t, "growbook/internal/photos/...",
		testutil.Any(testutil.InfraImportForbidden, testutil.StorageSDKForbidden),
		"object storage SDKs belong to internal/infra/photostore")
}
