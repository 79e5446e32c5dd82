// Package testing provides a conformance suite for metadata.Index
// implementations.
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// IndexTestSuite is a comprehensive test suite for Index implementations.
// It tests the interface contract, not implementation details, making it
// reusable across backends (SQLite, BadgerDB, ...).
//
// Usage:
//
//	func TestMyIndex(t *testing.T) {
//	    suite := &metatesting.IndexTestSuite{
//	        NewIndex: func(t *testing.T) metadata.Index {
//	            return myindex.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type IndexTestSuite struct {
	// NewIndex creates a fresh, empty Index for each test. The suite closes
	// it when the test finishes.
	NewIndex func(t *testing.T) metadata.Index
}

// Run executes all tests in the suite.
func (suite *IndexTestSuite) Run(t *testing.T) {
	t.Run("Namespaces", suite.RunNamespaceTests)
	t.Run("Objects", suite.RunObjectTests)
	t.Run("Listing", suite.RunListingTests)
	t.Run("Accounting", suite.RunAccountingTests)
	t.Run("Concurrency", suite.RunConcurrencyTests)
}

// newIndex creates an index and registers its cleanup.
func (suite *IndexTestSuite) newIndex(t *testing.T) metadata.Index {
	t.Helper()
	idx := suite.NewIndex(t)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
