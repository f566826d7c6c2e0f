package testing

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fotoprobe/pkg/content"
)

// StoreTestSuite checks the content.WritableStore contract. It tests
// behavior, not implementation details, so every backend (memory,
// filesystem, S3) runs the same cases.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() content.WritableStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh store for each test.
	NewStore func() content.WritableStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("WriteAndRead", suite.RunWriteAndReadTests)
	t.Run("RangeReads", suite.RunRangeTests)
	t.Run("Missing", suite.RunMissingTests)
	t.Run("Delete", suite.RunDeleteTests)
}

// RunWriteAndReadTests covers whole-object round trips.
func (suite *StoreTestSuite) RunWriteAndReadTests(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		store := suite.newStore(t)
		id := generateTestID("roundtrip")
		data := generateTestData(5000)

		mustWriteContent(t, store, id, data)
		assertContentExists(t, store, id, true)
		assertContentSize(t, store, id, 5000)
		assertRange(t, store, id, 0, 5000, data)
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := suite.newStore(t)
		id := generateTestID("overwrite")

		mustWriteContent(t, store, id, generateTestData(100))
		mustWriteContent(t, store, id, []byte("short"))
		assertContentSize(t, store, id, 5)
		assertRange(t, store, id, 0, 100, []byte("short"))
	})

	t.Run("EmptyObject", func(t *testing.T) {
		store := suite.newStore(t)
		id := generateTestID("empty")

		mustWriteContent(t, store, id, []byte{})
		assertContentExists(t, store, id, true)
		assertContentSize(t, store, id, 0)
	})

	t.Run("CallerBufferIsNotRetained", func(t *testing.T) {
		store := suite.newStore(t)
		id := generateTestID("copy")
		data := []byte("original")

		mustWriteContent(t, store, id, data)
		data[0] = 'X'
		assertRange(t, store, id, 0, 8, []byte("original"))
	})
}

// RunRangeTests covers partial reads, which is how retrieval uses a store.
func (suite *StoreTestSuite) RunRangeTests(t *testing.T) {
	store := suite.newStore(t)
	id := generateTestID("range")
	data := generateTestData(10000)
	mustWriteContent(t, store, id, data)

	t.Run("Middle", func(t *testing.T) {
		assertRange(t, store, id, 1000, 512, data[1000:1512])
	})

	t.Run("ShortAtEnd", func(t *testing.T) {
		p := make([]byte, 100)
		n, err := store.ReadAt(testContext(), id, p, 9950)
		assert.Equal(t, 50, n)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, data[9950:], p[:n])
	})

	t.Run("PastEnd", func(t *testing.T) {
		p := make([]byte, 10)
		n, err := store.ReadAt(testContext(), id, p, 20000)
		assert.Equal(t, 0, n)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("ReadRangeHidesEOF", func(t *testing.T) {
		got, err := content.ReadRange(testContext(), store, id, 9990, 4096)
		require.NoError(t, err)
		assert.Equal(t, data[9990:], got)
	})
}

// RunMissingTests covers operations on objects that were never written.
func (suite *StoreTestSuite) RunMissingTests(t *testing.T) {
	store := suite.newStore(t)
	id := generateTestID("missing")

	assertContentExists(t, store, id, false)

	_, err := store.GetContentSize(testContext(), id)
	AssertErrorIs(t, content.ErrContentNotFound, err)

	_, err = store.ReadAt(testContext(), id, make([]byte, 4), 0)
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

// RunDeleteTests covers removal.
func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	store := suite.newStore(t)
	id := generateTestID("delete")

	mustWriteContent(t, store, id, []byte("bye"))
	mustDelete(t, store, id)
	assertContentExists(t, store, id, false)

	// Deleting again is not an error.
	mustDelete(t, store, id)
}

func (suite *StoreTestSuite) newStore(t *testing.T) content.WritableStore {
	t.Helper()
	store := suite.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
