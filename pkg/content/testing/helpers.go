package testing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fotoprobe/pkg/content"
)

// AssertErrorIs checks if the error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

// mustWriteContent writes content and fails the test if it errors.
func mustWriteContent(t *testing.T, store content.WritableStore, id content.ContentID, data []byte) {
	t.Helper()
	err := store.WriteContent(testContext(), id, data)
	require.NoError(t, err, "WriteContent should succeed")
}

// mustDelete deletes content and fails the test if it errors.
func mustDelete(t *testing.T, store content.WritableStore, id content.ContentID) {
	t.Helper()
	err := store.Delete(testContext(), id)
	require.NoError(t, err, "Delete should succeed")
}

// assertContentExists checks if content exists.
func assertContentExists(t *testing.T, store content.Store, id content.ContentID, expected bool) {
	t.Helper()
	exists, err := store.ContentExists(testContext(), id)
	require.NoError(t, err, "ContentExists should not error")
	assert.Equal(t, expected, exists, "Content existence mismatch")
}

// assertContentSize checks if content size matches expected.
func assertContentSize(t *testing.T, store content.Store, id content.ContentID, expected uint64) {
	t.Helper()
	actual, err := store.GetContentSize(testContext(), id)
	require.NoError(t, err, "GetContentSize should succeed")
	assert.Equal(t, expected, actual, "Content size mismatch")
}

// assertRange reads [offset, offset+length) and compares it with expected.
func assertRange(t *testing.T, store content.Store, id content.ContentID, offset, length uint64, expected []byte) {
	t.Helper()
	actual, err := content.ReadRange(testContext(), store, id, offset, length)
	require.NoError(t, err, "ReadRange should succeed")
	assert.Equal(t, expected, actual, "Range data mismatch")
}

// generateTestData creates test data of specified size.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = byte(i % 256)
	}
	return data
}

// generateTestID generates a unique test content ID.
func generateTestID(name string) content.ContentID {
	return content.ContentID("test-" + name)
}
