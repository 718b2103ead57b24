package suiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movefuzz/fuzz-acceptor/extract"
)

const publishOutput = `
Transaction Digest: 4mJ6qrE
╭──────────────────────────────────────────────────────────────────────╮
│ Object Changes                                                       │
├──────────────────────────────────────────────────────────────────────┤
│ Published Objects:                                                   │
│  ┌──                                                                 │
│  │ PackageID: 0x8b44a7b27e8e184a43a1f1b77b0d1a2dbf9c3f0a            │
│  │ Version: 1                                                        │
│  └──                                                                 │
╰──────────────────────────────────────────────────────────────────────╯
`

const callOutput = `
Transaction Digest: 9kPq2wX
╭──────────────────────────────────────────────────────────────────────╮
│ Object Changes                                                       │
├──────────────────────────────────────────────────────────────────────┤
│ Created Objects:                                                     │
│  ┌──                                                                 │
│  │ ObjectID: 0xdeadbeef1234567890abcdef                              │
│  │ Owner: Shared                                                     │
│  └──                                                                 │
╰──────────────────────────────────────────────────────────────────────╯
`

func TestPackageIDExtraction(t *testing.T) {
	t.Run("publish output", func(t *testing.T) {
		id, pattern, ok := extract.First(publishOutput, PackageIDPatterns)
		require.True(t, ok)
		assert.Equal(t, "0x8b44a7b27e8e184a43a1f1b77b0d1a2dbf9c3f0a", id)
		assert.Equal(t, "package-id", pattern)
	})

	t.Run("case insensitive", func(t *testing.T) {
		id, _, ok := extract.First("packageid: 0xABC123", PackageIDPatterns)
		require.True(t, ok)
		assert.Equal(t, "0xABC123", id)
	})

	t.Run("spaced variant via fallback", func(t *testing.T) {
		id, pattern, ok := extract.First("Package ID: 0xfeed01", PackageIDPatterns)
		require.True(t, ok)
		assert.Equal(t, "0xfeed01", id)
		assert.Equal(t, "package-id-spaced", pattern)
	})

	t.Run("no match", func(t *testing.T) {
		_, _, ok := extract.First("error: publish failed", PackageIDPatterns)
		assert.False(t, ok)
	})
}

func TestCreatedObjectExtraction(t *testing.T) {
	t.Run("created objects section", func(t *testing.T) {
		id, pattern, ok := extract.First(callOutput, CreatedObjectPatterns)
		require.True(t, ok)
		assert.Equal(t, "0xdeadbeef1234567890abcdef", id)
		assert.Equal(t, "created-objects-section", pattern)
	})

	t.Run("box drawn row without section header", func(t *testing.T) {
		out := "│ ObjectID: 0x1234abcd │"
		id, pattern, ok := extract.First(out, CreatedObjectPatterns)
		require.True(t, ok)
		assert.Equal(t, "0x1234abcd", id)
		assert.Equal(t, "object-id-row", pattern)
	})

	t.Run("section match spans lines", func(t *testing.T) {
		out := "Created Objects:\nsome filler\nObjectID: 0x99aa"
		id, _, ok := extract.First(out, CreatedObjectPatterns)
		require.True(t, ok)
		assert.Equal(t, "0x99aa", id)
	})

	t.Run("no match", func(t *testing.T) {
		_, _, ok := extract.First("Mutated Objects:\nObjectRef: abc", CreatedObjectPatterns)
		assert.False(t, ok)
	})
}
