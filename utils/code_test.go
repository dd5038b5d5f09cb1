package utils

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected rune %q in %s", r, code)
		}
	}
}

func TestGenerateCodeConcurrentUnique(t *testing.T) {
	const n = 2000

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := GenerateCode()
			assert.NoError(t, err)
			mu.Lock()
			seen[code] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 2000 draws from 2^40 collide with probability ~2e-6
	assert.Len(t, seen, n)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AB23CD45", NormalizeCode("  ab23cd45 \n"))
}

func TestBlobName(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	tests := []struct {
		name     string
		original string
		suffix   string
	}{
		{name: "keeps extension", original: "Report.PDF", suffix: ".pdf"},
		{name: "no extension", original: "README", suffix: ""},
		{name: "drops odd extension", original: "photo.j$g", suffix: ""},
		{name: "drops traversal", original: "../../etc/passwd", suffix: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BlobName(tt.original, now)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, "1700000000123-"), got)
			assert.True(t, strings.HasSuffix(got, tt.suffix), got)
			assert.NotContains(t, got, "/")
		})
	}

	a, _ := BlobName("a.txt", now)
	b, _ := BlobName("a.txt", now)
	assert.NotEqual(t, a, b)
}
