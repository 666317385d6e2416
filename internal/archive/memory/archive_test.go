package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectStoresCopy(t *testing.T) {
	t.Parallel()

	a := New()
	body := []byte("<html>page</html>")
	uri, err := a.PutObject(context.Background(), "run-1/fort/page-3.html", "text/html", body)
	require.NoError(t, err)
	require.Equal(t, "memory://run-1/fort/page-3.html", uri)

	// Mutating the caller's slice must not affect the stored snapshot.
	body[0] = 'X'
	stored, ok := a.Get("run-1/fort/page-3.html")
	require.True(t, ok)
	require.Equal(t, byte('<'), stored[0])
	require.Equal(t, 1, a.Len())
}

func TestPutObjectRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	a := New()
	_, err := a.PutObject(context.Background(), "", "text/html", []byte("x"))
	require.Error(t, err)
}
