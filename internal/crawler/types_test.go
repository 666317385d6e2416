package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordKeyNormalization(t *testing.T) {
	t.Parallel()

	a := ReviewRecord{Author: " Traveler99 ", Title: "Great Visit", WrittenDate: "2024-05-01", Rating: 4}
	b := ReviewRecord{Author: "traveler99", Title: "great visit", WrittenDate: "2024-05-01", Rating: 4}
	require.Equal(t, a.Key(), b.Key())

	c := ReviewRecord{Author: "traveler99", Title: "great visit", WrittenDate: "2024-05-01", Rating: 5}
	require.NotEqual(t, a.Key(), c.Key())
}

func TestRecordKeyIgnoresNonIdentityFields(t *testing.T) {
	t.Parallel()

	a := ReviewRecord{Author: "x", Title: "y", WrittenDate: "2024-01-01", Rating: 3, Text: "long text", Location: "Lima"}
	b := ReviewRecord{Author: "x", Title: "y", WrittenDate: "2024-01-01", Rating: 3}
	require.Equal(t, a.Key(), b.Key())
}

func TestPagesFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		reviews int
		pages   int
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{10, 1},
		{11, 2},
		{25, 3},
		{100, 10},
	}
	for _, tc := range cases {
		require.Equal(t, tc.pages, PagesFor(tc.reviews), "reviews=%d", tc.reviews)
	}
}
