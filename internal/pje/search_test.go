package pje

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSearchLastDaysWindow(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(1, "0000001-01.2023.8.26.0001"),
	}}
	s := newTestSearcher(fetcher)

	// The fake clock sits at 2023-11-14T22:13:20Z.
	result, err := s.SearchLastDays(context.Background(), "123456", "sp", 7)
	require.NoError(t, err)
	require.Empty(t, result.Error)
	require.Len(t, result.Publications, 1)

	u, err := url.Parse(fetcher.lastURL())
	require.NoError(t, err)
	params := u.Query()
	require.Equal(t, "07/11/2023", params.Get("dataDisponibilizacaoInicio"))
	require.Equal(t, "14/11/2023", params.Get("dataDisponibilizacaoFim"))
	require.Equal(t, "SP", params.Get("ufOab"))
}

func TestSearchByPeriod(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(1, "0000001-01.2023.8.26.0001"),
	}}
	s := newTestSearcher(fetcher)

	start := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC)
	result, err := s.SearchByPeriod(context.Background(), "123456", "SP", &start, &end)
	require.NoError(t, err)
	require.Empty(t, result.Error)

	u, err := url.Parse(fetcher.lastURL())
	require.NoError(t, err)
	params := u.Query()
	require.Equal(t, "01/06/2023", params.Get("dataDisponibilizacaoInicio"))
	require.Equal(t, "30/06/2023", params.Get("dataDisponibilizacaoFim"))
}

func TestSearchByPeriodOpenWindow(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(1, "0000001-01.2023.8.26.0001"),
	}}
	s := newTestSearcher(fetcher)

	_, err := s.SearchByPeriod(context.Background(), "123456", "SP", nil, nil)
	require.NoError(t, err)

	u, err := url.Parse(fetcher.lastURL())
	require.NoError(t, err)
	params := u.Query()
	require.False(t, params.Has("dataDisponibilizacaoInicio"))
	require.False(t, params.Has("dataDisponibilizacaoFim"))
}

func TestSearchByPeriodValidationError(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{}
	s := newTestSearcher(fetcher)

	_, err := s.SearchByPeriod(context.Background(), "", "SP", nil, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "bar_number", verr.Field)
	require.Empty(t, fetcher.callPages())
}

func TestSearchLastDaysConcurrent(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(1, "0000001-01.2023.8.26.0001"),
	}}
	s := newTestSearcher(fetcher)

	result, err := s.SearchLastDaysConcurrent(context.Background(), "123456", "SP", 7)
	require.NoError(t, err)
	require.Len(t, result.Publications, 1)
	require.Equal(t, 1, result.TotalFound)
}
