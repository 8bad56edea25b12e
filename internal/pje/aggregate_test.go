package pje

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pageFetcher serves scripted responses keyed by the pagina parameter.
type pageFetcher struct {
	mu    sync.Mutex
	pages map[int]fetchStep
	calls []int
	last  string
}

func (f *pageFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return FetchResponse{}, err
	}
	page, _ := strconv.Atoi(u.Query().Get("pagina"))

	f.mu.Lock()
	f.calls = append(f.calls, page)
	f.last = req.URL
	step, ok := f.pages[page]
	f.mu.Unlock()

	if !ok {
		return FetchResponse{}, errors.New("unexpected page requested")
	}
	resp := step.resp
	if resp.URL == "" {
		resp.URL = req.URL
	}
	return resp, step.err
}

func (f *pageFetcher) callPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *pageFetcher) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// resultPage renders a minimal portal page with the given publications and
// announced total.
func resultPage(total int, caseNumbers ...string) []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, cn := range caseNumbers {
		fmt.Fprintf(&b, `<div class="publicacao">`+
			`<span class="numero-processo">%s</span>`+
			`<span class="data-publicacao">15/03/2023</span>`+
			`<span class="orgao-julgador">1ª Vara Cível</span>`+
			`<div class="conteudo-publicacao">Intimação nos autos %s.</div>`+
			`</div>`, cn, cn)
	}
	fmt.Fprintf(&b, `<div class="paginacao"><span>Exibindo resultados de %d resultados</span>`+
		`<ul><li class="active"><span>1</span></li></ul></div>`, total)
	b.WriteString("</body></html>")
	return []byte(b.String())
}

func okStep(total int, caseNumbers ...string) fetchStep {
	return fetchStep{resp: FetchResponse{StatusCode: http.StatusOK, Body: resultPage(total, caseNumbers...)}}
}

func newTestSearcher(fetcher Fetcher) *Searcher {
	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	retry := NewExponentialRetryPolicy(1, time.Millisecond, time.Millisecond)
	client := NewClient(ClientConfig{}, fetcher, &fakePolicy{}, retry, nil, nil, zap.NewNop())
	parser := NewParser(zap.NewNop(), clock, &fakeHasher{})
	return NewSearcher(SearcherConfig{Workers: 2}, client, parser, clock, zap.NewNop())
}

func casesOf(result SearchResult) []string {
	out := make([]string, 0, len(result.Publications))
	for _, pub := range result.Publications {
		out = append(out, pub.CaseNumber)
	}
	return out
}

func aggregateQuery() SearchQuery {
	return SearchQuery{BarNumber: "123456", StateCode: "SP", PageSize: 2}
}

func TestSearchPage(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(5, "0000001-01.2023.8.26.0001", "0000002-02.2023.8.26.0002"),
	}}
	s := newTestSearcher(fetcher)

	result, err := s.SearchPage(context.Background(), aggregateQuery())
	require.NoError(t, err)
	require.Empty(t, result.Error)
	require.Len(t, result.Publications, 2)
	require.Equal(t, 5, result.TotalFound)
	require.Equal(t, 1, result.CurrentPage)
	require.Equal(t, 3, result.TotalPages)
	require.Equal(t, "SP", result.Query.StateCode)
	require.False(t, result.FetchedAt.IsZero())
}

func TestSearchPageValidationError(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{}
	s := newTestSearcher(fetcher)

	_, err := s.SearchPage(context.Background(), SearchQuery{BarNumber: "123456", StateCode: "ZZ"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, fetcher.callPages())
}

func TestSearchPageFetchFailurePopulatesError(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: {err: errors.New("connection reset")},
	}}
	s := newTestSearcher(fetcher)

	result, err := s.SearchPage(context.Background(), aggregateQuery())
	require.NoError(t, err)
	require.NotEmpty(t, result.Error)
	require.Empty(t, result.Publications)
}

func TestSearchAllPagesMergesInOrder(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(5, "0000001-01.2023.8.26.0001", "0000002-02.2023.8.26.0002"),
		2: okStep(5, "0000003-03.2023.8.26.0003", "0000004-04.2023.8.26.0004"),
		3: okStep(5, "0000005-05.2023.8.26.0005"),
	}}
	s := newTestSearcher(fetcher)

	result, err := s.SearchAllPages(context.Background(), aggregateQuery())
	require.NoError(t, err)
	require.Empty(t, result.Error)
	require.Equal(t, []int{1, 2, 3}, fetcher.callPages())
	require.Equal(t, []string{
		"0000001-01.2023.8.26.0001",
		"0000002-02.2023.8.26.0002",
		"0000003-03.2023.8.26.0003",
		"0000004-04.2023.8.26.0004",
		"0000005-05.2023.8.26.0005",
	}, casesOf(result))
	require.Equal(t, 5, result.TotalFound)
	require.Equal(t, 3, result.TotalPages)
	require.Equal(t, 1, result.CurrentPage)
}

func TestSearchAllPagesSkipsFailedPage(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(5, "0000001-01.2023.8.26.0001", "0000002-02.2023.8.26.0002"),
		2: {err: errors.New("connection reset")},
		3: okStep(5, "0000005-05.2023.8.26.0005"),
	}}
	s := newTestSearcher(fetcher)

	result, err := s.SearchAllPages(context.Background(), aggregateQuery())
	require.NoError(t, err)
	require.Empty(t, result.Error)
	require.Equal(t, []string{
		"0000001-01.2023.8.26.0001",
		"0000002-02.2023.8.26.0002",
		"0000005-05.2023.8.26.0005",
	}, casesOf(result))
	// Totals reflect what was actually collected, not the announced count.
	require.Equal(t, 3, result.TotalFound)
	require.Equal(t, 2, result.TotalPages)
}

func TestSearchAllPagesFirstPageFailure(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: {err: errors.New("connection refused")},
	}}
	s := newTestSearcher(fetcher)

	result, err := s.SearchAllPages(context.Background(), aggregateQuery())
	require.NoError(t, err)
	require.NotEmpty(t, result.Error)
	require.Empty(t, result.Publications)
	require.Equal(t, []int{1}, fetcher.callPages())
}

func TestSearchAllPagesSinglePage(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(2, "0000001-01.2023.8.26.0001", "0000002-02.2023.8.26.0002"),
	}}
	s := newTestSearcher(fetcher)

	result, err := s.SearchAllPages(context.Background(), aggregateQuery())
	require.NoError(t, err)
	require.Equal(t, []int{1}, fetcher.callPages())
	require.Len(t, result.Publications, 2)
	require.Equal(t, 1, result.TotalPages)
}

func TestSearchAllPagesConcurrent(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(5, "0000001-01.2023.8.26.0001", "0000002-02.2023.8.26.0002"),
		2: okStep(5, "0000003-03.2023.8.26.0003", "0000004-04.2023.8.26.0004"),
		3: okStep(5, "0000005-05.2023.8.26.0005"),
	}}
	s := newTestSearcher(fetcher)

	result, err := s.SearchAllPagesConcurrent(context.Background(), aggregateQuery())
	require.NoError(t, err)
	require.Empty(t, result.Error)
	// Completion order varies; merge order must not.
	require.Equal(t, []string{
		"0000001-01.2023.8.26.0001",
		"0000002-02.2023.8.26.0002",
		"0000003-03.2023.8.26.0003",
		"0000004-04.2023.8.26.0004",
		"0000005-05.2023.8.26.0005",
	}, casesOf(result))
	require.Equal(t, 5, result.TotalFound)
	require.Equal(t, 3, result.TotalPages)

	pages := fetcher.callPages()
	require.Len(t, pages, 3)
	require.Equal(t, 1, pages[0])
	require.ElementsMatch(t, []int{2, 3}, pages[1:])
}

func TestSearchAllPagesConcurrentSkipsFailedPage(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(5, "0000001-01.2023.8.26.0001", "0000002-02.2023.8.26.0002"),
		2: {err: errors.New("connection reset")},
		3: okStep(5, "0000005-05.2023.8.26.0005"),
	}}
	s := newTestSearcher(fetcher)

	result, err := s.SearchAllPagesConcurrent(context.Background(), aggregateQuery())
	require.NoError(t, err)
	require.Empty(t, result.Error)
	require.Equal(t, []string{
		"0000001-01.2023.8.26.0001",
		"0000002-02.2023.8.26.0002",
		"0000005-05.2023.8.26.0005",
	}, casesOf(result))
	require.Equal(t, 3, result.TotalFound)
}

func TestSearchAllPagesCancelledContext(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[int]fetchStep{
		1: okStep(5, "0000001-01.2023.8.26.0001", "0000002-02.2023.8.26.0002"),
	}}
	s := newTestSearcher(fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.SearchAllPages(ctx, aggregateQuery())
	require.NoError(t, err)
	require.NotEmpty(t, result.Error)
	require.Empty(t, result.Publications)
}
