package pje

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const resultPageHTML = `<!DOCTYPE html>
<html><body>
<div class="resultados">
  <div class="publicacao">
    <span class="numero-processo">1234567-89.2023.8.26.0100</span>
    <span class="data-publicacao">15/03/2023</span>
    <span class="orgao-julgador">1ª Vara Cível</span>
    <div class="tribunal">TJSP</div>
    <div class="conteudo-publicacao">Intimação da sentença proferida nos autos.</div>
    <a class="link-processo" href="https://comunica.pje.jus.br/processo/100">ver processo</a>
  </div>
  <div class="publicacao">
    <span class="numero-processo">7654321-98.2023.8.26.0200</span>
    <span class="data-publicacao">16/03/2023</span>
    <span class="orgao-julgador">2ª Vara Criminal</span>
    <div class="tribunal">TJSP</div>
    <div class="conteudo-publicacao">Despacho de mero expediente.</div>
  </div>
</div>
<div class="paginacao">
  <span>Exibindo 1 a 2 de 120 resultados</span>
  <ul>
    <li class="active"><span>1</span></li>
    <li><span>2</span></li>
  </ul>
</div>
</body></html>`

func newTestParser(now time.Time) *Parser {
	return NewParser(zap.NewNop(), &fakeClock{now: now}, &fakeHasher{})
}

func TestParserExtractsPublications(t *testing.T) {
	t.Parallel()

	p := newTestParser(time.Date(2023, time.March, 20, 12, 0, 0, 0, time.UTC))
	page, err := p.Parse([]byte(resultPageHTML), 50)
	require.NoError(t, err)
	require.Len(t, page.Publications, 2)

	first := page.Publications[0]
	require.Equal(t, "1234567-89.2023.8.26.0100", first.CaseNumber)
	require.Equal(t, time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC), first.PublishedAt)
	require.Equal(t, "1ª Vara Cível", first.Court)
	require.Equal(t, "TJSP", first.TribunalName)
	require.Equal(t, "Intimação da sentença proferida nos autos.", first.Content)
	require.Equal(t, "https://comunica.pje.jus.br/processo/100", first.SourceURL)
	require.Equal(t, "1234567-89.2023.8.26.0100|2023-03-15T00:00:00Z|1ª Vara Cível", first.IdentityHash)

	second := page.Publications[1]
	require.Equal(t, "7654321-98.2023.8.26.0200", second.CaseNumber)
	require.Empty(t, second.SourceURL)
}

func TestParserPagination(t *testing.T) {
	t.Parallel()

	p := newTestParser(time.Now())
	page, err := p.Parse([]byte(resultPageHTML), 50)
	require.NoError(t, err)
	require.Equal(t, 120, page.TotalFound)
	require.Equal(t, 1, page.CurrentPage)
	require.Equal(t, 3, page.TotalPages)
}

func TestParserPaginationHonorsRequestedPageSize(t *testing.T) {
	t.Parallel()

	p := newTestParser(time.Now())
	page, err := p.Parse([]byte(resultPageHTML), 25)
	require.NoError(t, err)
	require.Equal(t, 120, page.TotalFound)
	require.Equal(t, 5, page.TotalPages)
}

func TestParserSecondarySelectors(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="resultado-item">
  <span class="processo-numero">1111111-11.2023.8.26.0001</span>
  <span class="data">2023-03-16</span>
  <span class="orgao">3ª Vara de Família</span>
  <div class="texto-publicacao">Citação expedida.</div>
</div>
<ul class="pagination">
  <li class="info">Mostrando 1 a 1 de 7 resultados</li>
  <li class="active"><span>2</span></li>
</ul>
</body></html>`

	p := newTestParser(time.Now())
	page, err := p.Parse([]byte(html), 50)
	require.NoError(t, err)
	require.Len(t, page.Publications, 1)

	pub := page.Publications[0]
	require.Equal(t, "1111111-11.2023.8.26.0001", pub.CaseNumber)
	require.Equal(t, time.Date(2023, time.March, 16, 0, 0, 0, 0, time.UTC), pub.PublishedAt)
	require.Equal(t, "3ª Vara de Família", pub.Court)
	require.Equal(t, "Citação expedida.", pub.Content)
	require.Equal(t, "N/A", pub.TribunalName)

	require.Equal(t, 7, page.TotalFound)
	require.Equal(t, 2, page.CurrentPage)
	require.Equal(t, 1, page.TotalPages)
}

func TestParserDefaultsMissingFields(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="publicacao">
  <div class="conteudo-publicacao">Conteúdo sem número de processo.</div>
</div>
<div class="publicacao">
  <span class="numero-processo">2222222-22.2023.8.26.0002</span>
</div>
</body></html>`

	now := time.Date(2023, time.April, 1, 9, 30, 0, 0, time.UTC)
	p := newTestParser(now)
	page, err := p.Parse([]byte(html), 50)
	require.NoError(t, err)
	require.Len(t, page.Publications, 2)

	require.Equal(t, "N/A", page.Publications[0].CaseNumber)
	require.Equal(t, "N/A", page.Publications[0].Court)
	require.Equal(t, "N/A", page.Publications[0].TribunalName)
	require.Equal(t, now, page.Publications[0].PublishedAt)

	require.Equal(t, "N/A", page.Publications[1].Content)
}

func TestParserDropsRecordsWithoutCaseNumberAndContent(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="publicacao">
  <span class="data-publicacao">15/03/2023</span>
  <span class="orgao-julgador">1ª Vara</span>
</div>
<div class="publicacao">
  <span class="numero-processo">3333333-33.2023.8.26.0003</span>
  <div class="conteudo-publicacao">Válida.</div>
</div>
</body></html>`

	p := newTestParser(time.Now())
	page, err := p.Parse([]byte(html), 50)
	require.NoError(t, err)
	require.Len(t, page.Publications, 1)
	require.Equal(t, "3333333-33.2023.8.26.0003", page.Publications[0].CaseNumber)
}

func TestParserDateFallbacks(t *testing.T) {
	t.Parallel()

	now := time.Date(2023, time.May, 2, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "slash layout",
			raw:  "15/03/2023",
			want: time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "iso layout",
			raw:  "2023-03-16",
			want: time.Date(2023, time.March, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "dash layout",
			raw:  "17-03-2023",
			want: time.Date(2023, time.March, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "date embedded in text",
			raw:  "Disponibilização: 18/03/2023 10:45",
			want: time.Date(2023, time.March, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "invalid day falls back to now",
			raw:  "99/99/2023",
			want: now,
		},
		{
			name: "empty falls back to now",
			raw:  "",
			want: now,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			html := `<html><body><div class="publicacao">
<span class="numero-processo">4444444-44.2023.8.26.0004</span>
<span class="data-publicacao">` + tc.raw + `</span>
<div class="conteudo-publicacao">Texto.</div>
</div></body></html>`

			p := newTestParser(now)
			page, err := p.Parse([]byte(html), 50)
			require.NoError(t, err)
			require.Len(t, page.Publications, 1)
			require.Equal(t, tc.want, page.Publications[0].PublishedAt)
		})
	}
}

func TestParserNoPaginationContainer(t *testing.T) {
	t.Parallel()

	html := `<html><body><p>Nenhuma publicação encontrada para os critérios informados.</p></body></html>`
	p := newTestParser(time.Now())
	page, err := p.Parse([]byte(html), 50)
	require.NoError(t, err)
	require.Empty(t, page.Publications)
	require.Equal(t, 0, page.TotalFound)
	require.Equal(t, 1, page.CurrentPage)
	require.Equal(t, 1, page.TotalPages)
}

func TestParserCountsRecordsWhenPaginationAbsent(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="publicacao">
  <span class="numero-processo">5555555-55.2023.8.26.0005</span>
  <span class="data-publicacao">20/03/2023</span>
  <div class="conteudo-publicacao">Sentença publicada.</div>
</div>
</body></html>`

	p := newTestParser(time.Now())
	page, err := p.Parse([]byte(html), 50)
	require.NoError(t, err)
	require.Len(t, page.Publications, 1)
	require.Equal(t, 1, page.TotalFound)
	require.Equal(t, 1, page.TotalPages)
}
