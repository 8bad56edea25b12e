package pje

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// missingField is the placeholder stored when the portal omits a field.
const missingField = "N/A"

// ParsedPage is the outcome of parsing one portal result page.
type ParsedPage struct {
	Publications []Publication
	TotalFound   int
	CurrentPage  int
	TotalPages   int
}

// Parser extracts publications and pagination data from portal result HTML.
// The portal has shipped at least two markups for every element, so each
// field has a fallback selector, and individual broken records must not sink
// a whole page.
type Parser struct {
	logger *zap.Logger
	clock  Clock
	hasher Hasher
}

// NewParser constructs a Parser.
func NewParser(logger *zap.Logger, clock Clock, hasher Hasher) *Parser {
	return &Parser{logger: logger, clock: clock, hasher: hasher}
}

var (
	totalResultsRe = regexp.MustCompile(`de\s+(\d+)\s+resultados`)
	looseDateRe    = regexp.MustCompile(`(\d{2})[/\-](\d{2})[/\-](\d{4})`)
)

// publishedDateLayouts are tried in order before falling back to a loose
// day-month-year scan.
var publishedDateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006"}

// Parse interprets a result page. pageSize is the page length the caller
// asked for; it drives the page-count computation because the portal does
// not echo it back.
func (p *Parser) Parse(body []byte, pageSize int) (ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ParsedPage{}, &ParseError{Reason: "building document", Err: err}
	}

	page := ParsedPage{Publications: p.parsePublications(doc)}
	page.TotalFound, page.CurrentPage, page.TotalPages = p.parsePagination(doc, pageSize)
	if page.TotalFound == 0 && len(page.Publications) > 0 {
		// Result pages short enough to skip the pagination block still
		// carry records; count what is actually there.
		page.TotalFound = len(page.Publications)
		page.TotalPages = PageCount(page.TotalFound, pageSize)
	}
	return page, nil
}

func (p *Parser) parsePublications(doc *goquery.Document) []Publication {
	containers := doc.Find("div.publicacao")
	if containers.Length() == 0 {
		containers = doc.Find("div.resultado-item")
	}

	pubs := make([]Publication, 0, containers.Length())
	containers.Each(func(i int, s *goquery.Selection) {
		pub, ok := p.parsePublication(i, s)
		if !ok {
			return
		}
		pubs = append(pubs, pub)
	})
	return pubs
}

func (p *Parser) parsePublication(index int, s *goquery.Selection) (Publication, bool) {
	caseNumber := firstText(s, ".numero-processo", ".processo-numero")
	content := firstText(s, ".conteudo-publicacao", ".texto-publicacao")
	if caseNumber == "" && content == "" {
		p.logger.Warn("dropping result without case number or content", zap.Int("index", index))
		return Publication{}, false
	}
	if caseNumber == "" {
		caseNumber = missingField
	}
	if content == "" {
		content = missingField
	}

	court := firstText(s, ".orgao-julgador", ".orgao")
	if court == "" {
		court = missingField
	}
	tribunal := strings.TrimSpace(s.Find("div.tribunal").First().Text())
	if tribunal == "" {
		tribunal = missingField
	}

	rawDate := firstText(s, ".data-publicacao", ".data")
	publishedAt, ok := parsePublishedDate(rawDate)
	if !ok {
		publishedAt = p.clock.Now()
		p.logger.Warn("unparseable publication date, using current time",
			zap.Int("index", index),
			zap.String("raw_date", rawDate),
		)
	}

	sourceURL, _ := s.Find("a.link-processo").First().Attr("href")

	hash, err := ComputeIdentityHash(p.hasher, caseNumber, publishedAt, court)
	if err != nil {
		p.logger.Error("dropping result, identity hash failed", zap.Int("index", index), zap.Error(err))
		return Publication{}, false
	}

	return Publication{
		IdentityHash: hash,
		CaseNumber:   caseNumber,
		PublishedAt:  publishedAt,
		Court:        court,
		Content:      content,
		TribunalName: tribunal,
		SourceURL:    sourceURL,
	}, true
}

func (p *Parser) parsePagination(doc *goquery.Document, pageSize int) (totalFound, currentPage, totalPages int) {
	container := doc.Find("div.paginacao")
	if container.Length() == 0 {
		container = doc.Find("ul.pagination")
	}
	if container.Length() == 0 {
		return 0, 1, 1
	}

	if m := totalResultsRe.FindStringSubmatch(container.Text()); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			totalFound = n
		}
	}

	currentPage = 1
	if raw := strings.TrimSpace(container.Find("li.active span").First().Text()); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			currentPage = n
		}
	}

	totalPages = PageCount(totalFound, pageSize)
	return totalFound, currentPage, totalPages
}

// parsePublishedDate tries the known portal layouts, then a loose
// day-month-year scan anywhere in the string.
func parsePublishedDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if m := looseDateRe.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() == day && int(t.Month()) == month && t.Year() == year {
			return t, true
		}
	}
	return time.Time{}, false
}

// firstText returns the trimmed text of the first selector that matches a
// non-empty element.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
