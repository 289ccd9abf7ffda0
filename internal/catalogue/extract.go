package catalogue

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	cardSelector         = "article.product_pod"
	cardLinkSelector     = "h3 a"
	priceSelector        = "p.price_color"
	availabilitySelector = "p.instock.availability"
	nextLinkSelector     = "li.next a"

	descriptionSelector = "div#product_description"
	breadcrumbSelector  = "ul.breadcrumb"
	attributesSelector  = "table.table.table-striped"

	categoryCrumbIndex = 2
)

// CardError describes an item card that was skipped.
type CardError struct {
	Index int
	Err   error
}

func (e CardError) Error() string {
	return fmt.Sprintf("card %d: %v", e.Index, e.Err)
}

func (e CardError) Unwrap() error {
	return e.Err
}

// ExtractCards reads every item card on a listing page. Cards that lack a
// required field are reported in the second return value and left out of the
// records; they never affect their neighbours.
func ExtractCards(doc *goquery.Document, resolver Resolver) ([]SummaryRecord, []CardError) {
	var (
		records []SummaryRecord
		skipped []CardError
	)
	doc.Find(cardSelector).Each(func(i int, card *goquery.Selection) {
		record, err := extractCard(card, resolver)
		if err != nil {
			skipped = append(skipped, CardError{Index: i, Err: err})
			return
		}
		records = append(records, record)
	})
	return records, skipped
}

func extractCard(card *goquery.Selection, resolver Resolver) (SummaryRecord, error) {
	link := card.Find(cardLinkSelector).First()
	title := attr(link, "title", "card title")
	if !title.OK() {
		return SummaryRecord{}, title.Err
	}
	href := attr(link, "href", "card link")
	if !href.OK() {
		return SummaryRecord{}, href.Err
	}
	price := text(card.Find(priceSelector), "price")
	if !price.OK() {
		return SummaryRecord{}, price.Err
	}
	availability := text(card.Find(availabilitySelector), "availability")
	if !availability.OK() {
		return SummaryRecord{}, availability.Err
	}
	itemURL, err := resolver.ItemURL(href.Value)
	if err != nil {
		return SummaryRecord{}, fmt.Errorf("card link %q: %w", href.Value, ErrMalformed)
	}
	return SummaryRecord{
		Title:        title.Value,
		Price:        price.Value,
		Availability: strings.TrimSpace(availability.Value),
		URL:          itemURL,
	}, nil
}

// ExtractNextHref returns the raw href of the "next page" control.
func ExtractNextHref(doc *goquery.Document) FieldResult {
	return attr(doc.Find(nextLinkSelector).First(), "href", "next link")
}

// ExtractDetail reads the enrichment fields from a detail page. Absent blocks
// fall back to placeholders; a block that exists but has an unexpected shape
// fails the whole fragment.
func ExtractDetail(doc *goquery.Document) (DetailFragment, error) {
	description, err := extractDescription(doc).OrPlaceholder(DescriptionPlaceholder)
	if err != nil {
		return DetailFragment{}, err
	}
	category, err := extractCategory(doc).OrPlaceholder(CategoryPlaceholder)
	if err != nil {
		return DetailFragment{}, err
	}
	upc, err := extractUPC(doc).OrPlaceholder(UPCPlaceholder)
	if err != nil {
		return DetailFragment{}, err
	}
	return DetailFragment{
		Description: description,
		Category:    category,
		UPC:         upc,
	}, nil
}

func extractDescription(doc *goquery.Document) FieldResult {
	heading := doc.Find(descriptionSelector).First()
	if heading.Length() == 0 {
		return Missing("description block")
	}
	para := heading.NextAllFiltered("p").First()
	if para.Length() == 0 {
		return Malformed("description paragraph")
	}
	return Found(para.Text())
}

func extractCategory(doc *goquery.Document) FieldResult {
	crumbs := doc.Find(breadcrumbSelector).First()
	if crumbs.Length() == 0 {
		return Missing("breadcrumb")
	}
	entries := crumbs.Find("li")
	if entries.Length() <= categoryCrumbIndex {
		return Malformed("breadcrumb category entry")
	}
	return Found(strings.TrimSpace(entries.Eq(categoryCrumbIndex).Text()))
}

func extractUPC(doc *goquery.Document) FieldResult {
	table := doc.Find(attributesSelector).First()
	if table.Length() == 0 {
		return Missing("attributes table")
	}
	cell := table.Find("td").First()
	if cell.Length() == 0 {
		return Malformed("attributes table cell")
	}
	return Found(cell.Text())
}

func attr(sel *goquery.Selection, name, what string) FieldResult {
	if sel.Length() == 0 {
		return Missing(what)
	}
	value, ok := sel.Attr(name)
	if !ok {
		return Missing(what + " " + name)
	}
	return Found(value)
}

func text(sel *goquery.Selection, what string) FieldResult {
	if sel.Length() == 0 {
		return Missing(what)
	}
	return Found(sel.First().Text())
}
