// Package catalogue defines the records, extraction rules, and merge semantics
// shared by every stage of a catalogue crawl.
package catalogue

// Canonical field names, in export order.
const (
	FieldTitle        = "Title"
	FieldPrice        = "Price"
	FieldAvailability = "Availability"
	FieldCategory     = "Category"
	FieldUPC          = "UPC"
	FieldDescription  = "Description"
	FieldURL          = "URL"
)

// Placeholders used when a detail page was fetched but lacks an element.
const (
	DescriptionPlaceholder = "No description available."
	CategoryPlaceholder    = "Unknown"
	UPCPlaceholder         = "N/A"
)

// CanonicalFields is the fixed prefix of every FieldSchema.
var CanonicalFields = FieldSchema{
	FieldTitle,
	FieldPrice,
	FieldAvailability,
	FieldCategory,
	FieldUPC,
	FieldDescription,
	FieldURL,
}

// SummaryRecord is the per-item data found on a listing page.
// Price is kept exactly as displayed, currency symbol included.
type SummaryRecord struct {
	Title        string `json:"title"`
	Price        string `json:"price"`
	Availability string `json:"availability"`
	URL          string `json:"url"`
}

// Fields returns the record as an OutputRow.
func (r SummaryRecord) Fields() OutputRow {
	return OutputRow{
		FieldTitle:        r.Title,
		FieldPrice:        r.Price,
		FieldAvailability: r.Availability,
		FieldURL:          r.URL,
	}
}

// DetailFragment holds the fields only available on an item's detail page.
// A nil *DetailFragment means the detail page could not be used at all.
type DetailFragment struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	UPC         string `json:"upc"`
}

// Fields returns the fragment as an OutputRow.
func (f DetailFragment) Fields() OutputRow {
	return OutputRow{
		FieldDescription: f.Description,
		FieldCategory:    f.Category,
		FieldUPC:         f.UPC,
	}
}

// Enrichment pairs a record with the outcome of its detail fetch.
type Enrichment struct {
	Record   SummaryRecord
	Fragment *DetailFragment
}

// OutputRow maps field names to text values for one exported item.
type OutputRow map[string]string

// FieldSchema is the ordered list of export columns.
type FieldSchema []string
