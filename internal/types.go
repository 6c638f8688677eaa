package internal

// DocumentSource records how a PDF entered the system.
type DocumentSource string

const (
	SourceUpload DocumentSource = "upload"
	SourceCLI    DocumentSource = "cli"
	SourceEmail  DocumentSource = "email"
)

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type ParseStatus string

const (
	StatusSuccess ParseStatus = "success"
	StatusError   ParseStatus = "error"
)

type LineItem struct {
	No                 string  `json:"no"`
	ItemCode           string  `json:"item_code"`
	Name               string  `json:"nama_barang"`
	Quantity           float64 `json:"quantity"`
	Unit               string  `json:"unit"`
	UnitPrice          float64 `json:"unit_price"`
	UnitPriceFormatted string  `json:"unit_price_formatted"`
	Discount           float64 `json:"discount"`
	DiscountFormatted  string  `json:"discount_formatted"`
	Total              float64 `json:"total"`
	TotalFormatted     string  `json:"total_formatted"`
	TotalRaw           string  `json:"total_raw"`
}

type InvoiceMetadata struct {
	InvoiceNumber *string `json:"invoice_number"`
	InvoiceDate   *string `json:"invoice_date"`
	SupplierName  *string `json:"supplier_name"`
	SupplierNPWP  *string `json:"supplier_npwp"`
	BuyerName     *string `json:"buyer_name"`
	BuyerNPWP     *string `json:"buyer_npwp"`
}

type ValidationResult struct {
	CalculatedTotal          float64 `json:"calculated_total"`
	CalculatedTotalFormatted string  `json:"calculated_total_formatted"`
	PDFTotal                 float64 `json:"pdf_total"`
	PDFTotalFormatted        string  `json:"pdf_total_formatted"`
	IsValid                  bool    `json:"is_valid"`
	Difference               float64 `json:"difference"`
	DifferenceFormatted      string  `json:"difference_formatted"`
	Tolerance                float64 `json:"tolerance"`
}

type ParseResult struct {
	Status     ParseStatus       `json:"status"`
	Filename   string            `json:"filename"`
	Metadata   InvoiceMetadata   `json:"metadata"`
	Items      []LineItem        `json:"items"`
	TotalItems int               `json:"total_items"`
	Validation *ValidationResult `json:"validation"`
	Error      string            `json:"error,omitempty"`
}

type BatchResult struct {
	Status       string        `json:"status"`
	TotalFiles   int           `json:"total_files"`
	TotalSuccess int           `json:"total_success"`
	TotalFailed  int           `json:"total_failed"`
	Results      []ParseResult `json:"results"`
}

type DocumentRow struct {
	ID            int
	EmailID       *int
	Source        DocumentSource
	Filename      string
	Hash          string
	Status        string
	InvoiceNumber *string
	InvoiceDate   *string
	SupplierName  *string
	SupplierNPWP  *string
	BuyerName     *string
	BuyerNPWP     *string
	ItemCount     int
	Calculated    *float64
	PDFTotal      *float64
	IsValid       *bool
	Difference    *float64
	Error         *string
	CreatedAt     string
}
