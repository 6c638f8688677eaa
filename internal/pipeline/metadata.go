package pipeline

import (
	"regexp"
	"strings"

	"coretax/internal"
	"coretax/internal/util"
)

const (
	supplierHeader = "Pengusaha Kena Pajak:"
	buyerHeader    = "Pembeli Barang Kena Pajak"
)

var (
	reInvoiceNumber = regexp.MustCompile(`(?:Kode dan )?Nomor Seri Faktur Pajak\s*:\s*(\d+)`)
	reDateLong      = regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:Januari|Februari|Maret|April|Mei|Juni|Juli|Agustus|September|Oktober|November|Desember)\s+\d{4}\b`)
	reDateNumeric   = regexp.MustCompile(`\b\d{2}[-/]\d{2}[-/]\d{4}\b`)
	reName          = regexp.MustCompile(`Nama\s*:\s*([^\n]+)`)
	reNPWP          = regexp.MustCompile(`NPWP\s*:\s*([0-9][0-9.\-/ ]*)`)
)

// ExtractMetadata reads the invoice header fields from the document text. Missing fields stay nil.
func ExtractMetadata(fullText string) internal.InvoiceMetadata {
	var meta internal.InvoiceMetadata

	if m := reInvoiceNumber.FindStringSubmatch(fullText); m != nil {
		meta.InvoiceNumber = util.StringPtr(m[1])
	}

	if m := reDateLong.FindString(fullText); m != "" {
		meta.InvoiceDate = util.StringPtr(util.CollapseSpaces(m))
	} else if m := reDateNumeric.FindString(fullText); m != "" {
		meta.InvoiceDate = util.StringPtr(m)
	}

	supplier, buyer := partySections(fullText)
	meta.SupplierName, meta.SupplierNPWP = partyIdentity(supplier)
	meta.BuyerName, meta.BuyerNPWP = partyIdentity(buyer)

	return meta
}

// partySections splits the text into the supplier block (up to the buyer header) and the buyer block.
func partySections(text string) (supplier, buyer string) {
	buyerAt := strings.Index(text, buyerHeader)
	if at := strings.Index(text, supplierHeader); at >= 0 {
		end := len(text)
		if buyerAt > at {
			end = buyerAt
		}
		supplier = text[at+len(supplierHeader) : end]
	}
	if buyerAt >= 0 {
		buyer = text[buyerAt+len(buyerHeader):]
	}
	return supplier, buyer
}

func partyIdentity(section string) (name, npwp *string) {
	if section == "" {
		return nil, nil
	}
	if m := reName.FindStringSubmatch(section); m != nil {
		name = util.OptionalString(m[1])
	}
	if m := reNPWP.FindStringSubmatch(section); m != nil {
		if digits := util.DigitsOnly(m[1]); digits != "" {
			npwp = &digits
		}
	}
	return name, npwp
}
