// Package archive mirrors parse results into a shared Postgres database for reporting.
package archive

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"coretax/internal"
	"coretax/internal/util"
)

type Invoice struct {
	gorm.Model
	Filename        string `gorm:"index"`
	Hash            string `gorm:"index"`
	Source          string
	Status          string
	InvoiceNumber   string `gorm:"index"`
	InvoiceDate     string
	SupplierName    string
	SupplierNPWP    string `gorm:"column:supplier_npwp;index"`
	BuyerName       string
	BuyerNPWP       string `gorm:"column:buyer_npwp"`
	TotalItems      int
	CalculatedTotal float64
	PDFTotal        float64 `gorm:"column:pdf_total"`
	Difference      float64
	IsValid         bool
	Error           string
	Items           []InvoiceItem
}

type InvoiceItem struct {
	gorm.Model
	InvoiceID uint `gorm:"index"`
	Position  int
	No        string
	ItemCode  string
	Name      string
	Quantity  float64
	Unit      string
	UnitPrice float64
	Discount  float64
	Total     float64
	TotalRaw  string
}

type Store struct {
	db *gorm.DB
}

// Open connects to databaseURL and migrates the archive tables.
func Open(databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect archive: %w", err)
	}
	return New(db)
}

func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Invoice{}, &InvoiceItem{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save implements pipeline.ResultSink.
func (s *Store) Save(ctx context.Context, res internal.ParseResult, source internal.DocumentSource, hash string) error {
	inv := ToInvoice(res, source, hash)
	return s.db.WithContext(ctx).Create(&inv).Error
}

func (s *Store) FindByInvoiceNumber(ctx context.Context, number string) ([]Invoice, error) {
	var out []Invoice
	err := s.db.WithContext(ctx).Preload("Items").Where("invoice_number = ?", number).Order("id").Find(&out).Error
	return out, err
}

// ToInvoice maps a parse result onto archive rows.
func ToInvoice(res internal.ParseResult, source internal.DocumentSource, hash string) Invoice {
	m := res.Metadata
	inv := Invoice{
		Filename:      res.Filename,
		Hash:          hash,
		Source:        string(source),
		Status:        string(res.Status),
		InvoiceNumber: util.Deref(m.InvoiceNumber),
		InvoiceDate:   util.Deref(m.InvoiceDate),
		SupplierName:  util.Deref(m.SupplierName),
		SupplierNPWP:  util.Deref(m.SupplierNPWP),
		BuyerName:     util.Deref(m.BuyerName),
		BuyerNPWP:     util.Deref(m.BuyerNPWP),
		TotalItems:    res.TotalItems,
		Error:         res.Error,
	}
	if v := res.Validation; v != nil {
		inv.CalculatedTotal = v.CalculatedTotal
		inv.PDFTotal = v.PDFTotal
		inv.Difference = v.Difference
		inv.IsValid = v.IsValid
	}
	for i, item := range res.Items {
		inv.Items = append(inv.Items, InvoiceItem{
			Position:  i + 1,
			No:        item.No,
			ItemCode:  item.ItemCode,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			Total:     item.Total,
			TotalRaw:  item.TotalRaw,
		})
	}
	return inv
}
