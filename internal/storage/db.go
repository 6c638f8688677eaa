package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"coretax/internal"
	"coretax/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  emailId INTEGER,
  source TEXT NOT NULL,
  filename TEXT NOT NULL,
  hash TEXT NOT NULL,
  status TEXT NOT NULL,
  invoiceNumber TEXT,
  invoiceDate TEXT,
  supplierName TEXT,
  supplierNpwp TEXT,
  buyerName TEXT,
  buyerNpwp TEXT,
  itemCount INTEGER NOT NULL DEFAULT 0,
  calculatedTotal REAL,
  pdfTotal REAL,
  isValid INTEGER,
  difference REAL,
  tolerance REAL,
  error TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(hash);
CREATE INDEX IF NOT EXISTS idx_documents_invoice ON documents(invoiceNumber);

CREATE TABLE IF NOT EXISTS line_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId INTEGER NOT NULL,
  position INTEGER NOT NULL,
  no TEXT,
  itemCode TEXT,
  name TEXT NOT NULL,
  quantity REAL NOT NULL,
  unit TEXT,
  unitPrice REAL NOT NULL,
  discount REAL NOT NULL,
  total REAL NOT NULL,
  totalRaw TEXT,
  UNIQUE(documentId, position),
  FOREIGN KEY(documentId) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(s interface{ Scan(...any) error }) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := s.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// ClearEmailProcessing drops documents and items from an earlier run so reprocessing starts clean.
func (d *DB) ClearEmailProcessing(emailID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM line_items WHERE documentId IN (SELECT id FROM documents WHERE emailId = ?)`, emailID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE emailId = ?`, emailID); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertDocument stores one parse result and its items in a single transaction.
func (d *DB) InsertDocument(res internal.ParseResult, source internal.DocumentSource, hash string, emailID *int) (int64, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var calculated, pdfTotal, difference, tolerance *float64
	var isValid *bool
	if v := res.Validation; v != nil {
		calculated = util.FloatPtr(v.CalculatedTotal)
		pdfTotal = util.FloatPtr(v.PDFTotal)
		difference = util.FloatPtr(v.Difference)
		tolerance = util.FloatPtr(v.Tolerance)
		isValid = util.BoolPtr(v.IsValid)
	}

	m := res.Metadata
	result, err := tx.Exec(`
INSERT INTO documents (
  emailId, source, filename, hash, status,
  invoiceNumber, invoiceDate, supplierName, supplierNpwp, buyerName, buyerNpwp,
  itemCount, calculatedTotal, pdfTotal, isValid, difference, tolerance, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, emailID, string(source), res.Filename, hash, string(res.Status),
		m.InvoiceNumber, m.InvoiceDate, m.SupplierName, m.SupplierNPWP, m.BuyerName, m.BuyerNPWP,
		res.TotalItems, calculated, pdfTotal, isValid, difference, tolerance, util.OptionalString(res.Error))
	if err != nil {
		return 0, err
	}
	docID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
INSERT INTO line_items (documentId, position, no, itemCode, name, quantity, unit, unitPrice, discount, total, totalRaw)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, item := range res.Items {
		if _, err := stmt.Exec(
			docID, i+1, item.No, item.ItemCode, item.Name, item.Quantity, item.Unit,
			item.UnitPrice, item.Discount, item.Total, item.TotalRaw,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return docID, nil
}

const documentColumns = `
  id, emailId, source, filename, hash, status,
  invoiceNumber, invoiceDate, supplierName, supplierNpwp, buyerName, buyerNpwp,
  itemCount, calculatedTotal, pdfTotal, isValid, difference, error, createdAt`

func scanDocument(s interface{ Scan(...any) error }) (internal.DocumentRow, error) {
	var row internal.DocumentRow
	var source string
	err := s.Scan(
		&row.ID, &row.EmailID, &source, &row.Filename, &row.Hash, &row.Status,
		&row.InvoiceNumber, &row.InvoiceDate, &row.SupplierName, &row.SupplierNPWP, &row.BuyerName, &row.BuyerNPWP,
		&row.ItemCount, &row.Calculated, &row.PDFTotal, &row.IsValid, &row.Difference, &row.Error, &row.CreatedAt,
	)
	row.Source = internal.DocumentSource(source)
	return row, err
}

func (d *DB) GetDocument(id int) (*internal.DocumentRow, error) {
	row, err := scanDocument(d.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListDocumentsByEmail(emailID int) ([]internal.DocumentRow, error) {
	rows, err := d.conn.Query(`SELECT `+documentColumns+` FROM documents WHERE emailId = ? ORDER BY id ASC`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentRow
	for rows.Next() {
		row, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FindDocumentByHash returns the most recent successful parse of identical bytes.
func (d *DB) FindDocumentByHash(hash string) (*internal.DocumentRow, error) {
	row, err := scanDocument(d.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE hash = ? AND status = ? ORDER BY id DESC LIMIT 1`, hash, string(internal.StatusSuccess)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetDocumentItems(documentID int) ([]internal.LineItem, error) {
	rows, err := d.conn.Query(`
SELECT no, itemCode, name, quantity, unit, unitPrice, discount, total, totalRaw
FROM line_items WHERE documentId = ? ORDER BY position ASC
`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.LineItem{}
	for rows.Next() {
		var item internal.LineItem
		if err := rows.Scan(&item.No, &item.ItemCode, &item.Name, &item.Quantity, &item.Unit, &item.UnitPrice, &item.Discount, &item.Total, &item.TotalRaw); err != nil {
			return nil, err
		}
		item.UnitPriceFormatted = util.FormatIDR(item.UnitPrice)
		item.DiscountFormatted = util.FormatIDR(item.Discount)
		item.TotalFormatted = util.FormatIDR(item.Total)
		out = append(out, item)
	}
	return out, rows.Err()
}

// LoadResult rebuilds the parse result stored under documentID.
func (d *DB) LoadResult(documentID int) (internal.ParseResult, error) {
	doc, err := d.GetDocument(documentID)
	if err != nil {
		return internal.ParseResult{}, err
	}
	if doc == nil {
		return internal.ParseResult{}, fmt.Errorf("document not found: id=%d", documentID)
	}

	var tolerance sql.NullFloat64
	if err := d.conn.QueryRow(`SELECT tolerance FROM documents WHERE id = ?`, documentID).Scan(&tolerance); err != nil {
		return internal.ParseResult{}, err
	}

	items, err := d.GetDocumentItems(documentID)
	if err != nil {
		return internal.ParseResult{}, err
	}

	res := internal.ParseResult{
		Status:   internal.ParseStatus(doc.Status),
		Filename: doc.Filename,
		Metadata: internal.InvoiceMetadata{
			InvoiceNumber: doc.InvoiceNumber,
			InvoiceDate:   doc.InvoiceDate,
			SupplierName:  doc.SupplierName,
			SupplierNPWP:  doc.SupplierNPWP,
			BuyerName:     doc.BuyerName,
			BuyerNPWP:     doc.BuyerNPWP,
		},
		Items:      items,
		TotalItems: len(items),
		Error:      util.Deref(doc.Error),
	}
	if doc.Calculated != nil && doc.PDFTotal != nil && doc.Difference != nil && doc.IsValid != nil {
		res.Validation = &internal.ValidationResult{
			CalculatedTotal:          *doc.Calculated,
			CalculatedTotalFormatted: util.FormatRupiah(*doc.Calculated),
			PDFTotal:                 *doc.PDFTotal,
			PDFTotalFormatted:        util.FormatRupiah(*doc.PDFTotal),
			IsValid:                  *doc.IsValid,
			Difference:               *doc.Difference,
			DifferenceFormatted:      util.FormatRupiah(*doc.Difference),
			Tolerance:                tolerance.Float64,
		}
	}
	return res, nil
}

func (d *DB) InsertRun(traceID string, emailID *int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}
