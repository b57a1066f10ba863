package storage

import (
	"database/sql"

	"nakasem/internal"
)

// New rows are appended after the current maximum position; existing rows
// keep theirs so re-imports do not reshuffle first-match-wins order.
func (d *DB) UpsertClients(clients []internal.ClientRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO clients (key, name, vat, region, position)
VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM clients))
ON CONFLICT(key) DO UPDATE SET
  name=excluded.name,
  vat=excluded.vat,
  region=excluded.region,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range clients {
		if _, err := stmt.Exec(c.Key, c.Name, c.TaxID, c.Region); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListClients() ([]internal.ClientRecord, error) {
	rows, err := d.conn.Query(`SELECT key, name, vat, region FROM clients ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ClientRecord
	for rows.Next() {
		var c internal.ClientRecord
		if err := rows.Scan(&c.Key, &c.Name, &c.TaxID, &c.Region); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) UpsertProducts(products []internal.ProductRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO products (code, name, type, width, rollLength, soldBy, basePrice, position)
VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM products))
ON CONFLICT(code) DO UPDATE SET
  name=excluded.name,
  type=excluded.type,
  width=excluded.width,
  rollLength=excluded.rollLength,
  soldBy=excluded.soldBy,
  basePrice=excluded.basePrice,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.Exec(p.Code, p.Name, p.Type, p.Width, p.RollLength, string(p.SoldBy.Normalize()), p.BasePrice); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListProducts() ([]internal.ProductRecord, error) {
	rows, err := d.conn.Query(`
SELECT code, name, type, width, rollLength, soldBy, basePrice
FROM products ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ProductRecord
	for rows.Next() {
		var p internal.ProductRecord
		var width sql.NullFloat64
		var soldBy string
		if err := rows.Scan(&p.Code, &p.Name, &p.Type, &width, &p.RollLength, &soldBy, &p.BasePrice); err != nil {
			return nil, err
		}
		if width.Valid {
			w := width.Float64
			p.Width = &w
		}
		p.SoldBy = internal.SaleMode(soldBy)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) UpsertPrices(prices internal.PriceOverrides) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO client_prices (clientKey, code, price) VALUES (?, ?, ?)
ON CONFLICT(clientKey, code) DO UPDATE SET price=excluded.price, updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for clientKey, byCode := range prices {
		for code, price := range byCode {
			if _, err := stmt.Exec(clientKey, code, price); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (d *DB) ListPrices() (internal.PriceOverrides, error) {
	rows, err := d.conn.Query(`SELECT clientKey, code, price FROM client_prices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := internal.PriceOverrides{}
	for rows.Next() {
		var clientKey, code string
		var price float64
		if err := rows.Scan(&clientKey, &code, &price); err != nil {
			return nil, err
		}
		out.Set(clientKey, code, price)
	}
	return out, rows.Err()
}

// ClearCatalog removes clients, products and price overrides. Notes keep
// their own copies of names and prices and are not touched.
func (d *DB) ClearCatalog() error {
	_, err := d.conn.Exec(`DELETE FROM client_prices; DELETE FROM products; DELETE FROM clients;`)
	return err
}
