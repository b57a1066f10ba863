package storage

import (
	"database/sql"
	"errors"
	"strings"

	"nakasem/internal"
)

const noteColumns = `id, status, clientName, clientVat, clientKey, region, docNum, docDate, pageNumber, sourceFile, createdAt`

// NoteFilter narrows ListNotes. Zero values match everything.
type NoteFilter struct {
	Status  internal.NoteStatus
	EmailID *int
}

// InsertNote stores a note with its items. The note must already carry an id
// and creation time; stored notes are never rewritten.
func (d *DB) InsertNote(note internal.DeliveryNote, emailID *int) error {
	if note.ID == "" {
		return errors.New("note id is required")
	}
	if note.Status == "" {
		note.Status = internal.NotePending
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
INSERT INTO delivery_notes (id, status, clientName, clientVat, clientKey, region, docNum, docDate, pageNumber, sourceFile, emailId, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, note.ID, string(note.Status), note.ClientName, note.ClientTaxID, note.ClientKey, note.Region,
		note.DocNumber, note.DocDate, note.PageNumber, note.SourceFile, emailID, note.CreatedAt); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO note_items (noteId, lineNo, code, name, quantity, meters, pieces, price, revenue, soldBy, rollLength)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, item := range note.Items {
		if _, err := stmt.Exec(note.ID, i, item.Code, item.Name, item.Quantity, item.Meters, item.Pieces,
			item.UnitPrice, item.Revenue, string(item.SoldBy), item.RollLength); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetNote(id string) (*internal.DeliveryNote, error) {
	notes, err := d.queryNotes(`SELECT `+noteColumns+` FROM delivery_notes WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return &notes[0], nil
}

func (d *DB) ListNotes(filter NoteFilter) ([]internal.DeliveryNote, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.EmailID != nil {
		where = append(where, "emailId = ?")
		args = append(args, *filter.EmailID)
	}

	query := `SELECT ` + noteColumns + ` FROM delivery_notes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq ASC`
	return d.queryNotes(query, args...)
}

// AcceptNote moves a pending note to accepted. Accepting an accepted note is a no-op.
func (d *DB) AcceptNote(id string) error {
	res, err := d.conn.Exec(`UPDATE delivery_notes SET status = ? WHERE id = ?`, string(internal.NoteAccepted), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("note", id)
	}
	return nil
}

func (d *DB) DeleteNote(id string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM note_items WHERE noteId = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM delivery_notes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("note", id)
	}
	return tx.Commit()
}

func (d *DB) queryNotes(query string, args ...any) ([]internal.DeliveryNote, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}

	var out []internal.DeliveryNote
	for rows.Next() {
		var n internal.DeliveryNote
		var status string
		var clientKey, docNum, docDate sql.NullString
		if err := rows.Scan(&n.ID, &status, &n.ClientName, &n.ClientTaxID, &clientKey, &n.Region,
			&docNum, &docDate, &n.PageNumber, &n.SourceFile, &n.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		n.Status = internal.NoteStatus(status)
		n.ClientKey = nullString(clientKey)
		n.DocNumber = nullString(docNum)
		n.DocDate = nullString(docDate)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Single connection: the note cursor must be closed before items are read.
	rows.Close()

	for i := range out {
		items, err := d.listItems(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
		out[i].RecomputeTotals()
	}
	return out, nil
}

func (d *DB) listItems(noteID string) ([]internal.ExtractedLineItem, error) {
	rows, err := d.conn.Query(`
SELECT code, name, quantity, meters, pieces, price, revenue, soldBy, rollLength
FROM note_items WHERE noteId = ? ORDER BY lineNo ASC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []internal.ExtractedLineItem{}
	for rows.Next() {
		var item internal.ExtractedLineItem
		var soldBy string
		if err := rows.Scan(&item.Code, &item.Name, &item.Quantity, &item.Meters, &item.Pieces,
			&item.UnitPrice, &item.Revenue, &soldBy, &item.RollLength); err != nil {
			return nil, err
		}
		item.SoldBy = internal.SaleMode(soldBy)
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
