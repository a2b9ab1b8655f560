package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/roach88/rostersync/internal/diff"
	"github.com/roach88/rostersync/internal/record"
)

// EmployeeIndex maps payroll number to employee record id.
type EmployeeIndex map[string]string

// StoreDirectory maps store code to store record id.
type StoreDirectory map[string]string

// RawRecord is a record as returned by the list endpoint.
type RawRecord struct {
	ID     string                     `json:"id"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type listPage struct {
	Records []RawRecord `json:"records"`
	Offset  string      `json:"offset"`
}

// ListRecords pages through every record of table. When fields is not
// empty only those fields are requested.
func (c *Client) ListRecords(ctx context.Context, table string, fields ...string) ([]RawRecord, error) {
	var all []RawRecord
	offset := ""
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("pageSize", fmt.Sprint(pageSize))
		for _, f := range fields {
			q.Add("fields[]", f)
		}
		if offset != "" {
			q.Set("offset", offset)
		}
		var p listPage
		if err := c.do(ctx, http.MethodGet, table, q, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Records...)
		c.logger.Debug("listed page", "table", table, "page", page, "records", len(p.Records))
		if p.Offset == "" {
			return all, nil
		}
		offset = p.Offset
	}
}

// EmployeeIndex lists the employee table. Records without a payroll number
// are ignored; on duplicates the first record wins.
func (c *Client) EmployeeIndex(ctx context.Context) (EmployeeIndex, error) {
	m, err := c.lookup(ctx, c.cfg.EmployeesTable, c.cfg.KeyField)
	return EmployeeIndex(m), err
}

// StoreDirectory lists the stores table.
func (c *Client) StoreDirectory(ctx context.Context) (StoreDirectory, error) {
	m, err := c.lookup(ctx, c.cfg.StoresTable, c.cfg.StoreField)
	return StoreDirectory(m), err
}

func (c *Client) lookup(ctx context.Context, table, field string) (map[string]string, error) {
	records, err := c.ListRecords(ctx, table, field)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(records))
	for _, r := range records {
		key := scalarText(r.Fields[field])
		if key == "" {
			continue
		}
		if _, dup := out[key]; dup {
			c.logger.Warn("duplicate lookup key", "table", table, "key", key, "id", r.ID)
			continue
		}
		out[key] = r.ID
	}
	return out, nil
}

// scalarText renders a string or number field as text.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

type writeRecord struct {
	ID     string        `json:"id,omitempty"`
	Fields record.Record `json:"fields"`
}

type writeBody struct {
	Records []writeRecord `json:"records"`
}

// UpdateRecords sends one PATCH with up to MaxBatchSize records.
func (c *Client) UpdateRecords(ctx context.Context, updates []diff.Update) error {
	if len(updates) > MaxBatchSize {
		return fmt.Errorf("update %d records: %w", len(updates), ErrBatchTooLarge)
	}
	if len(updates) == 0 {
		return nil
	}
	body := writeBody{Records: make([]writeRecord, len(updates))}
	for i, u := range updates {
		body.Records[i] = writeRecord{ID: u.ID, Fields: u.Fields}
	}
	return c.do(ctx, http.MethodPatch, c.cfg.EmployeesTable, nil, body, nil)
}

// CreateRecords sends one POST with up to MaxBatchSize records.
func (c *Client) CreateRecords(ctx context.Context, creates []diff.Create) error {
	if len(creates) > MaxBatchSize {
		return fmt.Errorf("create %d records: %w", len(creates), ErrBatchTooLarge)
	}
	if len(creates) == 0 {
		return nil
	}
	body := writeBody{Records: make([]writeRecord, len(creates))}
	for i, cr := range creates {
		body.Records[i] = writeRecord{Fields: cr.Fields}
	}
	return c.do(ctx, http.MethodPost, c.cfg.EmployeesTable, nil, body, nil)
}
