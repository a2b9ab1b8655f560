package normalize

import (
	"fmt"
	"strings"

	"github.com/roach88/rostersync/internal/record"
)

// ImportDateLayout is how dates are written back for the portal import.
const ImportDateLayout = "2006-01-02"

// Denormalize lays a record back out as a positional row using the schema.
// Fields absent from the schema are ignored. A store reference that is not
// in the directory is written as the raw id.
func (n *Normalizer) Denormalize(rec record.Record) ([]string, error) {
	if !ValidPayroll(rec.Key()) {
		return nil, fmt.Errorf("%w: payroll number %q", ErrInvalidRow, rec.Key())
	}
	row := make([]string, n.schema.Width())
	for _, col := range n.schema {
		s, err := n.render(col, rec.Get(col.Field))
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", col.Field, err)
		}
		row[col.Index] = s
	}
	return row, nil
}

func (n *Normalizer) render(col Column, v record.Value) (string, error) {
	switch val := v.(type) {
	case record.Null:
		return "", nil
	case record.String:
		return string(val), nil
	case record.Decimal:
		return val.String(), nil
	case record.Bool:
		if val {
			return "TRUE", nil
		}
		return "", nil
	case record.Time:
		return val.Time().In(n.location).Format(ImportDateLayout), nil
	case record.RefList:
		if len(val) == 0 {
			return "", nil
		}
		if col.Kind == Store {
			if code, ok := n.reverse[val[0]]; ok {
				return code, nil
			}
		}
		return strings.Join(val, ","), nil
	default:
		return "", fmt.Errorf("unsupported value %s", record.Describe(v))
	}
}
