package normalize

import "github.com/roach88/rostersync/internal/record"

// Kind selects the coercion applied to a cell.
type Kind int

const (
	// Text is trimmed free text; blank becomes Null.
	Text Kind = iota

	// Date is a calendar date pinned to the reference time of day.
	Date

	// Number is a decimal; blank or non-numeric becomes Null.
	Number

	// Flag is true for any non-blank cell except FALSE and 0.
	Flag

	// Category wraps a non-blank cell in a one-element RefList.
	Category

	// Store resolves a store code through the store directory.
	Store
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Date:
		return "date"
	case Number:
		return "number"
	case Flag:
		return "flag"
	case Category:
		return "category"
	case Store:
		return "store"
	default:
		return "unknown"
	}
}

// Column maps one positional cell to a record field.
// Index is zero based: 0 is spreadsheet column A.
type Column struct {
	Index int
	Field string
	Kind  Kind
}

// Schema is an ordered column table.
type Schema []Column

// Width returns the number of cells a row needs to hold every column.
func (s Schema) Width() int {
	w := 0
	for _, c := range s {
		if c.Index+1 > w {
			w = c.Index + 1
		}
	}
	return w
}

// Field names of the employee table.
const (
	FieldFirstName      = "LiQ - First Name✏️"
	FieldLastName       = "LiQ - Last Name✏️"
	FieldDateOfBirth    = "LiQ - Date Of Birth✏️"
	FieldEmail          = "LiQ - Email✏️"
	FieldHiredDate      = "LiQ - Hired Date"
	FieldPosition       = "LiQ - Position"
	FieldSalaried       = "LiQ - Salaried Employee"
	FieldStandardRate   = "LiQ - Standard Rate"
	FieldAllocatedStore = "LiQ - Allocated Store"
	FieldClerkID        = "LiQ - Clerk ID"
)

// EmployeeSchema is the column layout of the portal's employee export.
var EmployeeSchema = Schema{
	{1, record.KeyField, Text},
	{3, FieldFirstName, Text},
	{5, FieldLastName, Text},
	{7, FieldDateOfBirth, Date},
	{8, "LiQ - Address Line 1✏️", Text},
	{9, "LiQ - Address Line 2✏️", Text},
	{10, "LiQ - Address Town✏️", Text},
	{11, "LiQ - Province✏️", Text},
	{12, "LiQ - Address Post Code✏️", Text},
	{13, "LiQ - Home Phone✏️", Text},
	{14, "LiQ - Cell Phone✏️", Text},
	{15, FieldEmail, Text},
	{16, FieldHiredDate, Date},
	{17, FieldPosition, Category},
	{19, "LiQ - Subway Id", Text},
	{20, FieldSalaried, Flag},
	{21, "LiQ - Separation date", Date},
	{22, "LiQ - Emergency 1 - Name✏️", Text},
	{23, "LiQ - Emergency 1 - Relationship✏️", Text},
	{24, "LiQ - Emergency 1 - Home Phone Number✏️", Text},
	{25, "LiQ - Emergency 1 - Mobile Phone Number✏️", Text},
	{26, "LiQ - Emergency 2 - Name✏️", Text},
	{27, "LiQ - Emergency 2 - Relationship✏️", Text},
	{28, "LiQ - Emergency 2 - Home Phone Number✏️", Text},
	{29, "LiQ - Emergency 2 - Mobile Phone Number✏️", Text},
	{32, FieldStandardRate, Number},
	{33, "LiQ - Standard Rate - Start Date", Date},
	{34, "LiQ - Standard Rate - End Date", Date},
	{41, FieldAllocatedStore, Store},
	{42, FieldClerkID, Number},
	{43, "LiQ - Main Store - Start Date", Date},
	{44, "LiQ - Main Store End Date", Date},
}
