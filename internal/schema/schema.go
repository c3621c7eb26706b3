// Package schema declares the column contracts the validation stage checks
// repaired extracts against.
//
// Contracts are data, not code: a Field describes one column's type and
// constraints, a Contract names an ordered set of fields, and a small
// registry maps extract families ("cnrps") to their contract. The validation
// logic itself lives in internal/validate.
package schema

import "fmt"

// Field types. Stored as strings so contracts stay printable and easy to
// serialize into generated configs.
const (
	TypeBigint  = "bigint"
	TypeDate    = "date"
	TypeText    = "text"
	TypeBoolean = "boolean"
)

// Field describes one column contract.
type Field struct {
	Name string
	Type string

	// Required means the value must be present and coercible; a missing or
	// unparseable required bigint is coerced to zero with a warning rather
	// than failing the row.
	Required bool

	// Nullable permits empty values.
	Nullable bool

	// Layout is the Go time layout for date fields.
	Layout string

	// MinYear and MaxYear bound date fields. Zero means unbounded on that
	// side.
	MinYear, MaxYear int

	// Truthy and Falsy enumerate accepted spellings for boolean fields.
	Truthy, Falsy []string
}

// Contract is a named, ordered set of field contracts.
type Contract struct {
	Name   string
	Fields []Field
}

// Field returns the contract field with the given name.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SchemaNotFoundError reports a Lookup for an unregistered contract name.
type SchemaNotFoundError struct {
	Name      string
	Available []string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema: contract %q not found (available: %v)", e.Name, e.Available)
}

// Pension-extract date bounds: anything outside (1900, 2025] is a keying
// error, not a real birth or career date.
const (
	dateMinYear = 1900
	dateMaxYear = 2025
)

// dateJJMMAAAA is the day-first layout every date column of these extracts
// uses.
const dateJJMMAAAA = "02/01/2006"

func bigint(name string, required, nullable bool) Field {
	return Field{Name: name, Type: TypeBigint, Required: required, Nullable: nullable}
}

func date(name string, required, nullable bool) Field {
	return Field{
		Name: name, Type: TypeDate, Required: required, Nullable: nullable,
		Layout: dateJJMMAAAA, MinYear: dateMinYear, MaxYear: dateMaxYear,
	}
}

func text(name string, nullable bool) Field {
	return Field{Name: name, Type: TypeText, Nullable: nullable}
}

// cnrps is the contract for the national pension fund extracts, derived from
// the canonical header:
//
//	matricul;CIN;sexe;date_naissance;sitfam;postal;date_affiliation;
//	date_recrut;pos_admin;code_etab_payeur;libelle_etab;;code_grade;
//	code_fonction;annee;periode;perd;code_indem1;montant_indem1;...
func cnrps() Contract {
	fields := []Field{
		bigint("matricul", true, false),
		bigint("cin", true, false),
		text("sexe", false),
		date("date_naissance", true, false),
		bigint("sitfam", true, false),
		bigint("postal", false, true),
		date("date_affiliation", false, true),
		date("date_recrut", false, true),
		bigint("pos_admin", false, true),
		bigint("code_etab_payeur", false, true),
		text("libelle_etab", true),
		bigint("code_grade", false, true),
		bigint("code_fonction", false, true),
		bigint("annee", false, true),
		bigint("periode", false, true),
		text("perd", true),
	}
	for i := 1; i <= 20; i++ {
		fields = append(fields,
			bigint(fmt.Sprintf("code_indem%d", i), false, true),
			bigint(fmt.Sprintf("montant_indem%d", i), false, true),
		)
	}
	return Contract{Name: "cnrps", Fields: fields}
}

var registry = map[string]Contract{
	"cnrps": cnrps(),
}

// Lookup returns the registered contract for name.
func Lookup(name string) (Contract, error) {
	if c, ok := registry[name]; ok {
		return c, nil
	}
	avail := make([]string, 0, len(registry))
	for k := range registry {
		avail = append(avail, k)
	}
	return Contract{}, &SchemaNotFoundError{Name: name, Available: avail}
}

// Names lists the registered contract names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}
