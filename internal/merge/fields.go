package merge

import "strings"

// Reserved field names always present in the merge mapping.
const (
	FieldName  = "Name"
	FieldEmail = "Email"
)

// Fields builds the mapping used to render one row. Every column of the
// row is exposed under its header; {Name} is the value of nameColumn (empty
// when the column is unset or absent) and {Email} is the trimmed recipient.
func Fields(row map[string]string, email, nameColumn string) map[string]string {
	fields := make(map[string]string, len(row)+2)
	for k, v := range row {
		fields[k] = v
	}

	name := ""
	if nameColumn != "" {
		name = row[nameColumn]
	}
	fields[FieldName] = name
	fields[FieldEmail] = strings.TrimSpace(email)

	return fields
}
