package sheet

import "strings"

var (
	emailHeaderHints = []string{"email", "e-mail", "email address", "mail"}
	nameHeaderHints  = []string{"name", "full name", "firstname", "first name"}
)

// DetectColumns guesses which headers hold the recipient address and name.
// Known header names are matched case-insensitively; otherwise the first
// column is taken as email and the first other column as name. Name is
// empty when the table has a single column.
func DetectColumns(headers []string) (email, name string) {
	if len(headers) == 0 {
		return "", ""
	}

	emailIdx := findHeader(headers, emailHeaderHints, -1)
	if emailIdx < 0 {
		emailIdx = 0
	}
	email = headers[emailIdx]

	if len(headers) < 2 {
		return email, ""
	}

	nameIdx := findHeader(headers, nameHeaderHints, emailIdx)
	if nameIdx < 0 {
		for i := range headers {
			if i != emailIdx {
				nameIdx = i
				break
			}
		}
	}

	return email, headers[nameIdx]
}

func findHeader(headers []string, hints []string, exclude int) int {
	for _, hint := range hints {
		for i, h := range headers {
			if i != exclude && strings.EqualFold(strings.TrimSpace(h), hint) {
				return i
			}
		}
	}
	return -1
}
