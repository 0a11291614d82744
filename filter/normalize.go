package filter

import (
	"unicode"

	"github.com/iancoleman/strcase"
)

// SnakeCase converts a field name to snake_case. Names that are already
// lowercase letters, digits and underscores are returned unchanged, so
// `address2` and `v1_id` keep their digits where they are.
func SnakeCase(name string) string {
	if isSnakeCase(name) {
		return name
	}
	return strcase.ToSnake(name)
}

func isSnakeCase(name string) bool {
	for _, r := range name {
		if r != '_' && !unicode.IsDigit(r) && !(unicode.IsLetter(r) && unicode.IsLower(r)) {
			return false
		}
	}
	return true
}
