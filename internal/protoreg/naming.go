package protoreg

import (
	"strings"
	"unicode"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/fedreq/internal/reqmap"
)

func nameProtoField(name string) protoreflect.Name {
	return protoreflect.Name(snakeCase(name))
}

func nameService(service string) protoreflect.Name {
	s := pascal(service)
	if strings.HasSuffix(s, "Service") {
		return protoreflect.Name(s)
	}
	return protoreflect.Name(s + "Service")
}

func nameSingleMethod(key reqmap.Key) protoreflect.Name {
	return protoreflect.Name("Fetch" + pascal(key.FetchNode) + "By" + pascal(key.Slot))
}
func nameBatchMethod(key reqmap.Key) protoreflect.Name {
	return protoreflect.Name("Batch" + string(nameSingleMethod(key)))
}
func nameRequest(method protoreflect.Name) protoreflect.Name {
	return method + "Request"
}
func nameResponse(method protoreflect.Name) protoreflect.Name {
	return method + "Response"
}
func nameNested(parent protoreflect.Name, field string) protoreflect.Name {
	return parent + protoreflect.Name(pascal(field))
}

func fileName(pkg, service string) string {
	dir := strings.ReplaceAll(pkg, ".", "/")
	return dir + "/" + snakeCase(service) + ".proto"
}

// pascal joins the alphanumeric runs of s with each run capitalized, so
// "Product.reviews" becomes "ProductReviews".
func pascal(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(capitalize(p))
	}
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// snakeCase converts a string from CamelCase or PascalCase to snake_case.
func snakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			sb.WriteByte('_')
		}
		sb.WriteRune(r)
	}
	return strings.ToLower(sb.String())
}
