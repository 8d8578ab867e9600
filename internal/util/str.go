package util

import "strings"

func NormalizeStr(input string) string {
	var result string
	result = input

	result = strings.ReplaceAll(result, "\u00a0", " ")
	result = strings.ReplaceAll(result, "&nbsp;", " ")
	result = strings.ReplaceAll(result, "&#160;", " ")

	result = strings.Join(strings.Fields(result), "")
	result = strings.ToLower(result)

	return result
}

// CollapseSpaces trims the input and replaces every run of whitespace,
// non-breaking spaces included, with a single space.
func CollapseSpaces(input string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(input, "\u00a0", " ")), " ")
}

// DigitsOnly drops every character that is not an ASCII digit.
func DigitsOnly(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
