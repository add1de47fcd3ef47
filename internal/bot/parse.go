package bot

import (
	"errors"
	"regexp"
	"strings"
)

var codeSep = regexp.MustCompile(`[ ,;\n]+`)

// ErrEmptyTemplate is returned for /set_template without arguments.
var ErrEmptyTemplate = errors.New("empty template")

// ParseRDACodes splits /add_rda arguments on spaces, commas and semicolons
// and upper-cases the codes.
func ParseRDACodes(args string) []string {
	var codes []string
	for _, c := range codeSep.Split(strings.TrimSpace(args), -1) {
		if c != "" {
			codes = append(codes, strings.ToUpper(c))
		}
	}
	return codes
}

// ParseTemplateArg extracts the template of /set_template. The words reset,
// default and off restore the standard template.
func ParseTemplateArg(args string) (tmpl string, reset bool, err error) {
	tmpl = strings.TrimSpace(args)
	if tmpl == "" {
		return "", false, ErrEmptyTemplate
	}
	switch strings.ToLower(tmpl) {
	case "reset", "default", "off":
		return "", true, nil
	}
	return tmpl, false, nil
}
