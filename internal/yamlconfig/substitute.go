package yamlconfig

import (
	"os"
	"regexp"
	"sort"
	"strings"
)

// Placeholder tokens used by datasource templates.
const (
	PlaceholderAccountURL = "<YOUR_ACCOUNT_URL>"
	PlaceholderCredential = "<YOUR_CREDENTIAL>"
	PlaceholderContainer  = "<YOUR_AZURE_CONTAINER_HERE>"
	PlaceholderPathPrefix = "<CONTAINER_PATH_TO_DATA>"
)

// Substitute replaces every occurrence of each placeholder token in values.
// Tokens are applied in sorted order; tokens absent from values stay as-is.
func Substitute(template string, values map[string]string) string {
	tokens := make([]string, 0, len(values))
	for token := range values {
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)

	out := template
	for _, token := range tokens {
		out = strings.ReplaceAll(out, token, values[token])
	}
	return out
}

var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// SubstituteVariables resolves ${VAR} and $VAR references against vars, then
// the process environment. Unresolved references are left literal.
func SubstituteVariables(doc string, vars map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(doc, func(ref string) string {
		m := variablePattern.FindStringSubmatch(ref)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if v, ok := vars[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return ref
	})
}
