// Package snippet parses and generates the Spotfix widget code stored in the
// settings record. The parser and the builder share one template; changing
// the generated snippet requires changing the extraction rules in lock-step.
package snippet

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultBundleURL is the widget bundle the generated snippet loads.
const DefaultBundleURL = "https://spotfix.doboard.com/doboard-widget-bundle.min.js"

// RequiredParams are the query parameters a snippet must carry to be valid.
// Partial sets are rejected: a status probe against an incomplete URL could
// produce false positives.
var RequiredParams = []string{"projectToken", "projectId", "accountId"}

// Params is the typed parameter triple embedded in a snippet.
type Params struct {
	ProjectToken string
	ProjectID    string
	AccountID    string
}

// fallbackParam matches a bare key=value occurrence, tolerant of the value
// ending at whitespace, quotes or the next parameter.
func fallbackParam(key string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(key) + `=([^&\s'"]+)`)
}

// ExtractQueryParams recovers the query parameters embedded in code and
// re-encodes them as a canonical escaped query string. It returns "" when no
// src assignment for bundleURL is found and no direct key=value scan
// succeeds, or when any required key is missing or empty.
func ExtractQueryParams(code, bundleURL string, required []string) string {
	values := extractFromSrc(code, bundleURL)
	if values == nil {
		values = extractDirect(code, required)
	}
	if values == nil {
		return ""
	}

	for _, key := range required {
		if values.Get(key) == "" {
			return ""
		}
	}

	return values.Encode()
}

// extractFromSrc locates the first script src assignment pointing at
// bundleURL, tolerant of single or double quotes, and parses its query.
func extractFromSrc(code, bundleURL string) url.Values {
	pattern := regexp.MustCompile(`src\s*=\s*['"](` + regexp.QuoteMeta(bundleURL) + `[^'"]*)['"]`)
	match := pattern.FindStringSubmatch(code)
	if match == nil {
		return nil
	}

	parsed, err := url.Parse(match[1])
	if err != nil {
		return nil
	}

	values, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return nil
	}
	return values
}

// extractDirect scans for bare key=value pairs, the way hand-pasted snippets
// without a recognizable src assignment are still salvageable.
func extractDirect(code string, required []string) url.Values {
	values := url.Values{}
	found := false
	for _, key := range required {
		if match := fallbackParam(key).FindStringSubmatch(code); match != nil {
			values.Set(key, match[1])
			found = true
		}
	}
	if !found {
		return nil
	}
	return values
}

// Parse extracts the typed parameter triple from code. ok is false when the
// snippet is invalid.
func Parse(code, bundleURL string) (Params, bool) {
	query := ExtractQueryParams(code, bundleURL, RequiredParams)
	if query == "" {
		return Params{}, false
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return Params{}, false
	}

	return Params{
		ProjectToken: values.Get("projectToken"),
		ProjectID:    values.Get("projectId"),
		AccountID:    values.Get("accountId"),
	}, true
}

// ScriptURL builds the widget bundle URL for the given parameters. The key
// order matches the generated template.
func ScriptURL(p Params, bundleURL string) string {
	return fmt.Sprintf("%s?projectToken=%s&projectId=%s&accountId=%s",
		bundleURL,
		url.QueryEscape(p.ProjectToken),
		url.QueryEscape(p.ProjectID),
		url.QueryEscape(p.AccountID),
	)
}

// ScriptURLFromQuery appends a canonical query string to the bundle URL.
func ScriptURLFromQuery(bundleURL, query string) string {
	return bundleURL + "?" + query
}

// Build renders the canonical widget snippet. Values are query-escaped so
// they are safe inside the generated JS string literal.
func Build(p Params, bundleURL string) string {
	var b strings.Builder
	b.WriteString("(function () {\n")
	b.WriteString("    window.SpotfixWidgetConfig = {verticalPosition: '0'};\n")
	b.WriteString("    let apbctScript = document.createElement('script');\n")
	b.WriteString("    apbctScript.type = 'text/javascript';\n")
	b.WriteString("    apbctScript.async = 'true';\n")
	b.WriteString("    apbctScript.src = '" + ScriptURL(p, bundleURL) + "';\n")
	b.WriteString("    let firstScriptNode = document.getElementsByTagName('script')[0];\n")
	b.WriteString("    firstScriptNode.parentNode.insertBefore(apbctScript, firstScriptNode);\n")
	b.WriteString("})();")
	return b.String()
}
