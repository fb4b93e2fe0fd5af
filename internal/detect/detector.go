// Package detect provides the pattern-detector collaborator boundary and
// a built-in regex detector covering the dangerous constructs the
// pipeline knows how to reason about. The detector is synchronous, has
// no side effects and reports hits in a deterministic order.
package detect

import (
	"regexp"
	"sort"
	"strings"

	"securecode/internal/types"
)

// Hit is one raw detector finding, before LLM triage.
type Hit struct {
	Location      types.Location `json:"location"`
	Category      types.Category `json:"category"`
	Severity      types.Severity `json:"severity"`
	Description   string         `json:"description"`
	RawConfidence float64        `json:"raw_confidence"`
}

// Detector scans a source unit for candidate vulnerabilities.
type Detector interface {
	Scan(src types.SourceUnit) []Hit
}

type rule struct {
	category    types.Category
	severity    types.Severity
	description string
	confidence  float64
	pattern     *regexp.Regexp
}

// PatternDetector matches a fixed rule catalog against source text.
// Solidity units get their own catalog; all other languages share the
// general one.
type PatternDetector struct {
	general  []rule
	solidity []rule
}

// NewPatternDetector builds the default rule catalogs.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{general: defaultRules(), solidity: solidityRules()}
}

func (d *PatternDetector) rulesFor(lang types.Language) []rule {
	if lang == types.LangSolidity {
		return d.solidity
	}
	return d.general
}

func defaultRules() []rule {
	return []rule{
		// Injection family: SQL built by interpolation or concatenation,
		// command execution through a shell, dynamic code evaluation.
		{types.CategoryInjection, types.SeverityHigh,
			"SQL query built with string formatting", 0.9,
			regexp.MustCompile(`(?i)execute\s*\(\s*f["']`)},
		{types.CategoryInjection, types.SeverityHigh,
			"SQL query built with string concatenation", 0.85,
			regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)\b[^\n]*["']\s*\+`)},
		{types.CategoryInjection, types.SeverityHigh,
			"SQL statement interpolates a variable", 0.8,
			regexp.MustCompile(`(?i)f["'][^"'\n]*(SELECT|INSERT|UPDATE|DELETE)\b[^"'\n]*\{`)},
		{types.CategoryInjection, types.SeverityHigh,
			"subprocess invoked with shell=True", 0.85,
			regexp.MustCompile(`subprocess\.(run|call|Popen)\s*\([^\n]*shell\s*=\s*True`)},
		{types.CategoryInjection, types.SeverityHigh,
			"command passed to os.system", 0.85,
			regexp.MustCompile(`os\.system\s*\(`)},
		{types.CategoryInjection, types.SeverityCritical,
			"dynamic code evaluation", 0.9,
			regexp.MustCompile(`\b(eval|exec)\s*\(`)},

		// Path traversal: file paths assembled from request data.
		{types.CategoryPathTraversal, types.SeverityHigh,
			"file path built with concatenation", 0.7,
			regexp.MustCompile(`open\s*\([^\n)]*\+`)},
		{types.CategoryPathTraversal, types.SeverityHigh,
			"file path built with string formatting", 0.7,
			regexp.MustCompile(`open\s*\(\s*f["'][^"'\n]*\{`)},

		// Insecure deserialization.
		{types.CategoryDeserialization, types.SeverityCritical,
			"unsafe deserialization of untrusted data", 0.85,
			regexp.MustCompile(`(pickle\.loads?|yaml\.load\s*\(|marshal\.loads?)\b`)},

		// Hardcoded credentials.
		{types.CategoryCredentialExposure, types.SeverityMedium,
			"hardcoded credential", 0.6,
			regexp.MustCompile(`(?i)\b(password|passwd|secret|api_key|apikey|token)\s*=\s*["'][^"'\n]{4,}["']`)},

		// Server-side request forgery: outbound request to an
		// interpolated URL.
		{types.CategoryRequestForgery, types.SeverityHigh,
			"outbound request to attacker-influenced URL", 0.7,
			regexp.MustCompile(`requests\.(get|post|put|delete)\s*\(\s*(f["']|[a-zA-Z_][\w.]*\s*\+|[a-zA-Z_][\w.]*\s*[,)])`)},
	}
}

// solidityRules covers the classic smart-contract weaknesses: phishable
// authentication, value-forwarding external calls, raw delegatecall,
// destructible contracts and miner-influenced entropy.
func solidityRules() []rule {
	return []rule{
		{types.CategoryOther, types.SeverityHigh,
			"authentication based on tx.origin", 0.85,
			regexp.MustCompile(`tx\.origin`)},
		{types.CategoryOther, types.SeverityCritical,
			"low-level call forwards value to an external address", 0.8,
			regexp.MustCompile(`\.call\{value:|\.call\.value\s*\(`)},
		{types.CategoryOther, types.SeverityCritical,
			"delegatecall hands control to external code", 0.85,
			regexp.MustCompile(`\.delegatecall\s*\(`)},
		{types.CategoryOther, types.SeverityHigh,
			"contract can be destroyed", 0.8,
			regexp.MustCompile(`\bselfdestruct\s*\(`)},
		{types.CategoryOther, types.SeverityMedium,
			"block values used as entropy or time source", 0.6,
			regexp.MustCompile(`block\.(timestamp|number|difficulty|prevrandao)`)},
		{types.CategoryCredentialExposure, types.SeverityMedium,
			"hardcoded secret", 0.6,
			regexp.MustCompile(`(?i)\b(password|secret|private_key|privatekey)\s*=\s*["'][^"'\n]{4,}["']`)},
	}
}

// Scan matches every rule against the source and returns hits ordered by
// ascending line, with the rule catalog order breaking ties. Hits at the
// same location are deduplicated, first rule wins.
func (d *PatternDetector) Scan(src types.SourceUnit) []Hit {
	var hits []Hit
	for _, r := range d.rulesFor(src.Language) {
		for _, m := range r.pattern.FindAllStringIndex(src.Code, -1) {
			line := 1 + strings.Count(src.Code[:m[0]], "\n")
			hits = append(hits, Hit{
				Location:      types.Location{Path: src.Path, Line: line},
				Category:      r.category,
				Severity:      r.severity,
				Description:   r.description,
				RawConfidence: r.confidence,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Location.Line < hits[j].Location.Line
	})

	seen := make(map[types.Location]bool, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if seen[h.Location] {
			continue
		}
		seen[h.Location] = true
		out = append(out, h)
	}
	return out
}
