// Package types holds the domain model shared by all pipeline stages.
// One PipelineState is owned by exactly one orchestrator run; stages
// receive hypotheses by pointer and attach their results, they never
// share state across runs.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the fixed set of vulnerability families the pipeline reasons about.
type Category string

const (
	CategoryInjection          Category = "injection"
	CategoryPathTraversal      Category = "path-traversal"
	CategoryDeserialization    Category = "deserialization"
	CategoryCredentialExposure Category = "credential-exposure"
	CategoryRequestForgery     Category = "request-forgery"
	CategoryOther              Category = "other"
)

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryInjection,
		CategoryPathTraversal,
		CategoryDeserialization,
		CategoryCredentialExposure,
		CategoryRequestForgery,
		CategoryOther,
	}
}

// CWE returns the Common Weakness Enumeration identifier conventionally
// associated with the category, or empty for CategoryOther.
func (c Category) CWE() string {
	switch c {
	case CategoryInjection:
		return "CWE-89"
	case CategoryPathTraversal:
		return "CWE-22"
	case CategoryDeserialization:
		return "CWE-502"
	case CategoryCredentialExposure:
		return "CWE-798"
	case CategoryRequestForgery:
		return "CWE-918"
	}
	return ""
}

// Severity levels mirror the detector's coarse ranking.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Language identifies the declared language of a source unit. Python
// is the only language the full verification pipeline runs on; Go and
// JavaScript stop after detection and slicing, Solidity after
// detection.
type Language string

const (
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangSolidity   Language = "solidity"
)

// Verifiable reports whether hypotheses in this language can be driven
// through contract speculation and symbolic execution.
func (l Language) Verifiable() bool {
	return l == LangPython
}

// SourceUnit is the immutable input of one analysis request.
type SourceUnit struct {
	Path     string   `json:"path"`
	Language Language `json:"language"`
	Code     string   `json:"-"`
}

// Location points at a line inside a source unit.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Mock is a generated stand-in for a symbol the slice cannot resolve.
// Mocks return deterministic placeholder values and never execute real
// side effects.
type Mock struct {
	Symbol string `json:"symbol"`
	Code   string `json:"code"`
}

// CodeSlice is a minimal, independently parseable fragment around a
// candidate vulnerability, owned exclusively by its hypothesis.
type CodeSlice struct {
	Code     string   `json:"code"`
	Function string   `json:"function"`
	Language Language `json:"language"`
	Mocks    []Mock   `json:"mocks,omitempty"`
}

// Assemble returns the slice with its mocks prepended, ready for the
// syntax gate or the verifier.
func (s *CodeSlice) Assemble() string {
	if len(s.Mocks) == 0 {
		return s.Code
	}
	var b strings.Builder
	for _, m := range s.Mocks {
		b.WriteString(m.Code)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(s.Code)
	return b.String()
}

// Contract is a set of executable pre/post-condition predicates over the
// slice's entry and exit values. Exactly one current contract exists per
// hypothesis per run; rejected drafts are discarded.
type Contract struct {
	Predicates     []string `json:"predicates"`
	TargetFunction string   `json:"target_function"`
	Category       Category `json:"category"`
}

// Text renders the predicates as source lines in slice order.
func (c *Contract) Text() string {
	return strings.Join(c.Predicates, "\n")
}

// Verdict is the tri-state outcome of one verifier invocation.
type Verdict string

const (
	VerdictVerified     Verdict = "verified"
	VerdictRefuted      Verdict = "refuted"
	VerdictInconclusive Verdict = "inconclusive-timeout"
)

// VerificationResult records one verifier invocation against a
// slice+contract pairing. It is re-created per invocation, never mutated.
// Exhaustive distinguishes a sound proof from "no violation found within
// the search budget"; engines that cannot guarantee exhaustiveness leave
// it false.
type VerificationResult struct {
	Verdict        Verdict       `json:"verdict"`
	Counterexample string        `json:"counterexample,omitempty"`
	Detail         string        `json:"detail,omitempty"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	Exhaustive     bool          `json:"exhaustive"`
}

// Patch is one candidate fix. A hypothesis accumulates a bounded ordered
// sequence of attempts; only the last is authoritative.
type Patch struct {
	Code     string `json:"code"`
	Diff     string `json:"diff"`
	Verified bool   `json:"verified"`
}

// Outcome is the terminal tag every hypothesis carries when the
// orchestrator returns. There are no silent omissions: a caller can
// always distinguish clean, unverifiable and patched findings.
type Outcome string

const (
	OutcomePending           Outcome = ""
	OutcomePatchedVerified   Outcome = "patched-and-verified"
	OutcomePatchedUnverified Outcome = "patched-but-unverified"
	OutcomeUnverifiable      Outcome = "unverifiable"
	OutcomeDroppedSlicing    Outcome = "dropped-during-slicing"
	OutcomeInconclusive      Outcome = "inconclusive-timeout"
	OutcomeNotVulnerable     Outcome = "not-vulnerable"
	OutcomeNotProcessed      Outcome = "not-processed"
)

// Hypothesis is one suspected flaw. The scanner creates it; later stages
// only attach their owned results (contract, verdicts, patches, outcome).
type Hypothesis struct {
	Location   Location `json:"location"`
	Category   Category `json:"category"`
	CWE        string   `json:"cwe,omitempty"`
	Severity   Severity `json:"severity"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`

	Slice    *CodeSlice `json:"slice,omitempty"`
	Contract *Contract  `json:"contract,omitempty"`

	// Verdicts is the verification history, oldest first.
	Verdicts []*VerificationResult `json:"verdicts,omitempty"`
	// Patches is the ordered attempt history, oldest first.
	Patches []*Patch `json:"patches,omitempty"`

	Outcome Outcome `json:"outcome"`
	// Failure holds the recorded reason when a stage gave up on this
	// hypothesis without aborting the run.
	Failure string `json:"failure,omitempty"`
}

// FinalPatch returns the authoritative (last) patch attempt, or nil.
func (h *Hypothesis) FinalPatch() *Patch {
	if len(h.Patches) == 0 {
		return nil
	}
	return h.Patches[len(h.Patches)-1]
}

// LastVerdict returns the most recent verification result, or nil.
func (h *Hypothesis) LastVerdict() *VerificationResult {
	if len(h.Verdicts) == 0 {
		return nil
	}
	return h.Verdicts[len(h.Verdicts)-1]
}

// Budgets bound one orchestrator run.
type Budgets struct {
	// MaxIterations bounds Patcher<->Verifier round trips per hypothesis.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// LLMTimeout applies to every language-model call.
	LLMTimeout time.Duration `json:"llm_timeout" yaml:"llm_timeout"`
	// VerifyTimeout applies to every symbolic-execution call.
	VerifyTimeout time.Duration `json:"verify_timeout" yaml:"verify_timeout"`
	// Workers sizes the per-run hypothesis pool. 1 means sequential.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultBudgets mirrors the service defaults: three refinement loops,
// 30s of symbolic execution per call.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxIterations: 3,
		LLMTimeout:    2 * time.Minute,
		VerifyTimeout: 30 * time.Second,
		Workers:       4,
	}
}

// Normalize clamps budgets to their allowed ranges, filling zero values
// with defaults. MaxIterations is kept in [1,10].
func (b Budgets) Normalize() Budgets {
	def := DefaultBudgets()
	if b.MaxIterations <= 0 {
		b.MaxIterations = def.MaxIterations
	}
	if b.MaxIterations > 10 {
		b.MaxIterations = 10
	}
	if b.LLMTimeout <= 0 {
		b.LLMTimeout = def.LLMTimeout
	}
	if b.VerifyTimeout <= 0 {
		b.VerifyTimeout = def.VerifyTimeout
	}
	if b.Workers <= 0 {
		b.Workers = def.Workers
	}
	return b
}

// PipelineState is the aggregate root for one analysis request. It is
// fully materialized by the time the orchestrator returns and read-only
// to callers afterwards.
type PipelineState struct {
	AnalysisID string        `json:"analysis_id"`
	Source     SourceUnit    `json:"source"`
	Budgets    Budgets       `json:"budgets"`
	Hypotheses []*Hypothesis `json:"hypotheses"`
	Errors     []string      `json:"errors,omitempty"`
	Logs       []string      `json:"logs,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Complete   bool          `json:"complete"`
}

// NewPipelineState creates the state for one run with a fresh analysis ID.
func NewPipelineState(src SourceUnit, budgets Budgets) *PipelineState {
	return &PipelineState{
		AnalysisID: uuid.NewString(),
		Source:     src,
		Budgets:    budgets.Normalize(),
	}
}

// Logf appends a log entry to the state. Not safe for concurrent use;
// the orchestrator serializes access.
func (p *PipelineState) Logf(format string, args ...interface{}) {
	p.Logs = append(p.Logs, fmt.Sprintf(format, args...))
}

// Errorf records a non-fatal error against the run.
func (p *PipelineState) Errorf(format string, args ...interface{}) {
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}
