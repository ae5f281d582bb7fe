// Package generator produces the document checklist for one applicant.
//
// With an approved rule set the rules decide which documents appear and the
// model only writes text (hybrid mode). Without one the model chooses the
// documents and its answer must pass LegacyPolicy (legacy mode). Either way
// the run ends with a complete checklist: model failures degrade to
// catalogue text or to FallbackChecklist, and EnforceCore runs last.
package generator

import (
	"context"
	"time"

	"visa-checklist/internal/checklist/catalog"
	"visa-checklist/internal/checklist/knowledge"
	"visa-checklist/internal/checklist/llm"
	"visa-checklist/internal/checklist/parser"
	apperrors "visa-checklist/internal/common/errors"
	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/common/metrics"
	"visa-checklist/internal/models"
	"visa-checklist/pkg/registry"
)

// Fallback reasons, also used as metric labels.
const (
	ReasonTimeout         = "timeout"
	ReasonInvalidResponse = "invalid_response"
	ReasonCompletionError = "completion_error"
	ReasonValidation      = "validation"
	ReasonRuleLookup      = "rule_lookup"
)

// modeUnresolved labels fallbacks taken before a mode was chosen.
const modeUnresolved = "unresolved"

// RuleSource resolves the approved rule set for a destination, nil when
// there is none.
type RuleSource interface {
	Resolve(ctx context.Context, countryCode, visaType string) (*models.RuleSet, error)
}

type Deps struct {
	Rules RuleSource
	LLM   llm.Completer
	// Knowledge is optional; legacy prompts go without policy passages when
	// it is nil.
	Knowledge knowledge.Base
	Registry  *registry.TemplateRegistry
	Catalog   *catalog.Catalog
	Logger    logger.Logger
}

type Generator struct {
	cfg      Config
	rules    RuleSource
	llm      llm.Completer
	kb       knowledge.Base
	registry *registry.TemplateRegistry
	catalog  *catalog.Catalog
	logger   logger.Logger
}

func New(cfg Config, deps Deps) *Generator {
	if deps.Registry == nil {
		deps.Registry = registry.Default()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	if cfg.LLMRetries < 0 {
		cfg.LLMRetries = 0
	}
	return &Generator{
		cfg:      cfg,
		rules:    deps.Rules,
		llm:      deps.LLM,
		kb:       deps.Knowledge,
		registry: deps.Registry,
		catalog:  deps.Catalog,
		logger:   logger.Component(deps.Logger, "checklist-generator"),
	}
}

// Result is a finished checklist. Items is never empty.
type Result struct {
	Items          []models.ChecklistItem
	Mode           models.GenerationMode
	RuleSetVersion *int
	AIFallbackUsed bool
	// Attempts counts completion calls made.
	Attempts       int
	Notes          []string
	FallbackReason string
}

// Generate builds the checklist for p. It always returns a checklist and a
// nil error. When the rule set lookup fails the mode cannot be chosen, so the
// run degrades to FallbackChecklist with no rule set version; the artifact is
// then stale as soon as an approved version can be read again.
func (g *Generator) Generate(ctx context.Context, p models.ApplicantProfile) (*Result, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()

	var res *Result
	rs, err := g.rules.Resolve(ctx, p.CountryCode, p.VisaTypeCode)
	switch {
	case err != nil:
		g.logger.Warn("rule set lookup failed, using fallback checklist", map[string]interface{}{
			"applicationId": p.ApplicationID,
			"countryCode":   p.CountryCode,
			"visaType":      p.VisaTypeCode,
			"error":         err.Error(),
		})
		metrics.Fallbacks.WithLabelValues(modeUnresolved, ReasonRuleLookup).Inc()
		res = &Result{
			Mode:           models.ModeFallback,
			AIFallbackUsed: true,
			FallbackReason: ReasonRuleLookup,
			Items:          FallbackChecklist(p, g.registry, g.catalog),
		}
	case rs != nil:
		res = g.hybrid(ctx, p, rs)
	default:
		res = g.legacy(ctx, p)
	}
	res.Items = EnforceCore(res.Items, g.registry.CoreFor(p.CountryCode, p.VisaTypeCode), g.catalog)

	outcome := "ready"
	if res.AIFallbackUsed {
		outcome = "fallback"
	}
	metrics.ChecklistGenerations.WithLabelValues(string(res.Mode), outcome).Inc()

	g.logger.Info("checklist generated", map[string]interface{}{
		"applicationId":  p.ApplicationID,
		"countryCode":    p.CountryCode,
		"visaType":       p.VisaTypeCode,
		"mode":           res.Mode,
		"items":          len(res.Items),
		"attempts":       res.Attempts,
		"aiFallbackUsed": res.AIFallbackUsed,
		"fallbackReason": res.FallbackReason,
		"duration_ms":    time.Since(start).Milliseconds(),
	})
	return res, nil
}

// complete runs one completion and parses the reply. Output in neither
// recognised shape is reported as an invalid response.
func (g *Generator) complete(ctx context.Context, mode models.GenerationMode, system, user string) (parser.Result, error) {
	start := time.Now()
	raw, err := g.llm.Complete(ctx, system, user)
	metrics.LLMCallDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCalls.WithLabelValues(string(mode), reasonFor(err)).Inc()
		return parser.Result{Format: parser.FormatUnrecognized, Step: parser.StepNone}, err
	}

	parsed := parser.Parse(raw)
	metrics.ParsedResponses.WithLabelValues(string(parsed.Format)).Inc()
	if parsed.Format == parser.FormatUnrecognized || len(parsed.Checklist.Items) == 0 {
		metrics.LLMCalls.WithLabelValues(string(mode), ReasonInvalidResponse).Inc()
		return parsed, apperrors.NewLLMResponseInvalidError("no checklist items in model output")
	}
	metrics.LLMCalls.WithLabelValues(string(mode), "ok").Inc()
	return parsed, nil
}

// retryable reports whether a failed attempt may be repeated. The retry
// budget is checked by the caller.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return llm.IsTimeout(err) || llm.IsInvalidResponse(err)
}

func reasonFor(err error) string {
	switch {
	case llm.IsTimeout(err):
		return ReasonTimeout
	case llm.IsInvalidResponse(err):
		return ReasonInvalidResponse
	default:
		return ReasonCompletionError
	}
}

func (g *Generator) maxAttempts() int {
	return 1 + g.cfg.LLMRetries
}
