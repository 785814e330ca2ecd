package units

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"quorum/internal/engine"
	"quorum/internal/logger"
	"quorum/internal/pkg/jsonutil"
	"quorum/internal/provider"
)

// defaultOpinionSchema constrains model output to a parseable opinion. Roster
// entries may override it with a stricter document.
const defaultOpinionSchema = `{
  "type": "object",
  "required": ["action", "confidence", "reasoning"],
  "properties": {
    "action": {"type": "string", "enum": ["BUY", "SELL", "HOLD", "PASS"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"},
    "risk_level": {"type": "string", "enum": ["LOW", "MEDIUM", "HIGH", "EXTREME"]},
    "recommended_exposure": {"type": "number", "minimum": 0, "maximum": 1},
    "max_loss_pct": {"type": "number", "maximum": 0}
  }
}`

// ModelUnit asks an upstream model for its opinion. The raw completion is
// extracted, schema-checked and mapped onto an Opinion; anything that fails
// those steps is an error so the collector substitutes PASS.
type ModelUnit struct {
	id       string
	role     engine.Role
	prov     provider.ModelProvider
	schema   *jsonschema.Schema
	system   string
	maxChars int
}

// ModelUnitConfig describes one roster entry.
type ModelUnitConfig struct {
	ID           string
	Role         engine.Role
	SystemPrompt string
	// SchemaJSON overrides the default opinion schema when non-empty.
	SchemaJSON string
	// MaxContextChars truncates the serialized market context. Zero means
	// 12000.
	MaxContextChars int
}

func NewModelUnit(cfg ModelUnitConfig, prov provider.ModelProvider) (*ModelUnit, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("model unit requires an id")
	}
	if prov == nil {
		return nil, fmt.Errorf("model unit %s: nil provider", cfg.ID)
	}
	schemaSrc := cfg.SchemaJSON
	if strings.TrimSpace(schemaSrc) == "" {
		schemaSrc = defaultOpinionSchema
	}
	schema, err := jsonschema.CompileString("opinion.json", schemaSrc)
	if err != nil {
		return nil, fmt.Errorf("model unit %s: compile schema: %w", cfg.ID, err)
	}
	system := cfg.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = defaultSystemPrompt(cfg.Role)
	}
	maxChars := cfg.MaxContextChars
	if maxChars <= 0 {
		maxChars = 12000
	}
	return &ModelUnit{
		id:       cfg.ID,
		role:     cfg.Role,
		prov:     prov,
		schema:   schema,
		system:   system,
		maxChars: maxChars,
	}, nil
}

func (u *ModelUnit) ID() string        { return u.id }
func (u *ModelUnit) Role() engine.Role { return u.role }

func (u *ModelUnit) Analyze(ctx context.Context, req engine.AnalysisRequest) (engine.Opinion, error) {
	user := u.buildUserPrompt(req)
	logger.LogUnitRequest(u.id, req.Symbol, u.system, user)

	raw, err := u.prov.Call(ctx, provider.ChatPayload{
		System:     u.system,
		User:       user,
		ExpectJSON: true,
	})
	if err != nil {
		return engine.Opinion{}, fmt.Errorf("model call: %w", err)
	}
	logger.LogUnitResponse(u.id, req.Symbol, raw)

	obj, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return engine.Opinion{}, fmt.Errorf("no JSON object in model output")
	}
	var doc any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return engine.Opinion{}, fmt.Errorf("decode model output: %w", err)
	}
	if err := u.schema.Validate(doc); err != nil {
		return engine.Opinion{}, fmt.Errorf("model output rejected by schema: %w", err)
	}

	parsed := gjson.Parse(obj)
	op := engine.Opinion{
		UnitID:     u.id,
		Role:       u.role,
		Action:     engine.ParseAction(parsed.Get("action").String()),
		Confidence: clamp01(parsed.Get("confidence").Float()),
		Reasoning:  strings.TrimSpace(parsed.Get("reasoning").String()),
		ProducedAt: time.Now().UTC(),
	}
	if u.role == engine.RoleDefensive {
		op.RiskLevel = engine.ParseRiskLevel(parsed.Get("risk_level").String())
		op.RecommendedExposure = clamp01(parsed.Get("recommended_exposure").Float())
		if v := parsed.Get("max_loss_pct"); v.Exists() {
			op.MaxLossPct = v.Float()
		}
	}
	return op, nil
}

func (u *ModelUnit) buildUserPrompt(req engine.AnalysisRequest) string {
	ctxJSON, err := json.Marshal(req.Context)
	if err != nil {
		ctxJSON = []byte("{}")
	}
	body := string(ctxJSON)
	if len(body) > u.maxChars {
		body = body[:u.maxChars]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\n", req.Symbol)
	fmt.Fprintf(&b, "Context (%s):\n", req.Context.ActionContext)
	b.WriteString(jsonutil.Pretty(body))
	b.WriteString("\n\nRespond with a single JSON object matching the required schema.")
	return b.String()
}

func defaultSystemPrompt(role engine.Role) string {
	switch role {
	case engine.RoleAggressive:
		return "You are an aggressive trading analyst. Favor momentum entries and exits. " +
			"Answer with one JSON object: action (BUY/SELL/HOLD/PASS), confidence (0..1), reasoning."
	case engine.RoleDefensive:
		return "You are a defensive risk analyst. Judge downside first. " +
			"Answer with one JSON object: action, confidence, reasoning, risk_level (LOW/MEDIUM/HIGH/EXTREME), " +
			"recommended_exposure (0..1), max_loss_pct (negative fraction)."
	default:
		return "You are a market flows analyst. Weigh funding, volume and positioning. " +
			"Answer with one JSON object: action, confidence, reasoning."
	}
}
