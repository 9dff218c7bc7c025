package routing

import (
	"math"
	"strings"
	"testing"

	"github.com/EduFluxo/AtendeFlow/internal/models"
)

func TestMandatoryDataOverrideWins(t *testing.T) {
	e := NewEngine()
	// Scheduling needs parent_name, child_name, student_age; none present.
	// Even perfect confidence must not bypass the override.
	d := e.Decide(Input{
		IntentConfidence:  1.0,
		PatternConfidence: 1.0,
		CurrentStage:      models.StageQualification,
		TargetStage:       models.StageScheduling,
		CollectedData:     models.CollectedData{},
	})
	if !d.MandatoryDataOverride {
		t.Fatal("expected mandatory data override")
	}
	if d.Action != ActionFallbackLevel2 {
		t.Errorf("expected fallback_level2, got %s", d.Action)
	}
	if d.TargetNode != string(models.StageGreeting) {
		t.Errorf("expected fallback to greeting, got %s", d.TargetNode)
	}
	// Final confidence is reported as the pattern confidence, not the blend.
	if d.FinalConfidence != 1.0 {
		t.Errorf("expected pattern confidence 1.0 passthrough, got %f", d.FinalConfidence)
	}
	if !strings.Contains(d.Reasoning, "parent_name") {
		t.Errorf("expected missing fields in reasoning, got %q", d.Reasoning)
	}
}

func TestMandatoryDataSatisfied(t *testing.T) {
	e := NewEngine()
	d := e.Decide(Input{
		IntentConfidence:  0.9,
		PatternConfidence: 0.9,
		CurrentStage:      models.StageScheduling,
		TargetStage:       models.StageScheduling,
		CollectedData: models.CollectedData{
			"parent_name": "Maria",
			"child_name":  "Pedro",
			"student_age": "8",
		},
	})
	if d.MandatoryDataOverride {
		t.Error("did not expect override with complete data")
	}
	if d.Action != ActionProceed {
		t.Errorf("expected proceed at 0.9 blend, got %s", d.Action)
	}
}

func TestMandatoryDataEmptyValueCountsAsMissing(t *testing.T) {
	e := NewEngine()
	d := e.Decide(Input{
		IntentConfidence:  0.9,
		PatternConfidence: 0.9,
		CurrentStage:      models.StageQualification,
		TargetStage:       models.StageScheduling,
		CollectedData: models.CollectedData{
			"parent_name": "Maria",
			"child_name":  "",
			"student_age": "8",
		},
	})
	if !d.MandatoryDataOverride {
		t.Error("empty collected value must count as missing")
	}
}

func TestWeightedBlendAndStageMultiplier(t *testing.T) {
	e := NewEngine()
	cases := []struct {
		name      string
		stage     models.ConversationStage
		intent    float64
		pattern   float64
		wantFinal float64
	}{
		{"greeting boost", models.StageGreeting, 0.5, 0.5, 0.6},               // 0.5 * 1.2
		{"qualification boost", models.StageQualification, 0.5, 0.5, 0.55},    // 0.5 * 1.1
		{"information damp", models.StageInformationGathering, 0.5, 0.5, 0.45}, // 0.5 * 0.9
		{"scheduling neutral", models.StageScheduling, 0.5, 0.5, 0.5},
		{"completed distrust", models.StageCompleted, 0.8, 0.8, 0.4}, // 0.8 * 0.5
		{"asymmetric blend", models.StageScheduling, 1.0, 0.5, 0.8},  // 0.6 + 0.2
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := e.Decide(Input{
				IntentConfidence:  tc.intent,
				PatternConfidence: tc.pattern,
				CurrentStage:      tc.stage,
				TargetStage:       models.StageInformationGathering,
			})
			if math.Abs(d.FinalConfidence-tc.wantFinal) > 1e-9 {
				t.Errorf("expected final %f, got %f", tc.wantFinal, d.FinalConfidence)
			}
		})
	}
}

func TestStageOverrideFlag(t *testing.T) {
	e := NewEngine()
	d := e.Decide(Input{IntentConfidence: 0.5, PatternConfidence: 0.5, CurrentStage: models.StageGreeting, TargetStage: models.StageQualification})
	if !d.StageOverride {
		t.Error("expected stage override flag for greeting multiplier")
	}
	d = e.Decide(Input{IntentConfidence: 0.5, PatternConfidence: 0.5, CurrentStage: models.StageScheduling, TargetStage: models.StageInformationGathering})
	if d.StageOverride {
		t.Error("did not expect stage override flag for neutral multiplier")
	}
}

func TestActionBands(t *testing.T) {
	e := NewEngine()
	cases := []struct {
		final float64
		want  Action
	}{
		{0.95, ActionProceed},
		{0.80, ActionProceed},
		{0.70, ActionEnhanceWithLLM},
		{0.60, ActionEnhanceWithLLM},
		{0.50, ActionFallbackLevel1},
		{0.30, ActionFallbackLevel2},
		{0.10, ActionEscalateHuman},
		{0.0, ActionEscalateHuman},
	}
	for _, tc := range cases {
		// Neutral stage multiplier and equal confidences make the blend
		// equal the inputs.
		d := e.Decide(Input{
			IntentConfidence:  tc.final,
			PatternConfidence: tc.final,
			CurrentStage:      models.StageScheduling,
			TargetStage:       models.StageInformationGathering,
		})
		if d.Action != tc.want {
			t.Errorf("final %f: expected %s, got %s", tc.final, tc.want, d.Action)
		}
	}
}

func TestConfigurableThresholds(t *testing.T) {
	e := NewEngine(WithThresholds(Thresholds{Proceed: 0.5, Enhance: 0.4, Fallback1: 0.3, Fallback2: 0.2}))
	d := e.Decide(Input{
		IntentConfidence:  0.55,
		PatternConfidence: 0.55,
		CurrentStage:      models.StageScheduling,
		TargetStage:       models.StageInformationGathering,
	})
	if d.Action != ActionProceed {
		t.Errorf("expected proceed with lowered threshold, got %s", d.Action)
	}
}

func TestMalformedConfidenceClamped(t *testing.T) {
	e := NewEngine()
	cases := []struct {
		name    string
		intent  float64
		pattern float64
	}{
		{"negative", -3.0, -1.0},
		{"above one", 2.5, 7.0},
		{"nan", math.NaN(), math.NaN()},
		{"infinity", math.Inf(1), math.Inf(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := e.Decide(Input{
				IntentConfidence:  tc.intent,
				PatternConfidence: tc.pattern,
				CurrentStage:      models.StageGreeting,
				TargetStage:       models.StageQualification,
			})
			if d.FinalConfidence < 0 || d.FinalConfidence > 1 {
				t.Errorf("final confidence out of range: %f", d.FinalConfidence)
			}
			if d.IntentConfidence < 0 || d.IntentConfidence > 1 {
				t.Errorf("intent confidence not clamped: %f", d.IntentConfidence)
			}
			if d.PatternConfidence < 0 || d.PatternConfidence > 1 {
				t.Errorf("pattern confidence not clamped: %f", d.PatternConfidence)
			}
			if d.Action == "" || d.TargetNode == "" {
				t.Error("engine must always produce a complete decision")
			}
		})
	}
}

func TestEscalationTarget(t *testing.T) {
	e := NewEngine()
	d := e.Decide(Input{
		IntentConfidence:  0.05,
		PatternConfidence: 0.05,
		CurrentStage:      models.StageScheduling,
		TargetStage:       models.StageInformationGathering,
	})
	if d.Action != ActionEscalateHuman {
		t.Fatalf("expected escalation, got %s", d.Action)
	}
	if d.TargetNode != HumanHandoffNode {
		t.Errorf("expected %s, got %s", HumanHandoffNode, d.TargetNode)
	}
}

func TestConfirmationPrerequisiteFallsBackToScheduling(t *testing.T) {
	e := NewEngine()
	d := e.Decide(Input{
		IntentConfidence:  0.9,
		PatternConfidence: 0.9,
		CurrentStage:      models.StageScheduling,
		TargetStage:       models.StageConfirmation,
		CollectedData: models.CollectedData{
			"parent_name": "Maria",
			"child_name":  "Pedro",
			"student_age": "8",
			// selected_slot missing
		},
	})
	if !d.MandatoryDataOverride {
		t.Fatal("expected override for missing slot")
	}
	if d.TargetNode != string(models.StageScheduling) {
		t.Errorf("expected fallback to scheduling, got %s", d.TargetNode)
	}
}
