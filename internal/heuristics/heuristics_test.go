package heuristics

import (
	"math"
	"strings"
	"testing"

	"github.com/EduFluxo/AtendeFlow/internal/intent"
)

func TestAnalyzeTemporal(t *testing.T) {
	b := NewBooster()

	r := b.AnalyzeTemporal("pode ser amanhã às 14h?")
	if !r.Detected {
		t.Fatal("expected temporal detection")
	}
	// specific time (+0.08) and relative date (+0.05) overflow the 0.12 cap.
	if math.Abs(r.ConfidenceBoost-0.12) > 1e-9 {
		t.Errorf("expected capped boost 0.12, got %f", r.ConfidenceBoost)
	}

	r = b.AnalyzeTemporal("pode ser na quarta-feira")
	if math.Abs(r.ConfidenceBoost-0.06) > 1e-9 {
		t.Errorf("expected weekday boost 0.06, got %f", r.ConfidenceBoost)
	}

	r = b.AnalyzeTemporal("quero saber sobre o método")
	if r.Detected || r.ConfidenceBoost != 0 {
		t.Errorf("expected no temporal signal, got %+v", r)
	}
}

func TestAnalyzeProfessionalReferences(t *testing.T) {
	b := NewBooster(WithEstablishment("unidade-centro"))
	r := b.AnalyzeProfessionalReferences("a Carla me atendeu ontem")
	if !r.Detected {
		t.Fatal("expected staff reference detection")
	}
	if math.Abs(r.ConfidenceBoost-0.05) > 1e-9 {
		t.Errorf("expected 0.05 for one match, got %f", r.ConfidenceBoost)
	}

	// Unknown establishment falls back to the generic role list.
	generic := NewBooster(WithEstablishment("unidade-inexistente"))
	r = generic.AnalyzeProfessionalReferences("falei com a professora ontem")
	if !r.Detected {
		t.Error("expected generic role match")
	}
}

func TestAnalyzeProfessionalReferencesCap(t *testing.T) {
	b := NewBooster(WithProfessionals([]string{"ana", "bia", "carla"}))
	r := b.AnalyzeProfessionalReferences("ana, bia e carla me atenderam")
	if math.Abs(r.ConfidenceBoost-0.10) > 1e-9 {
		t.Errorf("expected cap 0.10 for three matches, got %f", r.ConfidenceBoost)
	}
}

func TestAnalyzeServiceVocabulary(t *testing.T) {
	b := NewBooster()
	r := b.AnalyzeServiceVocabulary("dificuldade em matemática e leitura")
	if !r.Detected {
		t.Fatal("expected vocabulary detection")
	}
	// One math term + one language-arts term: 0.02 + 0.02.
	if math.Abs(r.ConfidenceBoost-0.04) > 1e-9 {
		t.Errorf("expected 0.04, got %f", r.ConfidenceBoost)
	}

	r = b.AnalyzeServiceVocabulary("bom dia, tudo bem?")
	if r.Detected {
		t.Errorf("expected no vocabulary signal, got %+v", r)
	}
}

func TestAnalyzeMultiIntent(t *testing.T) {
	b := NewBooster()

	// Scenario: scheduling.book + temporal.weekday must include the
	// scheduling+temporal composition bonus of +0.08.
	r := b.AnalyzeMultiIntent([]intent.DetectedIntent{
		{Intent: "scheduling.book"},
		{Intent: "temporal.weekday"},
	})
	if !r.Detected {
		t.Fatal("expected multi-intent detection")
	}
	if math.Abs(r.ConfidenceBoost-0.08) > 1e-9 {
		t.Errorf("expected scheduling+temporal bonus 0.08, got %f", r.ConfidenceBoost)
	}

	// Single intent never activates.
	r = b.AnalyzeMultiIntent([]intent.DetectedIntent{{Intent: "scheduling.book"}})
	if r.Detected || r.ConfidenceBoost != 0 {
		t.Errorf("expected no activation for single intent, got %+v", r)
	}

	// Three categories stack bonuses but stay under the 0.15 cap:
	// 0.08 + 0.06 + 0.03 = 0.17 -> 0.15.
	r = b.AnalyzeMultiIntent([]intent.DetectedIntent{
		{Intent: "scheduling.book"},
		{Intent: "temporal.weekday"},
		{Intent: "service.math"},
	})
	if math.Abs(r.ConfidenceBoost-0.15) > 1e-9 {
		t.Errorf("expected cap 0.15, got %f", r.ConfidenceBoost)
	}
}

func TestAnalyzeCoherence(t *testing.T) {
	b := NewBooster()
	r := b.AnalyzeCoherence("qual o horário para meu filho estudar?")
	// reasonable length +0.02, question +0.03, family context +0.02.
	if math.Abs(r.ConfidenceBoost-0.07) > 1e-9 {
		t.Errorf("expected 0.07, got %f", r.ConfidenceBoost)
	}

	// Question and polite register are independent signals: both count.
	// reasonable length +0.02, question +0.03, polite +0.02, family +0.02.
	r = b.AnalyzeCoherence("por favor qual o horário para meu filho")
	if math.Abs(r.ConfidenceBoost-0.09) > 1e-9 {
		t.Errorf("expected 0.09 for polite question, got %f", r.ConfidenceBoost)
	}
	if !strings.Contains(r.Reasoning, "polite_register") {
		t.Errorf("expected polite_register in reasoning, got %q", r.Reasoning)
	}

	r = b.AnalyzeCoherence("ok")
	if r.ConfidenceBoost != 0 {
		t.Errorf("expected no coherence boost for 'ok', got %f", r.ConfidenceBoost)
	}
}

func TestAnalyzeUrgency(t *testing.T) {
	b := NewBooster()

	r := b.AnalyzeUrgency("preciso resolver isso urgente, o quanto antes")
	if math.Abs(r.ConfidenceBoost-0.08) > 1e-9 {
		t.Errorf("expected high+medium 0.08, got %f", r.ConfidenceBoost)
	}

	r = b.AnalyzeUrgency("pode ser qualquer dia, sem pressa")
	if r.ConfidenceBoost >= 0 {
		t.Errorf("expected negative boost for no-rush, got %f", r.ConfidenceBoost)
	}
}

func TestTotalBoostDiminishingReturns(t *testing.T) {
	// Sum 0.20: knee at 0.10, excess halved -> 0.15.
	results := []Result{
		{ConfidenceBoost: 0.12},
		{ConfidenceBoost: 0.08},
	}
	if got := TotalBoost(results); math.Abs(got-0.15) > 1e-9 {
		t.Errorf("expected 0.15, got %f", got)
	}

	// Below the knee the sum passes through unchanged.
	results = []Result{{ConfidenceBoost: 0.04}, {ConfidenceBoost: 0.05}}
	if got := TotalBoost(results); math.Abs(got-0.09) > 1e-9 {
		t.Errorf("expected 0.09, got %f", got)
	}
}

func TestTotalBoostHardCap(t *testing.T) {
	// Even absurd inputs never exceed 0.25.
	results := []Result{
		{ConfidenceBoost: 0.12},
		{ConfidenceBoost: 0.10},
		{ConfidenceBoost: 0.10},
		{ConfidenceBoost: 0.15},
		{ConfidenceBoost: 0.09},
		{ConfidenceBoost: 0.05},
	}
	if got := TotalBoost(results); got > 0.25 {
		t.Errorf("expected hard cap 0.25, got %f", got)
	}
}

func TestTotalBoostAllAnalyzers(t *testing.T) {
	b := NewBooster()
	msg := "urgente! quero agendar matemática para meu filho amanhã às 14h"
	detected := []intent.DetectedIntent{
		{Intent: "scheduling.book"},
		{Intent: "temporal.relative"},
		{Intent: "service.math"},
	}
	total := TotalBoost(b.AnalyzeAll(msg, detected))
	if total <= 0 {
		t.Errorf("expected positive total boost, got %f", total)
	}
	if total > 0.25 {
		t.Errorf("total boost exceeds hard cap: %f", total)
	}
}
