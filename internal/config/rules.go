// Package config loads the prefilter rule configuration for AtendeFlow.
//
// Rule files are YAML lists of {rule_id, literal, priority, language}
// entries. Parsing is strict: unknown fields fail, and an unreadable or
// malformed file is a startup-fatal error, never a silent fallback, because
// a broken rule set silently degrades classification quality.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/EduFluxo/AtendeFlow/internal/prefilter"
)

// rulesFile is the on-disk shape of a rule configuration file.
type rulesFile struct {
	Rules []prefilter.Rule `yaml:"rules"`
}

// LoadRules reads and parses a YAML rule file. Shape validation beyond
// field names happens in prefilter.Index.Build, which owns the rule
// invariants.
func LoadRules(path string) ([]prefilter.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read rules file %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules parses YAML rule bytes. Unknown fields are rejected so a typo
// in a rule file fails loudly instead of silently dropping the field.
func ParseRules(data []byte) ([]prefilter.Rule, error) {
	var file rulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("config: failed to parse rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("config: rules file contains no rules")
	}
	return file.Rules, nil
}

// DefaultRules returns the built-in prefilter rule set used when no rule
// file is configured. Each literal is an anchor that must appear for the
// corresponding intent regex to possibly match; intents whose regex has
// several alternatives get one rule per alternative.
func DefaultRules() []prefilter.Rule {
	return []prefilter.Rule{
		{RuleID: "scheduling.book.agendar", Literal: "agendar", Priority: 1, Language: "pt-BR"},
		{RuleID: "scheduling.book.marcar", Literal: "marcar", Priority: 1, Language: "pt-BR"},
		{RuleID: "scheduling.book.matricula", Literal: "matrícula", Priority: 1, Language: "pt-BR"},
		{RuleID: "scheduling.assessment.avaliacao", Literal: "avaliação", Priority: 1, Language: "pt-BR"},
		{RuleID: "scheduling.reschedule.remarcar", Literal: "remarcar", Priority: 2, Language: "pt-BR"},
		{RuleID: "scheduling.reschedule.reagendar", Literal: "reagendar", Priority: 2, Language: "pt-BR"},
		{RuleID: "scheduling.cancel.cancelar", Literal: "cancelar", Priority: 2, Language: "pt-BR"},
		{RuleID: "scheduling.cancel.desmarcar", Literal: "desmarcar", Priority: 2, Language: "pt-BR"},
		{RuleID: "scheduling.availability.vaga", Literal: "vaga", Priority: 2, Language: "pt-BR"},
		{RuleID: "scheduling.availability.horario", Literal: "horário", Priority: 2, Language: "pt-BR"},
		{RuleID: "information.pricing.custa", Literal: "quanto custa", Priority: 1, Language: "pt-BR"},
		{RuleID: "information.pricing.preco", Literal: "preço", Priority: 1, Language: "pt-BR"},
		{RuleID: "information.pricing.valor", Literal: "valor", Priority: 1, Language: "pt-BR"},
		{RuleID: "information.pricing.mensalidade", Literal: "mensalidade", Priority: 1, Language: "pt-BR"},
		{RuleID: "information.method.metodo", Literal: "método", Priority: 2, Language: "pt-BR"},
		{RuleID: "information.method.funciona", Literal: "como funciona", Priority: 2, Language: "pt-BR"},
		{RuleID: "information.location.endereco", Literal: "endereço", Priority: 3, Language: "pt-BR"},
		{RuleID: "information.location.ondefica", Literal: "onde fica", Priority: 3, Language: "pt-BR"},
		{RuleID: "information.hours.atendimento", Literal: "atendimento", Priority: 3, Language: "pt-BR"},
		{RuleID: "information.age.idade", Literal: "idade", Priority: 3, Language: "pt-BR"},
		{RuleID: "service.math.matematica", Literal: "matemática", Priority: 2, Language: "pt-BR"},
		{RuleID: "service.portuguese.portugues", Literal: "português", Priority: 2, Language: "pt-BR"},
		{RuleID: "service.portuguese.leitura", Literal: "leitura", Priority: 2, Language: "pt-BR"},
		{RuleID: "service.english.ingles", Literal: "inglês", Priority: 2, Language: "pt-BR"},
		{RuleID: "service.general.reforco", Literal: "reforço", Priority: 3, Language: "pt-BR"},
		{RuleID: "temporal.weekday.feira", Literal: "segunda", Priority: 3, Language: "pt-BR"},
		{RuleID: "temporal.relative.amanha", Literal: "amanhã", Priority: 3, Language: "pt-BR"},
		{RuleID: "temporal.relative.hoje", Literal: "hoje", Priority: 3, Language: "pt-BR"},
		{RuleID: "payment.methods.pix", Literal: "pix", Priority: 2, Language: "pt-BR"},
		{RuleID: "payment.methods.boleto", Literal: "boleto", Priority: 2, Language: "pt-BR"},
		{RuleID: "payment.methods.cartao", Literal: "cartão", Priority: 2, Language: "pt-BR"},
		{RuleID: "payment.discount.desconto", Literal: "desconto", Priority: 3, Language: "pt-BR"},
		{RuleID: "payment.overdue.atraso", Literal: "atraso", Priority: 2, Language: "pt-BR"},
	}
}
