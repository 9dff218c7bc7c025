package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/EduFluxo/AtendeFlow/internal/models"
	"github.com/EduFluxo/AtendeFlow/internal/routing"
)

// replySystemPrompt instructs the LLM when composing an enhanced reply.
const replySystemPrompt = `Você é a recepcionista virtual de uma unidade de ensino de reforço escolar.
Responda em português brasileiro, em tom acolhedor e profissional, em no máximo duas frases.
Nunca invente preços, horários ou nomes de professores. Se não souber, ofereça agendar uma conversa.`

// stageReplies are the canned confident-path replies, keyed by the stage
// the decision routed to.
var stageReplies = map[models.ConversationStage]string{
	models.StageGreeting:             "Olá! Que bom ter você por aqui. Como posso ajudar?",
	models.StageQualification:        "Perfeito! Para começar, pode me dizer o seu nome e o nome do aluno?",
	models.StageInformationGathering: "Claro! Nosso método é individualizado e o material acompanha o ritmo de cada aluno. Quer saber mais sobre valores ou sobre como funciona?",
	models.StageScheduling:           "Ótimo! Podemos agendar uma avaliação diagnóstica gratuita. Qual dia e horário ficam melhores para você?",
	models.StageConfirmation:         "Perfeito, sua avaliação está confirmada! Vou te enviar um lembrete um dia antes.",
	models.StageCompleted:            "Obrigada pelo contato! Se precisar de algo mais, é só chamar.",
}

const (
	clarificationReply = "Só para eu entender melhor: você gostaria de informações sobre o método, valores, ou prefere agendar uma avaliação?"
	missingFieldsReply = "Antes de agendar, preciso de algumas informações: o seu nome, o nome do aluno e a idade dele. Pode me passar?"
	reanchorReply      = "Vamos recomeçar do início para eu te ajudar melhor. Como posso ajudar?"
	humanHandoffReply  = "Vou pedir para alguém da nossa equipe continuar essa conversa com você, só um instante!"
)

// composeReply selects the reply for the decision. Only the
// enhance_with_llm band consults the LLM, and an LLM failure falls back to
// the canned reply for the routed stage.
func (r *Receptionist) composeReply(ctx context.Context, body string, current models.ConversationStage, decision routing.Decision) string {
	switch decision.Action {
	case routing.ActionProceed:
		return cannedReply(decision.TargetNode)
	case routing.ActionEnhanceWithLLM:
		if r.classifier != nil {
			reply, err := r.classifier.GenerateReply(ctx, replySystemPrompt, body)
			if err == nil && reply != "" {
				return reply
			}
			slog.Warn("flow.composeReply: LLM reply failed, using canned reply", "error", err)
		}
		return cannedReply(decision.TargetNode)
	case routing.ActionFallbackLevel1:
		return clarificationReply
	case routing.ActionFallbackLevel2:
		if decision.MandatoryDataOverride {
			return missingFieldsReply
		}
		return reanchorReply
	case routing.ActionEscalateHuman:
		return humanHandoffReply
	}
	return cannedReply(string(current))
}

func cannedReply(node string) string {
	if reply, ok := stageReplies[models.ConversationStage(node)]; ok {
		return reply
	}
	if node == routing.HumanHandoffNode {
		return humanHandoffReply
	}
	return stageReplies[models.StageGreeting]
}

// webhookIntent maps the pipeline outcome onto the closed webhook label set.
func webhookIntent(topIntent string, isGreeting, isObjection bool, action routing.Action) models.WebhookIntent {
	if isObjection {
		return models.WebhookIntentObjection
	}
	if action == routing.ActionFallbackLevel2 || action == routing.ActionEscalateHuman {
		return models.WebhookIntentFallback
	}
	category := topIntent
	if i := strings.IndexByte(category, '.'); i >= 0 {
		category = category[:i]
	}
	switch category {
	case "scheduling":
		return models.WebhookIntentScheduling
	case "information", "service", "payment", "temporal":
		return models.WebhookIntentInformationRequest
	}
	if isGreeting {
		return models.WebhookIntentGreeting
	}
	return models.WebhookIntentFallback
}

// routingHint picks the optional routing_hint value for the webhook payload.
func routingHint(action routing.Action, isObjection bool) string {
	switch {
	case isObjection:
		return models.RoutingHintPriceObjection
	case action == routing.ActionEscalateHuman:
		return models.RoutingHintHandoffHuman
	case action == routing.ActionFallbackLevel1:
		return models.RoutingHintClarification
	}
	return ""
}
