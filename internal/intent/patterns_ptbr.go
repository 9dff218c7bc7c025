package intent

// patternSpec is the raw, declarative form of one rule before compilation.
type patternSpec struct {
	intent      string
	pattern     string
	boost       float64
	priority    int
	description string
	examples    []string
}

// defaultPatternsPTBR is the authoritative PT-BR rule table for the tutoring
// receptionist. Patterns are matched against lowercased text and spell out
// accented and unaccented variants, since WhatsApp users type both.
//
// Priority: lower = higher precedence (1 is strongest). Rules within a
// category are evaluated in ascending priority order.
var defaultPatternsPTBR = []patternSpec{
	// --- scheduling ---
	{
		intent:      "scheduling.book",
		pattern:     `\b(agendar|marcar|agendamento|quero uma vaga|fazer matr[ií]cula|matricular)\b`,
		boost:       0.15,
		priority:    1,
		description: "pedido para agendar avaliação ou matrícula",
		examples:    []string{"gostaria de agendar uma avaliação", "quero marcar um horário"},
	},
	{
		intent:      "scheduling.assessment",
		pattern:     `\bavalia[cç][aã]o( diagn[oó]stica| gratuita)?\b`,
		boost:       0.15,
		priority:    1,
		description: "interesse na avaliação diagnóstica",
		examples:    []string{"como funciona a avaliação diagnóstica?"},
	},
	{
		intent:      "scheduling.reschedule",
		pattern:     `\b(remarcar|reagendar|mudar o hor[aá]rio|trocar o hor[aá]rio)\b`,
		boost:       0.12,
		priority:    2,
		description: "pedido de remarcação",
		examples:    []string{"preciso remarcar a aula de amanhã"},
	},
	{
		intent:      "scheduling.cancel",
		pattern:     `\b(cancelar|desmarcar)\b`,
		boost:       0.12,
		priority:    2,
		description: "pedido de cancelamento",
		examples:    []string{"quero cancelar o horário de quinta"},
	},
	{
		intent:      "scheduling.availability",
		pattern:     `\b(tem (vaga|hor[aá]rio)|hor[aá]rios? (dispon[ií]ve(l|is)|livres?)|disponibilidade)\b`,
		boost:       0.10,
		priority:    2,
		description: "consulta de disponibilidade",
		examples:    []string{"tem horário disponível sábado?"},
	},

	// --- information ---
	{
		intent:      "information.pricing",
		pattern:     `\b(quanto custa|pre[cç]os?|valor(es)?|mensalidades?|investimento|taxa de matr[ií]cula)\b`,
		boost:       0.14,
		priority:    1,
		description: "pergunta sobre preço ou mensalidade",
		examples:    []string{"quanto custa a mensalidade?"},
	},
	{
		intent:      "information.method",
		pattern:     `\b(m[eé]todo|metodologia|como funciona|material did[aá]tico|autodidat)\w*\b`,
		boost:       0.12,
		priority:    2,
		description: "pergunta sobre o método de ensino",
		examples:    []string{"como funciona o método de vocês?"},
	},
	{
		intent:      "information.location",
		pattern:     `\b(endere[cç]o|onde fica|localiza[cç][aã]o|unidade mais pr[oó]xima)\b`,
		boost:       0.10,
		priority:    3,
		description: "pergunta sobre endereço da unidade",
		examples:    []string{"onde fica a unidade?"},
	},
	{
		intent:      "information.hours",
		pattern:     `\b(hor[aá]rio de (funcionamento|atendimento)|que horas (abre|fecha)|at[eé] que horas)\b`,
		boost:       0.10,
		priority:    3,
		description: "pergunta sobre horário de funcionamento",
		examples:    []string{"qual o horário de atendimento?"},
	},
	{
		intent:      "information.age",
		pattern:     `\b(idade m[ií]nima|a partir de (que|qual) idade|aceita crian[cç]a)\b`,
		boost:       0.08,
		priority:    3,
		description: "pergunta sobre idade mínima dos alunos",
		examples:    []string{"a partir de qual idade pode começar?"},
	},

	// --- service ---
	{
		intent:      "service.math",
		pattern:     `\b(matem[aá]tica|c[aá]lculos?|tabuada|fra[cç][oõ]es)\b`,
		boost:       0.10,
		priority:    2,
		description: "interesse no programa de matemática",
		examples:    []string{"meu filho tem dificuldade em matemática"},
	},
	{
		intent:      "service.portuguese",
		pattern:     `\b(portugu[eê]s|leitura|escrita|interpreta[cç][aã]o de texto|alfabetiza[cç][aã]o)\b`,
		boost:       0.10,
		priority:    2,
		description: "interesse no programa de português",
		examples:    []string{"ela precisa melhorar a leitura"},
	},
	{
		intent:      "service.english",
		pattern:     `\b(ingl[eê]s)\b`,
		boost:       0.10,
		priority:    2,
		description: "interesse no programa de inglês",
		examples:    []string{"vocês têm curso de inglês?"},
	},
	{
		intent:      "service.general",
		pattern:     `\b(refor[cç]o escolar|li[cç][aã]o de casa|dever de casa|dificuldade (na escola|escolar))\b`,
		boost:       0.08,
		priority:    3,
		description: "reforço escolar em geral",
		examples:    []string{"procuro reforço escolar para minha filha"},
	},

	// --- temporal ---
	{
		intent:      "temporal.weekday",
		pattern:     `\b(segunda|ter[cç]a|quarta|quinta|sexta|s[aá]bado|domingo)(-feira)?\b`,
		boost:       0.08,
		priority:    3,
		description: "menção a dia da semana",
		examples:    []string{"pode ser na quarta-feira?"},
	},
	{
		intent:      "temporal.time",
		pattern:     `\b(\d{1,2}([:h]\d{2})?\s*(h|hs|horas?)?\b\s*(da (manh[aã]|tarde|noite))?|de manh[aã]|[aà] tarde|[aà] noite)\b`,
		boost:       0.08,
		priority:    3,
		description: "menção a horário do dia",
		examples:    []string{"pode ser às 14h?", "prefiro de manhã"},
	},
	{
		intent:      "temporal.relative",
		pattern:     `\b(hoje|amanh[aã]|depois de amanh[aã]|semana que vem|pr[oó]xim[ao] (semana|m[eê]s))\b`,
		boost:       0.06,
		priority:    3,
		description: "menção a data relativa",
		examples:    []string{"pode ser amanhã?"},
	},

	// --- payment ---
	{
		intent:      "payment.methods",
		pattern:     `\b(cart[aã]o|boleto|pix|dinheiro|parcelar|parcelamento|d[eé]bito|cr[eé]dito)\b`,
		boost:       0.10,
		priority:    2,
		description: "pergunta sobre formas de pagamento",
		examples:    []string{"posso pagar com pix?"},
	},
	{
		intent:      "payment.discount",
		pattern:     `\b(descontos?|promo[cç][aã]o|bolsas?( de estudo)?)\b`,
		boost:       0.08,
		priority:    3,
		description: "pergunta sobre desconto ou bolsa",
		examples:    []string{"tem desconto para irmãos?"},
	},
	{
		intent:      "payment.overdue",
		pattern:     `\b(mensalidade atrasada|em atraso|segunda via( do boleto)?)\b`,
		boost:       0.12,
		priority:    2,
		description: "mensalidade em atraso ou segunda via",
		examples:    []string{"preciso da segunda via do boleto"},
	},
}
