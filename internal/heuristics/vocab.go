package heuristics

// serviceVocabulary is one fixed subject-domain term list.
type serviceVocabulary struct {
	name  string
	terms []string
}

// serviceVocabularies holds the four fixed subject vocabularies scanned by
// AnalyzeServiceVocabulary. Terms are lowercase; matching is substring-based
// so inflected forms still hit ("estudando" contains "estud").
var serviceVocabularies = []serviceVocabulary{
	{
		name: "math",
		terms: []string{
			"matemática", "matematica", "cálculo", "calculo", "tabuada",
			"fração", "fracao", "equação", "equacao", "números", "numeros",
		},
	},
	{
		name: "language_arts",
		terms: []string{
			"português", "portugues", "leitura", "escrita", "redação",
			"redacao", "interpretação", "interpretacao", "alfabetização",
			"alfabetizacao", "gramática", "gramatica",
		},
	},
	{
		name: "foreign_language",
		terms: []string{
			"inglês", "ingles", "idioma", "conversação", "conversacao",
			"fluência", "fluencia",
		},
	},
	{
		name: "general_education",
		terms: []string{
			"reforço", "reforco", "lição", "licao", "dever de casa",
			"escola", "estud", "aprendizado", "concentração", "concentracao",
			"disciplina", "autodidata",
		},
	},
}

// defaultProfessionals is the generic staff allow-list used when no
// establishment-specific list is configured.
var defaultProfessionals = []string{
	"orientadora", "orientador", "professora", "professor",
	"coordenadora", "coordenador", "auxiliar", "recepção", "recepcao",
}

// professionalsByEstablishment maps an establishment identifier to its staff
// nickname/role allow-list. Populated from deployment configuration; the
// entries here cover the pilot units.
var professionalsByEstablishment = map[string][]string{
	"unidade-centro": {
		"tia ana", "professora ana", "orientadora ana", "carla", "recepção",
	},
	"unidade-jardins": {
		"tia bia", "professora beatriz", "orientador marcos", "recepção",
	},
}
