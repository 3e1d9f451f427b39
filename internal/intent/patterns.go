package intent

// PatternGroup is one weighted set of keywords and phrases for an intent.
type PatternGroup struct {
	Keywords []string
	Phrases  []string
	Weight   float64
}

type intentPatterns struct {
	Intent IntentType
	Groups []PatternGroup
}

// defaultPatterns is scanned in order; ties in confidence keep this order.
var defaultPatterns = []intentPatterns{
	{IntentBookingRequest, []PatternGroup{
		{
			Keywords: []string{"agendar", "marcar", "reservar", "consulta", "horário", "vaga"},
			Phrases:  []string{"gostaria de agendar", "quero agendar", "quero marcar", "preciso de um horário"},
			Weight:   1.0,
		},
		{
			Keywords: []string{"quando", "disponível", "livre", "posso"},
			Phrases:  []string{"quando posso", "tem vaga", "está disponível"},
			Weight:   0.8,
		},
	}},
	{IntentBookingCancel, []PatternGroup{{
		Keywords: []string{"cancelar", "desmarcar", "não posso", "impedir"},
		Phrases:  []string{"quero cancelar", "preciso cancelar", "não vou poder"},
		Weight:   1.0,
	}}},
	{IntentBookingReschedule, []PatternGroup{{
		Keywords: []string{"remarcar", "mudar", "trocar", "alterar", "reagendar"},
		Phrases:  []string{"quero remarcar", "posso mudar", "trocar horário"},
		Weight:   1.0,
	}}},
	{IntentBookingInquiry, []PatternGroup{{
		Keywords: []string{"agendamento", "marcado", "reservado", "confirmado"},
		Phrases:  []string{"meu agendamento", "está marcado", "foi confirmado"},
		Weight:   1.0,
	}}},
	{IntentServiceInquiry, []PatternGroup{{
		Keywords: []string{"serviço", "oferecer", "fazer", "tipos", "trabalho"},
		Phrases:  []string{"que serviços", "fazem o que", "tipos de"},
		Weight:   1.0,
	}}},
	{IntentAvailabilityCheck, []PatternGroup{{
		Keywords: []string{"disponível", "livre", "vago", "horário", "quando"},
		Phrases:  []string{"tem horário", "está livre", "quando disponível"},
		Weight:   1.0,
	}}},
	{IntentPriceInquiry, []PatternGroup{{
		Keywords: []string{"preço", "valor", "custo", "quanto", "custa", "orçamento"},
		Phrases:  []string{"quanto custa", "qual o preço", "valor do"},
		Weight:   1.0,
	}}},
	{IntentBusinessHours, []PatternGroup{{
		Keywords: []string{"horário", "funcionamento", "aberto", "fechado", "quando"},
		Phrases:  []string{"horário de funcionamento", "que horas", "está aberto"},
		Weight:   1.0,
	}}},
	{IntentLocationInquiry, []PatternGroup{{
		Keywords: []string{"onde", "endereço", "localização", "fica", "local"},
		Phrases:  []string{"onde fica", "qual endereço", "como chegar"},
		Weight:   1.0,
	}}},
	{IntentGeneralGreeting, []PatternGroup{{
		Keywords: []string{"oi", "olá", "bom dia", "boa tarde", "boa noite", "hey"},
		Phrases:  []string{"oi tudo bem", "olá como vai", "bom dia"},
		Weight:   1.0,
	}}},
	{IntentComplaint, []PatternGroup{{
		Keywords: []string{"reclamação", "problema", "ruim", "péssimo", "insatisfeito", "reclamar"},
		Phrases:  []string{"estou insatisfeito", "foi péssimo", "quero reclamar"},
		Weight:   1.0,
	}}},
	{IntentCompliment, []PatternGroup{{
		Keywords: []string{"ótimo", "excelente", "parabéns", "obrigado", "adorei", "perfeito"},
		Phrases:  []string{"foi ótimo", "adorei o serviço", "muito obrigado"},
		Weight:   1.0,
	}}},
	{IntentEscalationRequest, []PatternGroup{{
		Keywords: []string{"gerente", "responsável", "supervisor", "falar com", "atendente"},
		Phrases:  []string{"quero falar com", "cadê o gerente", "preciso de ajuda"},
		Weight:   1.0,
	}}},
	{IntentEmergency, []PatternGroup{{
		Keywords: []string{"urgente", "emergência", "socorro", "ajuda", "grave", "crítico"},
		Phrases:  []string{"é urgente", "preciso de ajuda", "emergência"},
		Weight:   1.0,
	}}},
	{IntentInfoRequest, []PatternGroup{{
		Keywords: []string{"informação", "informações", "saber", "dúvida", "explicar"},
		Phrases:  []string{"gostaria de saber", "queria saber", "tenho uma dúvida", "mais informações"},
		Weight:   1.0,
	}}},
	{IntentOther, []PatternGroup{{Weight: 0.1}}},
}

// intentFlow keys a transition from the previous intent to a candidate.
type intentFlow struct {
	From IntentType
	To   IntentType
}

var defaultFlowBonus = map[intentFlow]float64{
	{IntentGeneralGreeting, IntentServiceInquiry}:   0.2,
	{IntentServiceInquiry, IntentPriceInquiry}:      0.3,
	{IntentPriceInquiry, IntentBookingRequest}:      0.3,
	{IntentAvailabilityCheck, IntentBookingRequest}: 0.5,
	{IntentBookingRequest, IntentBookingInquiry}:    0.3,
}

var defaultDomainBoosts = map[BusinessDomain]map[IntentType]float64{
	DomainHealthcare: {IntentBookingRequest: 0.2, IntentEmergency: 0.3, IntentEscalationRequest: 0.1},
	DomainBeauty:     {IntentBookingRequest: 0.2, IntentServiceInquiry: 0.1, IntentPriceInquiry: 0.1},
	DomainLegal:      {IntentBookingRequest: 0.1, IntentEmergency: 0.2, IntentEscalationRequest: 0.2},
	DomainEducation:  {IntentBookingRequest: 0.2, IntentServiceInquiry: 0.1},
	DomainSports:     {IntentBookingRequest: 0.2, IntentServiceInquiry: 0.1},
	DomainConsulting: {IntentBookingRequest: 0.1, IntentServiceInquiry: 0.2, IntentPriceInquiry: 0.2},
}

type domainKeywords struct {
	Domain   BusinessDomain
	Keywords []string
}

var defaultDomainKeywords = []domainKeywords{
	{DomainHealthcare, []string{
		"psicólogo", "terapia", "consulta", "sessão", "depressão", "ansiedade",
		"psiquiatra", "medicamento", "tratamento", "saúde mental",
	}},
	{DomainBeauty, []string{
		"cabelo", "corte", "coloração", "manicure", "pedicure", "unha",
		"maquiagem", "sobrancelha", "salão", "beleza", "estética",
	}},
	{DomainLegal, []string{
		"advogado", "processo", "jurídico", "contrato", "consulta legal",
		"direito", "lei", "tribunal", "ação", "defesa",
	}},
	{DomainEducation, []string{
		"aula", "professor", "ensino", "aprender", "estudar", "reforço",
		"tutoring", "matéria", "disciplina", "curso", "educação",
	}},
	{DomainSports, []string{
		"treino", "academia", "exercício", "personal", "fitness", "musculação",
		"cardio", "pilates", "yoga", "esporte", "condicionamento",
	}},
	{DomainConsulting, []string{
		"consultoria", "negócio", "empresa", "estratégia", "planejamento",
		"gestão", "financeiro", "marketing", "vendas", "operações",
	}},
}

var (
	positiveWords = []string{"bom", "ótimo", "excelente", "obrigado", "adorei", "perfeito"}
	negativeWords = []string{"ruim", "péssimo", "problema", "reclamação", "insatisfeito"}
)
