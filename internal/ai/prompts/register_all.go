package prompts

// RegisterAll registers every prompt using RegisterSpec(Spec{...}).
// Prompt bodies are in Portuguese: the product serves Brazilian public
// service exams (concursos) and the models are addressed in the domain
// language.
func RegisterAll() {
	// ---------- Edict processing ----------

	RegisterSpec(Spec{
		Name:       PromptEdictExtraction,
		Version:    1,
		SchemaName: "edict_extraction",
		Schema:     EdictExtractionSchema,
		System: `
Você é um assistente especialista em analisar editais de concursos públicos do Brasil.
Sua tarefa é analisar o documento PDF fornecido e extrair as informações chave sobre o concurso.
Retorne SOMENTE um objeto JSON válido que corresponda ao schema solicitado.`,
		User: `
Preencha todos os campos do schema JSON solicitado com a maior precisão possível.
- Extraia o nome completo e oficial do concurso.
- Identifique a banca examinadora, responsável pela aplicação da prova.
- Encontre a data da prova objetiva principal, no formato AAAA-MM-DD. Caso não encontre, deixe como null.
- Para cada cargo listado no edital, extraia seu nome, a composição da prova (disciplinas, número de questões, pesos) e todo o conteúdo programático detalhado.
- Para o conteúdo programático, agrupe os tópicos em "topic_group" lógicos que façam sentido para um estudante organizar seus estudos. Agrupe tópicos semanticamente relacionados, por exemplo, todas as Leis e Decretos sobre um mesmo assunto devem pertencer ao mesmo grupo. Tópicos de 'Solos' devem ir para um grupo como 'Manejo de Solos'.
- Se o edital já fornecer uma subdivisão clara (como 'Matemática Financeira' dentro de 'Conhecimentos Específicos'), use essa subdivisão como o "topic_group".

Se alguma informação numérica como número de questões ou peso não for encontrada para uma disciplina, deixe o campo como nulo.`,
	})

	RegisterSpec(Spec{
		Name:       PromptSubjectRefinement,
		Version:    1,
		SchemaName: "subject_refinement",
		Schema:     EdictExtractionSchema,
		System: `
Você é um revisor especialista em conteúdo programático de concursos públicos.
Sua tarefa é refinar a categorização de um JSON já extraído de um edital.
Retorne SOMENTE um objeto JSON válido que corresponda ao schema solicitado.`,
		User: `
# DADOS EXTRAÍDOS
{{.ExtractedJSON}}

# SUA TAREFA
Revise os campos 'exam_module', 'subject' e 'topic_group' de cada tópico:
1. Normalize nomes de matérias equivalentes (ex: 'Português' e 'Língua Portuguesa' devem usar o mesmo nome).
2. Reagrupe tópicos em 'topic_group' mais coerentes quando o agrupamento atual estiver inconsistente.
3. Corrija tópicos claramente associados à matéria errada.

# REGRAS OBRIGATÓRIAS
- NÃO adicione novos tópicos.
- NÃO remova tópicos existentes.
- NÃO altere o texto do campo 'topic'.
- Preserve todos os demais campos (nome do concurso, banca, data, cargos, composição da prova).`,
		Validators: []Validator{
			RequireNonEmpty("ExtractedJSON", func(in Input) string { return in.ExtractedJSON }),
		},
	})

	// ---------- Study plan generation ----------

	RegisterSpec(Spec{
		Name:       PromptTopicAnalysis,
		Version:    1,
		SchemaName: "topic_analysis",
		Schema:     TopicAnalysisSchema,
		System: `
Você é um coach de estudos especialista. Sua missão é analisar CADA tópico de uma lista e retornar uma análise estruturada.
Retorne SOMENTE um objeto JSON válido com uma chave "analyzed_topics", contendo uma lista de objetos, um para CADA tópico original.`,
		User: `
# DADOS DE ENTRADA
A seguir, você receberá uma lista de tópicos em formato JSON. Cada objeto na lista representa um tópico e contém:
- 'topic_id': O identificador numérico único, cada topic_name terá um topic_id único.
- 'exam_module': Nome do módulo da prova (ex: 'Conhecimentos Básicos').
- 'subject': Nome da matéria ou disciplina (ex: 'Língua Portuguesa').
- 'topic_name': Nome do tópico específico (ex: 'Concordância Verbal').
- 'proficiency': A proficiência atual do aluno no assunto (de 0.0 a 1.0).
- 'subject_weight': Peso que a matéria ou módulo representa na nota final da prova. (Quantidade de questões x peso por questão).

## LISTA DE TÓPICOS:
{{.TopicsJSON}}

# SUA TAREFA
Para CADA tópico na lista de entrada, forneça as seguintes análises:
1. **priority_level:** Classifique o tópico em "Alta Prioridade", "Média Prioridade", ou "Baixa Prioridade", baseado na 'proficiency' e 'subject_weight'.
2. **estimated_sessions:** Estime o número de sessões de 30 min necessárias. Cada Sessão de Foco tem 30 minutos de duração, sendo que cada sessão é um período de estudo otimizado para concentração total, utilizando recursos como mapas mentais, flashcards, e técnicas de revisão espaçada.
No fim de cada sessão é realizada uma breve avaliação para reforçar o aprendizado.
3. **prerequisite_topic_ids:** Liste os 'topic_id's dos tópicos que são pré-requisitos diretos. Se não houver, retorne uma lista vazia. Por exemplo, 'Juros Simples' pode ser um pré-requisito para 'Juros Compostos'.`,
		Validators: []Validator{
			RequireNonEmpty("TopicsJSON", func(in Input) string { return in.TopicsJSON }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptPlanOrganization,
		Version:    1,
		SchemaName: "plan_organization",
		Schema:     StudyPlanSchema,
		System: `
Você é um planejador de estudos especialista. Sua missão é criar um roadmap de estudo sequencial e otimizado a partir de uma lista de tópicos já analisados.
Retorne SOMENTE um objeto JSON válido com uma chave "roadmap", contendo a lista ordenada de sessões.`,
		User: `
# DADOS DE ENTRADA
- Número total de "Sessões de Foco" disponíveis até a prova: {{.TotalSessions}}
- Lista de tópicos analisados (com prioridade, sessões estimadas e pré-requisitos). Não há uma ordem específica nesta lista:
{{.AnalyzedTopicsJSON}}

# SUA TAREFA
Crie um roadmap sequencial de sessões de estudo. Ou seja, uma lista ordenada de sessões, onde cada sessão contém:
1. **Ordenação:** A sequência DEVE respeitar os 'prerequisite_topic_ids'. Essa ordem vai representar a ordem ideal de estudo.
2. **Intercalação:** Evite sequências seguidas longas da mesma matéria. Intercale o estudo de diferentes matérias. Defina no máximo 3 sessões consecutivas da mesma matéria, mesmo que isso signifique flexibilizar a prioridade.
3. **Distribuição:** Distribua os tópicos ao longo do número de sessões disponíveis.
4. **Agrupamento:** Se o número total de sessões necessárias exceder as {{.TotalSessions}} disponíveis, agrupe tópicos correlatos de "Baixa Prioridade" em uma única sessão. Para sessões agrupadas, a lista 'topic_ids' conterá múltiplos IDs. Também agrupe tópicos que sejam muito similares ou curtos demais para uma sessão completa. Mas sempre agrupe tópicos que façam sentido juntos.
5. **Divisão:** Para os tópicos que necessitam de mais de 1 sessão, se atente em criar a quantidade de sessões necessárias com aquele tópico.`,
		Validators: []Validator{
			RequireNonEmpty("AnalyzedTopicsJSON", func(in Input) string { return in.AnalyzedTopicsJSON }),
			RequirePositive("TotalSessions", func(in Input) int { return in.TotalSessions }),
		},
	})

	// ---------- Validation loop ----------

	RegisterSpec(Spec{
		Name:       PromptJSONCorrection,
		Version:    1,
		SchemaName: "json_correction",
		Schema:     CorrectionSchema,
		System: `
Você corrige respostas JSON inválidas mantendo o schema solicitado na mensagem anterior.`,
		User: `
# CONTEXTO
Sua tarefa anterior resultou em um erro porque a sua resposta não foi um objeto JSON válido ou não correspondeu ao schema solicitado.

# ERRO ENCONTRADO
{{.ErrorSummary}}

# RESPOSTA INVÁLIDA QUE VOCÊ GEROU
{{.InvalidResponse}}

# SUA TAREFA
Por favor, corrija a sua resposta anterior. Você DEVE retornar SOMENTE o objeto JSON corrigido, sem nenhum outro texto ou explicação, e garantindo que ele corresponda perfeitamente ao schema solicitado na mensagem anterior.`,
		Validators: []Validator{
			RequireNonEmpty("ErrorSummary", func(in Input) string { return in.ErrorSummary }),
		},
	})
}
