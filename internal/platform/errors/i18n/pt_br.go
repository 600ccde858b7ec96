package i18n

var ptBRCatalog = &Catalog{
	locale: "pt-BR",
	messages: map[Code]string{
		CodeUnknown:        "Ocorreu um erro interno",
		CodeInvalidRequest: "O corpo da requisição é inválido",

		// Simulation errors
		CodeSimulationInvalidYear:       "Não há dados de eleição disponíveis para o ano {{.Year}}",
		CodeSimulationInvalidSpeed:      "A velocidade {{.Speed}} está fora do intervalo; deve ser maior que 0 e no máximo 10",
		CodeSimulationNotFound:          "A sessão de simulação não foi encontrada",
		CodeSimulationInvalidTransition: "Não é possível mover a simulação de {{.FromStatus}} para {{.ToStatus}}",

		// Election dataset errors
		CodeElectionNoData:        "Não há dados de eleição disponíveis para o ano {{.Year}}",
		CodeElectionInvalidRecord: "Registro do conjunto de dados é inválido: {{.Reason}}",

		// Viewer grant errors
		CodeViewerGrantInvalid:  "A credencial de acesso é inválida",
		CodeViewerGrantExpired:  "A credencial de acesso expirou",
		CodeViewerGrantMismatch: "O campo {{.Field}} da credencial de acesso não confere",

		// Stream errors
		CodeStreamSlowConsumer: "A conexão não consegue acompanhar o fluxo de eventos",

		// Storage errors
		CodeNotFound: "O recurso solicitado não foi encontrado",
	},
}
