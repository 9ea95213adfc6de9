package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgWelcomeNewUser = "👋 *Olá! Seja bem-vindo(a)!*\n\n" +
		"Vejo que é sua primeira vez aqui.\n\n" +
		"🌟 Vamos começar criando seu perfil personalizado?"

	msgWelcomeAdmin = "🔐 *Painel Administrativo*\n\nBem-vinda, Nutricionista! 👩‍⚕️"

	msgNotRegistered = "❌ *Cadastro não encontrado*\n\n" +
		"Você precisa completar seu cadastro antes de acessar esta funcionalidade.\n\n" +
		"Vamos criar seu perfil agora? 😊"

	msgMainMenu = "📋 *Menu Principal*\n\nEscolha uma das opções abaixo:"

	msgUnknown = "🤔 Não entendi sua mensagem.\n\nUse os botões do menu ou /ajuda para ver os comandos."

	msgGenericError = "❌ *Ops! Algo deu errado...*\n\n" +
		"Tente novamente em alguns instantes.\n\n" +
		"💡 Se o problema persistir, entre em contato com a nutricionista."

	msgUnauthorized = "🔒 *Acesso Negado*\n\nVocê não tem permissão para acessar este recurso."

	msgCancelled = "✅ Operação cancelada."

	msgFinishRegistration = "⚠️ Finalize seu cadastro primeiro.\n\nResponda à pergunta acima ou use /cancelar para sair."

	msgPlanInactive = "🔒 *Recurso Premium*\n\n" +
		"Esta funcionalidade está disponível apenas para pacientes com plano ativo.\n\n" +
		"💰 Renove seu plano para continuar seu acompanhamento!"

	msgOptionExpired = "⌛ Essa opção expirou. Comece novamente pelo menu."

	msgAIUnavailable = "⚠️ A geração automática está indisponível no momento. Tente novamente mais tarde."

	msgHelp = "ℹ️ *Comandos disponíveis*\n\n" +
		"/start - Iniciar ou ver boas-vindas\n" +
		"/menu - Menu principal (cancela a operação atual)\n" +
		"/cancelar - Cancelar a operação atual\n" +
		"/perfil - Ver seu cadastro\n" +
		"/peso - Registrar peso\n" +
		"/questionario - Questionário alimentar mensal\n" +
		"/lembretes - Seus lembretes\n" +
		"/chat - Falar com a nutricionista\n" +
		"/planos - Planos e pagamento\n" +
		"/treino - Gerar treino\n" +
		"/receita - Gerar receita\n" +
		"/diario - Diário alimentar com fotos\n" +
		"/calorias - Registrar alimentos e calorias\n" +
		"/ajuda - Esta ajuda"

	msgChatStart = "💬 *Chat com Nutricionista*\n\n" +
		"Agora você pode enviar mensagens diretamente para a nutricionista! 👩‍⚕️\n\n" +
		"📝 Digite sua mensagem e ela será encaminhada.\n" +
		"📷 Você também pode enviar fotos e documentos.\n\n" +
		"❌ Para sair do chat, digite: /menu"

	msgChatEndedByNutritionist = "🔴 *Conversa Encerrada*\n\n" +
		"A nutricionista encerrou a conversa.\n\n" +
		"💡 Use /menu para acessar o menu novamente."

	msgFileUploadStart = "📄 *Enviar Arquivo*\n\n" +
		"Envie o arquivo que deseja compartilhar com a nutricionista.\n\n" +
		"📎 Tipos aceitos: PDF, imagens, documentos\n" +
		"⚠️ Tamanho máximo: 20MB\n\n" +
		"❌ Para cancelar, digite: /menu"

	msgQuestionnaireSuccess = "✅ *Questionário enviado com sucesso!*\n\n" +
		"Obrigado por compartilhar suas informações! 📝\n\n" +
		"🔔 A nutricionista foi notificada e irá analisar seus dados."
)

// mainMenu builds the patient menu; questionnaire buttons need an active plan
func mainMenu(activePlan bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(button("📋 Meu Cadastro", "menu:profile"), button("💰 Renovar Plano", "menu:renew")),
		tgbotapi.NewInlineKeyboardRow(button("🧮 Calculadora", "menu:analysis"), button("📆 Validade Plano", "menu:plan")),
		tgbotapi.NewInlineKeyboardRow(button("⚖️ Registrar Peso", "menu:weight_add"), button("📊 Evolução Peso", "menu:weight_history")),
		tgbotapi.NewInlineKeyboardRow(button("📄 Enviar Arquivo", "menu:upload"), button("📂 Meus Arquivos", "menu:files")),
		tgbotapi.NewInlineKeyboardRow(button("💬 Chat Nutricionista", "menu:chat"), button("🔔 Lembretes", "menu:reminders")),
		tgbotapi.NewInlineKeyboardRow(button("🍽️ Receitas", "menu:recipes"), button("🏋️ Gerar Treino", "menu:workout")),
		tgbotapi.NewInlineKeyboardRow(button("🍽️ Registrar Alimentos (kcal)", "menu:calories"), button("📸 Diário Alimentar", "menu:diary")),
	}
	if activePlan {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("📝 Enviar Questionário ⭐", "menu:questionnaire"),
			button("📋 Meus Questionários", "menu:records"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func adminMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("📊 Estatísticas", "admin:stats"), button("👥 Pacientes", "admin:patients")),
		tgbotapi.NewInlineKeyboardRow(button("⚠️ Vencendo", "admin:expiring"), button("❌ Vencidos", "admin:expired")),
		tgbotapi.NewInlineKeyboardRow(button("📢 Mensagem em Massa", "admin:broadcast"), button("📈 Eventos (30 dias)", "admin:analytics")),
	)
}
