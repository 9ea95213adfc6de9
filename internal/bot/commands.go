package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/flows"
	"nutribot/internal/models"
	"nutribot/internal/nutrition"
)

// handleCommand dispatches slash commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	userID := message.From.ID

	switch message.Command() {
	case "start":
		b.handleStart(ctx, chatID, userID)
	case "menu":
		b.showMenu(ctx, chatID, userID)
	case "cancelar":
		b.replyWithMarkup(chatID, msgCancelled, b.menuFor(ctx, userID))
	case "perfil":
		b.showProfile(ctx, chatID, userID)
	case "peso":
		b.startWeight(ctx, chatID, userID)
	case "questionario":
		b.startQuestionnaire(ctx, chatID, userID)
	case "lembretes":
		b.showReminders(ctx, chatID, userID)
	case "chat":
		b.startChat(ctx, chatID, userID)
	case "planos":
		b.showPlans(ctx, chatID, userID)
	case "treino":
		b.startWorkout(ctx, chatID, userID)
	case "receita":
		b.showRecipes(ctx, chatID, userID)
	case "diario":
		b.showDiary(ctx, chatID, userID)
	case "calorias":
		b.startCalories(ctx, chatID, userID)
	case "admin":
		b.showAdmin(chatID, userID)
	case "ajuda", "help":
		b.reply(chatID, msgHelp)
	default:
		b.reply(chatID, "Comando desconhecido. Use /ajuda para ver os comandos disponíveis.")
	}
}

// handleStart greets admins, returning patients and new users
func (b *Bot) handleStart(ctx context.Context, chatID, userID int64) {
	if b.IsAdmin(userID) {
		b.replyWithMarkup(chatID, msgWelcomeAdmin, adminMenu())
		return
	}

	p, err := b.loadPatient(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to load patient on start", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	if p != nil {
		b.replyWithMarkup(chatID,
			fmt.Sprintf("👋 *Olá, %s!*\n\nQue bom ter você de volta! 😊", p.FirstName()),
			mainMenu(p.HasActivePlan(b.now())))
		return
	}

	b.reply(chatID, msgWelcomeNewUser)
	b.startRegistration(ctx, chatID, userID)
}

func (b *Bot) startRegistration(ctx context.Context, chatID, userID int64) {
	b.startFlow(ctx, chatID, userID, flows.FlowRegistration, flows.RegistrationIntro)
}

func (b *Bot) formatProfile(p models.Patient) string {
	gender := p.Gender
	if gender == "" {
		gender = "Não informado"
	}
	return "━━━━━━━━━━━━━━━━\n" +
		fmt.Sprintf("👤 *Nome:* %s\n", p.Name) +
		fmt.Sprintf("🎂 *Idade:* %d anos\n", p.Age) +
		fmt.Sprintf("⚧ *Sexo:* %s\n", gender) +
		fmt.Sprintf("⚖️ *Peso:* %.1f kg\n", p.Weight) +
		fmt.Sprintf("📏 *Altura:* %.0f cm\n", p.Height) +
		fmt.Sprintf("🏃 *Atividade:* %s\n", nutrition.ActivityLabel(p.ActivityLevel)) +
		fmt.Sprintf("🎯 *Objetivo:* %s\n", p.Objective) +
		fmt.Sprintf("🥗 *Restrições:* %s\n", p.Restrictions) +
		"━━━━━━━━━━━━━━━━\n" +
		fmt.Sprintf("📅 *Início:* %s\n", b.date(p.PlanStartDate)) +
		fmt.Sprintf("⏳ *Término:* %s", b.date(p.PlanEndDate))
}

func (b *Bot) showProfile(ctx context.Context, chatID, userID int64) {
	p, ok := b.requirePatient(ctx, chatID, userID)
	if !ok {
		return
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("✏️ Alterar cadastro", "menu:profile_edit")),
		tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar", "menu:main")),
	)
	b.replyWithMarkup(chatID, "📋 *Seu Perfil Completo*\n\n"+b.formatProfile(*p), keyboard)
}

// planStatusText reports how long the plan still runs
func (b *Bot) planStatusText(p models.Patient) string {
	now := b.now()
	if !p.HasActivePlan(now) {
		return "❌ *Plano Inativo*\n\nSeu plano não está ativo.\n\n💰 Use *Renovar Plano* para continuar seu acompanhamento."
	}
	days := p.DaysRemaining(now)
	end := b.date(p.PlanEndDate)
	if days <= 1 {
		return fmt.Sprintf("⚠️ *Plano Vencendo*\n\nSeu plano encerra em breve (%s).\n\n📞 Renove para não perder seu acompanhamento!", end)
	}
	return fmt.Sprintf("✅ *Plano Ativo*\n\nSeu plano encerra em *%d dia(s)*.\n📅 Data: %s\n\n📞 Renove antes do vencimento.", days, end)
}

func (b *Bot) showPlanStatus(ctx context.Context, chatID, userID int64) {
	p, ok := b.requirePatient(ctx, chatID, userID)
	if !ok {
		return
	}
	b.replyWithMarkup(chatID, "📆 *Status do Plano*\n\n"+b.planStatusText(*p), mainMenu(p.HasActivePlan(b.now())))
}

func (b *Bot) showAnalysis(ctx context.Context, chatID, userID int64) {
	p, ok := b.requirePatient(ctx, chatID, userID)
	if !ok {
		return
	}
	b.replyWithMarkup(chatID, nutrition.Analyze(*p).Format(*p), backToMenu())
}

func (b *Bot) startWeight(ctx context.Context, chatID, userID int64) {
	p, ok := b.requireActivePlan(ctx, chatID, userID)
	if !ok {
		return
	}
	b.startFlow(ctx, chatID, userID, flows.FlowWeight, flows.WeightPrompt(p.Weight))
}

func (b *Bot) showWeightHistory(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requirePatient(ctx, chatID, userID); !ok {
		return
	}
	entries, err := b.db.ListWeightEntries(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to list weights", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.replyWithMarkup(chatID, nutrition.FormatWeightHistory(entries, b.loc), backToMenu())
}

func (b *Bot) startQuestionnaire(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requirePatient(ctx, chatID, userID); !ok {
		return
	}
	elig, err := flows.CheckQuestionnaireEligibility(ctx, b.db, userID, b.now().In(b.loc))
	if err != nil {
		b.logger.Error("Failed to check questionnaire eligibility", zap.Int64("user_id", userID), zap.Error(err))
	}
	if !elig.Allowed {
		b.replyWithMarkup(chatID, elig.Message, b.menuFor(ctx, userID))
		return
	}
	b.startFlow(ctx, chatID, userID, flows.FlowQuestionnaire, flows.QuestionnaireIntro)
}

func (b *Bot) showRecords(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requirePatient(ctx, chatID, userID); !ok {
		return
	}
	records, err := b.db.ListFoodRecords(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to list food records", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	if len(records) == 0 {
		b.replyWithMarkup(chatID, "📋 *Meus Questionários*\n\n❌ Você ainda não preencheu nenhum questionário.", backToMenu())
		return
	}
	b.replyWithMarkup(chatID, "📋 *Seus Questionários Enviados*\n\nToque em um questionário para ver as respostas.", b.recordsKeyboard(records))
}

func (b *Bot) recordsKeyboard(records []models.FoodRecord) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range records {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(fmt.Sprintf("📝 %s", r.CreatedAt.In(b.loc).Format("02/01/2006 15:04")), fmt.Sprintf("record:%d", r.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar", "menu:main")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// formatRecord renders a questionnaire with its question labels
func (b *Bot) formatRecord(r models.FoodRecord, patientName string) string {
	var sb strings.Builder
	sb.WriteString("📋 *Questionário Alimentar*\n\n")
	if patientName != "" {
		sb.WriteString(fmt.Sprintf("👤 *Paciente:* %s\n", patientName))
	}
	sb.WriteString(fmt.Sprintf("📅 *Data:* %s\n\n", r.CreatedAt.In(b.loc).Format("02/01/2006 15:04")))
	for _, a := range r.Answers {
		label := flows.QuestionnaireLabels[a.Key]
		if label == "" {
			label = a.Key
		}
		sb.WriteString(fmt.Sprintf("*%s:*\n%s\n\n", label, a.Value))
	}
	return sb.String()
}

func (b *Bot) showFiles(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requirePatient(ctx, chatID, userID); !ok {
		return
	}
	files, err := b.db.ListPatientFiles(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to list files", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.replyWithMarkup(chatID, b.formatFiles(files), backToMenu())
}

func (b *Bot) formatFiles(files []models.PatientFile) string {
	if len(files) == 0 {
		return "📂 *Meus Arquivos*\n\n❌ Nenhum arquivo enviado ainda.\n\n💡 Use \"📄 Enviar Arquivo\" para compartilhar documentos!"
	}
	var sb strings.Builder
	sb.WriteString("📂 *Arquivos Enviados*\n\n")
	for i, f := range files {
		icon := "📄"
		if f.FileType == models.MessagePhoto {
			icon = "🖼️"
		}
		sb.WriteString(fmt.Sprintf("%d. %s %s\n   📅 %s\n\n", i+1, icon, f.FileName, b.date(f.CreatedAt)))
	}
	return sb.String()
}

func (b *Bot) startWorkout(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireActivePlan(ctx, chatID, userID); !ok {
		return
	}
	b.startFlow(ctx, chatID, userID, flows.FlowWorkout, "")
}

func (b *Bot) showRecipes(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireActivePlan(ctx, chatID, userID); !ok {
		return
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("🍳 Com o que tenho em casa", "recipe:pantry")),
		tgbotapi.NewInlineKeyboardRow(button("🎯 Pela minha meta calórica", "recipe:kcal")),
		tgbotapi.NewInlineKeyboardRow(button("🔙 Voltar", "menu:main")),
	)
	b.replyWithMarkup(chatID, "🍽️ *Receitas*\n\nComo você quer gerar sua receita?", keyboard)
}
