package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/flows"
	"nutribot/internal/models"
	"nutribot/internal/nutrition"
	"nutribot/internal/scheduler"
)

const (
	patientsPerPage = 10
	analyticsWindow = 30 * 24 * time.Hour
)

func (b *Bot) showAdmin(chatID, userID int64) {
	if !b.IsAdmin(userID) {
		b.reply(chatID, msgUnauthorized)
		return
	}
	b.replyWithMarkup(chatID, msgWelcomeAdmin, adminMenu())
}

// handleAdminCallback runs admin actions; the caller has checked the role
func (b *Bot) handleAdminCallback(ctx context.Context, chatID, adminID int64, kind, arg string) {
	if kind == "admin" {
		b.resetUser(ctx, adminID)
		switch arg {
		case "stats":
			b.showStats(ctx, chatID)
		case "menu":
			b.replyWithMarkup(chatID, msgWelcomeAdmin, adminMenu())
		case "patients":
			b.showPatients(ctx, chatID, 0)
		case "expiring":
			b.showExpiring(ctx, chatID)
		case "expired":
			b.showExpired(ctx, chatID)
		case "broadcast":
			b.startFlow(ctx, chatID, adminID, flows.FlowBroadcast, "")
		case "analytics":
			b.showAnalytics(ctx, chatID)
		}
		return
	}

	if kind == "admin_page" {
		page, err := strconv.Atoi(arg)
		if err != nil {
			return
		}
		b.showPatients(ctx, chatID, page)
		return
	}

	patientID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	switch kind {
	case "admin_patient":
		b.showPatientDetails(ctx, chatID, patientID)
	case "admin_reply":
		b.startAdminReply(ctx, chatID, adminID, patientID)
	case "admin_history":
		b.showChatHistory(ctx, chatID, patientID)
	case "admin_end":
		b.endChat(ctx, chatID, patientID)
	}
}

func (b *Bot) showStats(ctx context.Context, chatID int64) {
	stats, err := b.db.GetDashboardStats(ctx, b.now())
	if err != nil {
		b.logger.Error("Failed to get dashboard stats", zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.replyWithMarkup(chatID, formatStats(*stats), adminMenu())
}

func formatStats(s models.DashboardStats) string {
	return "📊 *Estatísticas*\n\n" +
		fmt.Sprintf("👥 Pacientes: *%d*\n", s.TotalPatients) +
		fmt.Sprintf("✅ Planos ativos: *%d*\n", s.ActivePlans) +
		fmt.Sprintf("⚠️ Vencendo em 7 dias: *%d*\n", s.ExpiringSoon) +
		fmt.Sprintf("❌ Vencidos/inativos: *%d*\n", s.Expired) +
		fmt.Sprintf("📝 Questionários: *%d*\n", s.FoodRecords) +
		fmt.Sprintf("📂 Arquivos: *%d*", s.TotalFiles)
}

// showPatients lists one page of patients, page counted from zero
func (b *Bot) showPatients(ctx context.Context, chatID int64, page int) {
	patients, err := b.db.ListPatients(ctx)
	if err != nil {
		b.logger.Error("Failed to list patients", zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	if len(patients) == 0 {
		b.replyWithMarkup(chatID, "👥 Nenhum paciente cadastrado ainda.", adminMenu())
		return
	}

	pages := (len(patients) + patientsPerPage - 1) / patientsPerPage
	page = max(0, min(page, pages-1))
	from := page * patientsPerPage
	to := min(from+patientsPerPage, len(patients))

	now := b.now()
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range patients[from:to] {
		icon := "🔴"
		if p.HasActivePlan(now) {
			icon = "🟢"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(fmt.Sprintf("%s %s", icon, p.Name), fmt.Sprintf("admin_patient:%d", p.TelegramID)),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, button("⬅️ Anterior", fmt.Sprintf("admin_page:%d", page-1)))
	}
	if page < pages-1 {
		nav = append(nav, button("Próxima ➡️", fmt.Sprintf("admin_page:%d", page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("🔙 Painel", "admin:menu")))

	text := fmt.Sprintf("👥 *Pacientes* (%d)\n\nToque em um paciente para ver detalhes.", len(patients))
	if pages > 1 {
		text += fmt.Sprintf("\n\n_Página %d de %d_", page+1, pages)
	}
	b.replyWithMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) showPatientDetails(ctx context.Context, chatID, patientID int64) {
	p, err := b.loadPatient(ctx, patientID)
	if err != nil || p == nil {
		b.reply(chatID, "❌ Paciente não encontrado.")
		return
	}

	var sb strings.Builder
	sb.WriteString("👤 *Paciente*\n\n")
	sb.WriteString(b.formatProfile(*p))
	sb.WriteString("\n\n")
	sb.WriteString(b.planStatusText(*p))

	if entries, err := b.db.ListWeightEntries(ctx, patientID); err == nil {
		if st, ok := nutrition.SummarizeWeights(entries); ok {
			sb.WriteString(fmt.Sprintf("\n\n⚖️ *Peso:* %.1f → %.1f kg (%+.1f kg em %d registro(s))",
				st.Start, st.Latest, st.Change, st.Entries))
		}
	}
	if n, err := b.db.CountUnreadMessages(ctx, patientID); err == nil && n > 0 {
		sb.WriteString(fmt.Sprintf("\n\n💬 %d mensagem(ns) sem resposta", n))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	rows = append(rows, chatKeyboard(patientID).InlineKeyboard...)
	if records, err := b.db.ListFoodRecords(ctx, patientID); err == nil && len(records) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("📝 Último questionário", fmt.Sprintf("record:%d", records[0].ID)),
		))
	}
	b.replyWithMarkup(chatID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) showExpiring(ctx context.Context, chatID int64) {
	now := b.now()
	patients, err := b.db.ListPatientsWithPlanEndingBetween(ctx, now, now.Add(scheduler.ExpiringWindow))
	if err != nil {
		b.logger.Error("Failed to list expiring plans", zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.replyWithMarkup(chatID, scheduler.FormatExpiringPlans(patients, now, b.loc), adminMenu())
}

func (b *Bot) showExpired(ctx context.Context, chatID int64) {
	patients, err := b.db.ListPatients(ctx)
	if err != nil {
		b.logger.Error("Failed to list patients", zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}

	now := b.now()
	var sb strings.Builder
	count := 0
	for _, p := range patients {
		if p.HasActivePlan(now) {
			continue
		}
		count++
		ended := "sem plano"
		if !p.PlanEndDate.IsZero() {
			ended = "venceu em " + b.date(p.PlanEndDate)
		}
		sb.WriteString(fmt.Sprintf("• %s (%s)\n", p.Name, ended))
	}
	if count == 0 {
		b.replyWithMarkup(chatID, "✅ Nenhum paciente com plano vencido.", adminMenu())
		return
	}
	b.replyWithMarkup(chatID, fmt.Sprintf("❌ *Planos vencidos* (%d)\n\n%s", count, sb.String()), adminMenu())
}

func (b *Bot) showAnalytics(ctx context.Context, chatID int64) {
	counts, err := b.events.CountByType(ctx, b.now().Add(-analyticsWindow))
	if err != nil {
		b.logger.Error("Failed to count events", zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	b.replyWithMarkup(chatID, formatAnalytics(counts), adminMenu())
}

var eventLabels = map[string]string{
	models.EventRegistrationCompleted:  "Cadastros concluídos",
	models.EventQuestionnaireSubmitted: "Questionários enviados",
	models.EventWeightLogged:           "Pesos registrados",
	models.EventPaymentApproved:        "Pagamentos aprovados",
	models.EventReminderSent:           "Lembretes enviados",
	models.EventDiaryEntry:             "Refeições no diário",
	models.EventCaloriesLogged:         "Registros de calorias",
}

func formatAnalytics(counts []models.EventCount) string {
	if len(counts) == 0 {
		return "📈 *Eventos (30 dias)*\n\nNenhum evento registrado no período."
	}
	var sb strings.Builder
	sb.WriteString("📈 *Eventos (30 dias)*\n\n")
	for _, c := range counts {
		label := eventLabels[c.Type]
		if label == "" {
			label = c.Type
		}
		sb.WriteString(fmt.Sprintf("• %s: *%d*\n", label, c.Count))
	}
	return sb.String()
}
