package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"nutribot/internal/ai"
	"nutribot/internal/conversation"
	"nutribot/internal/flows"
	"nutribot/internal/models"
	"nutribot/internal/nutrition"
	"nutribot/internal/scheduler"
)

// TrialDays is the free period granted on first registration
const TrialDays = 30

// startFlow begins a flow, sending intro (if any) and the first prompt
func (b *Bot) startFlow(ctx context.Context, chatID, userID int64, flowName, intro string) {
	engine := b.engines[flowName]
	prompt, err := engine.Start(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to start flow", zap.String("flow", flowName), zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	if intro != "" {
		b.reply(chatID, intro)
	}
	b.replyWithMarkup(chatID, prompt, stepKeyboard(flowName, engine.Flow().Step(0).Key))
}

// routeToFlows submits text to the first flow with an active session.
// It returns false when no flow is active. An expired timed request, or text
// sent where a photo is expected, consumes the message.
func (b *Bot) routeToFlows(ctx context.Context, chatID, userID int64, text string) bool {
	for _, name := range b.flowOrder {
		engine := b.engines[name]
		if b.expireTimed(ctx, chatID, userID, engine) {
			return true
		}
		if _, ok := b.photoStep(ctx, engine, userID); ok {
			b.reply(chatID, flows.DiaryPhotoRequired)
			return true
		}
		res, err := engine.Submit(ctx, userID, text)
		if errors.Is(err, conversation.ErrNoActiveSession) {
			continue
		}
		b.deliverResult(ctx, chatID, userID, engine, res, err)
		return true
	}
	return false
}

// photoStep reports whether userID's session of engine waits for a photo
func (b *Bot) photoStep(ctx context.Context, engine *conversation.Engine, userID int64) (*conversation.Session, bool) {
	s, err := engine.Current(ctx, userID)
	if err != nil || s == nil || s.StepIndex >= engine.Flow().Len() {
		return nil, false
	}
	return s, flows.IsPhotoStep(engine.Flow().Name(), engine.Flow().Step(s.StepIndex).Key)
}

func (b *Bot) deliverResult(ctx context.Context, chatID, userID int64, engine *conversation.Engine, res conversation.Result, err error) {
	if err != nil {
		var cerr *conversation.CompletionError
		if errors.As(err, &cerr) {
			b.replyWithMarkup(chatID, msgGenericError, b.menuFor(ctx, userID))
			return
		}
		b.logger.Error("Failed to process answer",
			zap.String("flow", engine.Flow().Name()),
			zap.Int64("user_id", userID),
			zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}

	if res.Done {
		if res.Reply != "" {
			b.replyWithMarkup(chatID, res.Reply, b.menuFor(ctx, userID))
		}
		return
	}

	var markup any
	if s, err := engine.Current(ctx, userID); err == nil && s != nil && s.StepIndex < engine.Flow().Len() {
		markup = stepKeyboard(engine.Flow().Name(), engine.Flow().Step(s.StepIndex).Key)
	}
	b.replyWithMarkup(chatID, res.Reply, markup)
}

// stepKeyboard returns the buttons offered at a step, or nil
func stepKeyboard(flowName, key string) any {
	var options []flows.Option
	switch flowName {
	case flows.FlowWorkout:
		options = flows.WorkoutOptions(key)
	case flows.FlowDiary:
		options = flows.DiaryOptions(key)
	case flows.FlowBroadcast:
		if key == flows.KeyBroadcastTarget {
			options = flows.BroadcastTargets
		}
	}
	if len(options) == 0 {
		return nil
	}
	return optionsKeyboard(flowName, key, options)
}

// submitOption applies a button press to the flow and step that offered it.
// data is "<flow>:<step key>:<value>".
func (b *Bot) submitOption(ctx context.Context, chatID, userID int64, data string) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) == 3 {
		if engine, ok := b.engines[parts[0]]; ok && b.atStep(ctx, engine, userID, parts[1]) {
			res, err := engine.Submit(ctx, userID, parts[2])
			b.deliverResult(ctx, chatID, userID, engine, res, err)
			return
		}
	}
	b.replyWithMarkup(chatID, msgOptionExpired, b.menuFor(ctx, userID))
}

func (b *Bot) atStep(ctx context.Context, engine *conversation.Engine, userID int64, key string) bool {
	s, err := engine.Current(ctx, userID)
	if err != nil {
		b.logger.Warn("Failed to load session", zap.String("flow", engine.Flow().Name()), zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return s != nil && s.StepIndex < engine.Flow().Len() && engine.Flow().Step(s.StepIndex).Key == key
}

// timedFlows are requests dropped when the answer comes too late
var timedFlows = map[string]struct {
	timeout time.Duration
	expired string
}{
	flows.FlowPantry: {
		timeout: flows.PantryTimeout,
		expired: "⌛ O pedido de receita expirou. Toque em *Receitas* no menu para começar de novo.",
	},
	flows.FlowCalories: {
		timeout: flows.CaloriesTimeout,
		expired: "⏱️ Sessão expirada. Toque em *Registrar Alimentos* no menu novamente.",
	},
}

// expireTimed drops a timed request older than its timeout
func (b *Bot) expireTimed(ctx context.Context, chatID, userID int64, engine *conversation.Engine) bool {
	timed, ok := timedFlows[engine.Flow().Name()]
	if !ok {
		return false
	}
	s, err := engine.Current(ctx, userID)
	if err != nil || s == nil {
		return false
	}
	if b.now().Sub(s.StartedAt) <= timed.timeout {
		return false
	}
	if err := engine.Cancel(ctx, userID); err != nil {
		b.logger.Warn("Failed to expire request", zap.String("flow", engine.Flow().Name()), zap.Int64("user_id", userID), zap.Error(err))
	}
	b.reply(chatID, timed.expired)
	return true
}

// completeRegistration saves the profile. First registrations get a trial
// plan; re-registrations keep the current plan.
func (b *Bot) completeRegistration(ctx context.Context, ownerID int64, answers conversation.Answers) (string, error) {
	now := b.now()
	p := flows.PatientFromAnswers(ownerID, answers)

	existing, err := b.loadPatient(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		p.PlanStatus = models.PlanActive
		p.PlanStartDate = now
		p.PlanEndDate = now.AddDate(0, 0, TrialDays)
	} else {
		p.PlanStatus = existing.PlanStatus
		p.PlanStartDate = existing.PlanStartDate
		p.PlanEndDate = existing.PlanEndDate
	}

	saved, err := b.db.UpsertPatient(ctx, p)
	if err != nil {
		return "", fmt.Errorf("failed to save patient: %w", err)
	}

	if existing == nil || existing.Weight != p.Weight {
		if err := b.db.AddWeightEntry(ctx, ownerID, p.Weight, now); err != nil {
			b.logger.Warn("Failed to store registration weight", zap.Int64("user_id", ownerID), zap.Error(err))
		}
	}
	if saved.HasActivePlan(now) {
		if _, err := scheduler.ScheduleRenewalReminders(ctx, b.db, ownerID, saved.PlanEndDate, b.loc, now); err != nil {
			b.logger.Warn("Failed to schedule renewal reminders", zap.Int64("user_id", ownerID), zap.Error(err))
		}
	}

	b.recordEvent(ctx, models.Event{Type: models.EventRegistrationCompleted, TelegramID: ownerID, Flow: flows.FlowRegistration, Value: p.Weight})

	title := "🆕 *Novo paciente cadastrado!*"
	if existing != nil {
		title = "✏️ *Cadastro atualizado*"
	}
	b.NotifyAdmins(ctx, title+"\n\n"+b.formatProfile(*saved))

	return "✅ *Cadastro concluído com sucesso!*\n\n" +
		fmt.Sprintf("Olá, *%s*! Seu perfil foi salvo.\n\n", saved.FirstName()) +
		"🎯 Agora você já pode acessar todas as funcionalidades do sistema.\n\n" +
		"🔔 _Lembretes automáticos de renovação foram agendados!_", nil
}

// completeQuestionnaire re-checks eligibility, since a record may have been
// stored while the questionnaire was being answered
func (b *Bot) completeQuestionnaire(ctx context.Context, ownerID int64, answers conversation.Answers) (string, error) {
	now := b.now()
	elig, err := flows.CheckQuestionnaireEligibility(ctx, b.db, ownerID, now.In(b.loc))
	if err != nil {
		return "", err
	}
	if !elig.Allowed {
		return elig.Message, nil
	}

	record, err := b.db.CreateFoodRecord(ctx, models.FoodRecord{
		TelegramID: ownerID,
		RecordType: flows.RecordTypeQuestionnaire,
		Answers:    flows.RecordAnswers(answers),
		CreatedAt:  now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save questionnaire: %w", err)
	}

	b.recordEvent(ctx, models.Event{Type: models.EventQuestionnaireSubmitted, TelegramID: ownerID, Flow: flows.FlowQuestionnaire})

	name := fmt.Sprint(ownerID)
	if p, err := b.loadPatient(ctx, ownerID); err == nil && p != nil {
		name = p.Name
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		button("👀 Ver respostas", fmt.Sprintf("record:%d", record.ID)),
	))
	b.notifyAdminsWithMarkup(
		fmt.Sprintf("📝 *Novo Questionário Recebido*\n\n👤 Paciente: %s\n📅 Data: %s", name, record.CreatedAt.In(b.loc).Format("02/01/2006 15:04")),
		keyboard)

	return msgQuestionnaireSuccess, nil
}

func (b *Bot) completeWeight(ctx context.Context, ownerID int64, answers conversation.Answers) (string, error) {
	weight, ok := answers.Float(flows.KeyNewWeight)
	if !ok {
		return "", fmt.Errorf("missing %s answer", flows.KeyNewWeight)
	}
	now := b.now()

	var previous float64
	if p, err := b.loadPatient(ctx, ownerID); err == nil && p != nil {
		previous = p.Weight
	}

	if err := b.db.AddWeightEntry(ctx, ownerID, weight, now); err != nil {
		return "", fmt.Errorf("failed to add weight entry: %w", err)
	}
	if err := b.db.UpdatePatientWeight(ctx, ownerID, weight); err != nil {
		return "", fmt.Errorf("failed to update weight: %w", err)
	}

	b.recordEvent(ctx, models.Event{Type: models.EventWeightLogged, TelegramID: ownerID, Flow: flows.FlowWeight, Value: weight})

	text := fmt.Sprintf("✅ *Peso registrado com sucesso!*\n\n⚖️ *%.1f kg* foi salvo no seu histórico.", weight)
	if previous > 0 {
		diff := weight - previous
		text += fmt.Sprintf("\n\n%s Variação: %+.1f kg desde o último registro.", nutrition.TrendEmoji(diff), diff)
	}
	return text + "\n\n📊 Use o menu para ver sua evolução!", nil
}

func (b *Bot) completeReminder(ctx context.Context, ownerID int64, answers conversation.Answers) (string, error) {
	at, err := flows.ReminderTime(answers)
	if err != nil {
		return "", err
	}
	message := answers.String(flows.KeyReminderMessage)
	if _, err := b.db.CreateReminder(ctx, models.Reminder{
		TelegramID:   ownerID,
		Type:         models.ReminderCustom,
		Message:      message,
		ScheduledFor: at,
	}); err != nil {
		return "", fmt.Errorf("failed to create reminder: %w", err)
	}

	local := at.In(b.loc)
	return fmt.Sprintf("✅ *Lembrete criado com sucesso!*\n\n🔔 %s\n📅 %s às %s",
		message, local.Format("02/01/2006"), local.Format("15:04")), nil
}

// broadcastRecipients resolves a broadcast target group
func (b *Bot) broadcastRecipients(ctx context.Context, target string) ([]models.Patient, error) {
	now := b.now()
	switch target {
	case flows.TargetExpiring:
		return b.db.ListPatientsWithPlanEndingBetween(ctx, now, now.Add(scheduler.ExpiringWindow))
	case flows.TargetActive:
		all, err := b.db.ListPatients(ctx)
		if err != nil {
			return nil, err
		}
		var active []models.Patient
		for _, p := range all {
			if p.HasActivePlan(now) {
				active = append(active, p)
			}
		}
		return active, nil
	default:
		return b.db.ListPatients(ctx)
	}
}

func (b *Bot) completeBroadcast(ctx context.Context, ownerID int64, answers conversation.Answers) (string, error) {
	target := answers.String(flows.KeyBroadcastTarget)
	recipients, err := b.broadcastRecipients(ctx, target)
	if err != nil {
		return "", fmt.Errorf("failed to list broadcast recipients: %w", err)
	}
	if len(recipients) == 0 {
		return "📭 Nenhum paciente encontrado nesse grupo.", nil
	}

	text := "📢 *Mensagem da Nutricionista*\n\n" + answers.String(flows.KeyBroadcastMessage)
	sent, failed := 0, 0
	for _, p := range recipients {
		if err := b.sendMarkdown(p.TelegramID, text, nil); err != nil {
			failed++
			continue
		}
		sent++
	}

	b.logger.Info("Broadcast sent",
		zap.Int64("admin_id", ownerID),
		zap.String("target", target),
		zap.Int("sent", sent),
		zap.Int("failed", failed))

	return fmt.Sprintf("✅ *Mensagem enviada!*\n\n👥 Grupo: %s\n📤 Enviadas: %d\n❌ Falhas: %d",
		flows.LabelOf(flows.BroadcastTargets, target), sent, failed), nil
}

func (b *Bot) completeWorkout(ctx context.Context, ownerID int64, answers conversation.Answers) (string, error) {
	exercises, _ := answers.Int(flows.KeyWorkoutExercises)
	req := ai.WorkoutRequest{
		Level:     flows.LabelOf(flows.WorkoutLevels, answers.String(flows.KeyWorkoutLevel)),
		Group:     flows.LabelOf(flows.WorkoutGroups, answers.String(flows.KeyWorkoutGroup)),
		Type:      flows.LabelOf(flows.WorkoutTypes, answers.String(flows.KeyWorkoutType)),
		Exercises: exercises,
	}

	b.reply(ownerID, "⏳ Gerando seu treino, aguarde...")
	text, err := ai.Workout(ctx, b.ai, req)
	if err != nil {
		return b.aiFailure("workout", ownerID, err), nil
	}
	return "🏋️ *Seu treino personalizado*\n\n" + text, nil
}

func (b *Bot) completePantry(ctx context.Context, ownerID int64, answers conversation.Answers) (string, error) {
	target := 0
	if p, err := b.loadPatient(ctx, ownerID); err == nil && p != nil {
		target = nutrition.Analyze(*p).MealTarget()
	}

	b.reply(ownerID, "⏳ Gerando sua receita, aguarde...")
	text, err := ai.PantryRecipe(ctx, b.ai, answers.String(flows.KeyIngredients), target)
	if err != nil {
		return b.aiFailure("pantry recipe", ownerID, err), nil
	}
	return text, nil
}

// calorieRecipe generates a recipe for the kcal still missing from today's target
func (b *Bot) calorieRecipe(ctx context.Context, chatID, userID int64) {
	p, ok := b.requireActivePlan(ctx, chatID, userID)
	if !ok {
		return
	}
	target, consumed, err := b.dailyCalories(ctx, *p)
	if err != nil {
		b.logger.Error("Failed to sum calories", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, msgGenericError)
		return
	}
	remaining := target - consumed
	if remaining < minRecipeKcal {
		b.replyWithMarkup(chatID, "✅ Você já atingiu sua meta de hoje ou está muito próximo.", backToMenu())
		return
	}

	b.reply(chatID, fmt.Sprintf("⏳ Gerando uma receita de cerca de *%d kcal*...", remaining))
	text, err := ai.RemainingRecipe(ctx, b.ai, remaining)
	if err != nil {
		text = b.aiFailure("calorie recipe", userID, err)
	} else {
		text = fmt.Sprintf("🍽️ *Receita para ~%d kcal restantes*\n\n%s", remaining, text)
	}
	b.replyWithMarkup(chatID, text, backToMenu())
}

func (b *Bot) aiFailure(what string, userID int64, err error) string {
	if errors.Is(err, ai.ErrNotConfigured) {
		return msgAIUnavailable
	}
	b.logger.Error("AI generation failed", zap.String("kind", what), zap.Int64("user_id", userID), zap.Error(err))
	return "❌ Não consegui gerar agora. Tente novamente em instantes."
}

func (b *Bot) startPantry(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireActivePlan(ctx, chatID, userID); !ok {
		return
	}
	b.startFlow(ctx, chatID, userID, flows.FlowPantry, "")
}

