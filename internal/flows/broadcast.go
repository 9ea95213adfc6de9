package flows

import (
	"nutribot/internal/conversation"
)

// Broadcast answer keys
const (
	KeyBroadcastTarget  = "target"
	KeyBroadcastMessage = "message"
)

// Broadcast target groups
const (
	TargetAll      = "todos"
	TargetActive   = "ativos"
	TargetExpiring = "vencendo"
)

// BroadcastTargets are the recipient groups an admin can pick
var BroadcastTargets = []Option{
	{Value: TargetAll, Label: "👥 Todos"},
	{Value: TargetActive, Label: "✅ Ativos"},
	{Value: TargetExpiring, Label: "⚠️ Vencendo"},
}

var broadcastAliases = map[string]string{
	"t": TargetAll, "all": TargetAll,
	"a": TargetActive, "active": TargetActive,
	"v": TargetExpiring, "expiring": TargetExpiring,
}

// NewBroadcast builds the admin broadcast flow: target group, then message
func NewBroadcast(onComplete conversation.CompletionHandler) *conversation.Flow {
	steps := []conversation.Step{
		{
			Key:      KeyBroadcastTarget,
			Prompt:   "📢 *Enviar Mensagem em Massa*\n\nEscolha o grupo de destinatários:",
			Validate: Choice(BroadcastTargets, broadcastAliases, "Escolha um grupo: *T* (Todos), *A* (Ativos) ou *V* (Vencendo)."),
		},
		{
			Key: KeyBroadcastMessage,
			Prompt: "✏️ *Digite a mensagem*\n\nEnvie a mensagem que deseja transmitir para os pacientes.\n\n" +
				"💡 _A formatação Markdown é mantida._",
			Validate: MinLength(1, "❌ A mensagem não pode ficar vazia."),
		},
	}
	return conversation.NewFlow(FlowBroadcast, steps, onComplete)
}
