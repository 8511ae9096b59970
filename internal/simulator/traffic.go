package simulator

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/pkg/logger"
)

var customerMessages = []string{
	"Olá, tudo bem?",
	"Oi, boa tarde!",
	"Preciso de ajuda com meu pedido",
	"Qual o status da minha compra?",
	"O produto chegou com defeito",
	"Gostaria de fazer uma reclamação",
	"Como faço para rastrear meu pedido?",
	"Vocês trabalham com entrega expressa?",
	"Qual o prazo de entrega para minha região?",
	"Posso trocar o produto?",
	"O boleto não está aparecendo",
	"Não consigo finalizar a compra",
	"Vocês tem esse produto em estoque?",
	"Qual a política de devolução?",
	"Meu pedido ainda não chegou",
	"Preciso cancelar minha compra",
	"Como faço para parcelar?",
	"Vocês aceitam PIX?",
	"Tem desconto para pagamento à vista?",
	"Quando vai ter promoção?",
	"Muito obrigado pela ajuda!",
	"Ok, entendi",
	"Perfeito, vou aguardar",
	"Certo, pode me ajudar?",
	"Sim, é isso mesmo",
}

var supportMessages = []string{
	"Olá! Como posso ajudar você hoje?",
	"Boa tarde! Sou do atendimento. Em que posso ser útil?",
	"Claro! Vou verificar isso para você.",
	"Deixe-me consultar seu pedido no sistema.",
	"Um momento, por favor. Estou verificando.",
	"Seu pedido foi localizado. Status: em transporte.",
	"Lamento pelo inconveniente. Vamos resolver isso.",
	"O prazo de entrega é de 3 a 5 dias úteis.",
	"Vou gerar um novo boleto para você.",
	"Sim, o produto está disponível em estoque.",
	"Nossa política permite trocas em até 30 dias.",
	"Cancelamento realizado com sucesso!",
	"Você pode parcelar em até 12x sem juros.",
	"Sim, aceitamos PIX com 5% de desconto.",
	"Por nada! Estamos sempre à disposição.",
	"Algo mais em que posso ajudar?",
	"Vou processar isso imediatamente.",
	"Confirmado! Já está tudo certo.",
}

var contactNames = []string{
	"Ana Souza", "Bruno Lima", "Carla Mendes", "Diego Santos",
	"Elisa Ferreira", "Felipe Costa", "Gabriela Rocha", "Henrique Alves",
}

// TrafficGenerator drives the simulator with synthetic customer activity:
// new conversations, inbound messages, support replies, and closes.
type TrafficGenerator struct {
	store    *Store
	hub      *Hub
	logger   *logger.Logger
	interval time.Duration
	rand     *rand.Rand
}

// NewTrafficGenerator creates a generator ticking at interval.
func NewTrafficGenerator(store *Store, hub *Hub, interval time.Duration, log *logger.Logger) *TrafficGenerator {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &TrafficGenerator{
		store:    store,
		hub:      hub,
		logger:   log,
		interval: interval,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run produces traffic until ctx is canceled.
func (g *TrafficGenerator) Run(ctx context.Context) {
	g.logger.Info("traffic generator started", zap.Duration("interval", g.interval))

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("traffic generator stopped")
			return
		case <-ticker.C:
			g.Step()
		}
	}
}

// Step performs one random traffic action.
func (g *TrafficGenerator) Step() {
	switch n := g.rand.Intn(10); {
	case n < 3:
		g.startConversation()
	case n < 7:
		g.customerMessage()
	case n < 9:
		g.supportReply()
	default:
		g.closeConversation()
	}
}

func (g *TrafficGenerator) startConversation() {
	contact := g.store.CreateContact(&model.ContactRequest{
		Name: contactNames[g.rand.Intn(len(contactNames))],
	})
	conv, err := g.store.CreateConversation(contact.ID, customerMessages[g.rand.Intn(len(customerMessages))])
	if err != nil {
		g.logger.Error("traffic: create conversation failed", zap.Error(err))
		return
	}
	g.hub.Broadcast(newConversationEnvelope(conv))
	if conv.LastMessage != nil {
		g.hub.Broadcast(newMessageEnvelope(conv.LastMessage))
	}
	g.logger.Debug("traffic: conversation started", zap.String("conversation_id", conv.ID))
}

func (g *TrafficGenerator) customerMessage() {
	conv := g.store.RandomOpenConversation(g.rand.Intn)
	if conv == nil {
		g.startConversation()
		return
	}
	msg, _, err := g.store.AddMessage(conv.ID, model.DirectionReceived,
		customerMessages[g.rand.Intn(len(customerMessages))], false, nil)
	if err != nil {
		g.logger.Debug("traffic: customer message skipped", zap.Error(err))
		return
	}
	g.hub.Broadcast(newMessageEnvelope(msg))
}

func (g *TrafficGenerator) supportReply() {
	conv := g.store.RandomOpenConversation(g.rand.Intn)
	if conv == nil {
		return
	}
	msg, _, err := g.store.AddMessage(conv.ID, model.DirectionSent,
		supportMessages[g.rand.Intn(len(supportMessages))], false, nil)
	if err != nil {
		g.logger.Debug("traffic: support reply skipped", zap.Error(err))
		return
	}
	g.hub.Broadcast(newMessageEnvelope(msg))
}

func (g *TrafficGenerator) closeConversation() {
	conv := g.store.RandomOpenConversation(g.rand.Intn)
	if conv == nil {
		return
	}
	closed, err := g.store.CloseConversation(conv.ID)
	if err != nil {
		g.logger.Debug("traffic: close skipped", zap.Error(err))
		return
	}
	g.hub.Broadcast(conversationUpdatedEnvelope(closed))
	g.logger.Debug("traffic: conversation closed", zap.String("conversation_id", closed.ID))
}
