package usecases

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/internal/entities"
	"zapdesk/internal/interfaces"
)

// ---- In-memory fakes ----

type memTriggers struct {
	nodes []entities.TriggerNode
}

func (m *memTriggers) FindDefault(_ context.Context, instance string) (*entities.TriggerNode, error) {
	for i := range m.nodes {
		n := &m.nodes[i]
		if n.Instance == instance && n.Keyword == "default" && n.ParentID == nil {
			return n, nil
		}
	}
	return nil, nil
}

func (m *memTriggers) FindByKeyword(_ context.Context, instance, keyword string, parentID *int64) (*entities.TriggerNode, error) {
	for i := range m.nodes {
		n := &m.nodes[i]
		if n.Instance != instance || !strings.EqualFold(n.Keyword, keyword) {
			continue
		}
		if sameParent(n.ParentID, parentID) {
			return n, nil
		}
	}
	return nil, nil
}

func (m *memTriggers) FindByID(_ context.Context, id int64) (*entities.TriggerNode, error) {
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			return &m.nodes[i], nil
		}
	}
	return nil, nil
}

func (m *memTriggers) ListChildren(_ context.Context, instance string, parentID *int64) ([]entities.TriggerNode, error) {
	var out []entities.TriggerNode
	for _, n := range m.nodes {
		if n.Instance != instance {
			continue
		}
		if parentID == nil {
			if n.ParentID == nil && n.Keyword != "default" {
				out = append(out, n)
			}
		} else if n.ParentID != nil && *n.ParentID == *parentID {
			out = append(out, n)
		}
	}
	return out, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type memHandoffs struct {
	open map[string]*entities.HandoffRecord
}

func newMemHandoffs() *memHandoffs {
	return &memHandoffs{open: make(map[string]*entities.HandoffRecord)}
}

func (m *memHandoffs) Get(_ context.Context, instance, conversationID string) (*entities.HandoffRecord, error) {
	return m.open[instance+"|"+conversationID], nil
}

func (m *memHandoffs) Open(_ context.Context, instance, conversationID, contactName string) error {
	key := instance + "|" + conversationID
	if _, exists := m.open[key]; exists {
		return nil
	}
	m.open[key] = &entities.HandoffRecord{
		Instance:       instance,
		ConversationID: conversationID,
		ContactName:    contactName,
	}
	return nil
}

func (m *memHandoffs) Close(_ context.Context, instance, conversationID string) error {
	delete(m.open, instance+"|"+conversationID)
	return nil
}

type memSessions struct {
	mu      sync.Mutex
	current map[string]int64
}

func newMemSessions() *memSessions {
	return &memSessions{current: make(map[string]int64)}
}

func (m *memSessions) Get(instance, conversationID string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.current[instance+"|"+conversationID]
	return id, ok
}

func (m *memSessions) Set(instance, conversationID string, nodeID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[instance+"|"+conversationID] = nodeID
}

func (m *memSessions) Clear(instance, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.current, instance+"|"+conversationID)
}

func (m *memSessions) Lock(instance, conversationID string) func() {
	return func() {}
}

type sentMessage struct {
	conversation string
	text         string
}

type memGateway struct {
	texts []sentMessage
	media []interfaces.MediaPayload
}

func (m *memGateway) SendText(_ context.Context, _, number, text string) error {
	m.texts = append(m.texts, sentMessage{conversation: number, text: text})
	return nil
}

func (m *memGateway) SendMedia(_ context.Context, _, _ string, media interfaces.MediaPayload) error {
	m.media = append(m.media, media)
	return nil
}

func (m *memGateway) FetchMediaBase64(_ context.Context, _ string, _ interfaces.MediaRef) (string, error) {
	return "", errors.New("not implemented")
}

func (m *memGateway) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.texts, "expected at least one outbound message")
	return m.texts[len(m.texts)-1].text
}

type memNotifier struct {
	alerts []string
}

func (m *memNotifier) NotifyHandoff(instance, conversationID, contactName, lastMessage string) {
	m.alerts = append(m.alerts, conversationID)
}

type fakeFlags struct {
	enabled bool
	err     error
}

func (f *fakeFlags) BotEnabled(_ context.Context, _ string) (bool, error) {
	return f.enabled, f.err
}

type fakeMedia struct {
	payload interfaces.MediaPayload
	loadErr error
	loaded  []string
}

func (f *fakeMedia) StoreInbound(_ context.Context, _ *entities.InboundEvent) (string, error) {
	return "http://localhost/arquivos/stored.jpg", nil
}

func (f *fakeMedia) LoadAttachment(mediaRef, caption, mediaKind string) (interfaces.MediaPayload, error) {
	f.loaded = append(f.loaded, mediaRef)
	return f.payload, f.loadErr
}

// ---- Fixture ----

func ptr(id int64) *int64 { return &id }

// shop1 catalog: a welcome node, two root options (one submenu, one plain
// leaf), a leaf inside the submenu and a root leaf with an attachment.
func testCatalog() *memTriggers {
	return &memTriggers{nodes: []entities.TriggerNode{
		{ID: 1, Instance: "shop1", Keyword: "default", ResponseText: "Olá! Bem-vindo à Loja."},
		{ID: 2, Instance: "shop1", Keyword: "1", MenuLabel: "Planos", ResponseText: "Conheça nossos planos:"},
		{ID: 3, Instance: "shop1", Keyword: "2", MenuLabel: "Suporte", ResponseText: "Fale com nosso time."},
		{ID: 4, Instance: "shop1", Keyword: "1", MenuLabel: "Mensal", ResponseText: "Plano mensal: R$49.", ParentID: ptr(2)},
		{ID: 5, Instance: "shop1", Keyword: "3", MenuLabel: "Tabela", ResponseText: "Segue a tabela.", MediaRef: "tabela.pdf", MediaKind: entities.MediaDocument},
	}}
}

type routerFixture struct {
	router   *Router
	gateway  *memGateway
	handoffs *memHandoffs
	sessions *memSessions
	notifier *memNotifier
}

func newRouterFixture() *routerFixture {
	gateway := &memGateway{}
	handoffs := newMemHandoffs()
	sessions := newMemSessions()
	notifier := &memNotifier{}

	router := NewRouter(testCatalog(), handoffs, sessions, gateway)
	router.Notifier = notifier

	return &routerFixture{
		router:   router,
		gateway:  gateway,
		handoffs: handoffs,
		sessions: sessions,
		notifier: notifier,
	}
}

func textEvent(text string) *entities.InboundEvent {
	return &entities.InboundEvent{
		Instance:       "shop1",
		ConversationID: "5511999999999@s.whatsapp.net",
		SenderName:     "Maria",
		Kind:           entities.KindText,
		Text:           text,
	}
}

// ---- Tests ----

func TestHandleIgnoresOwnMessages(t *testing.T) {
	f := newRouterFixture()
	ev := textEvent("oi")
	ev.FromSelf = true

	outcome := f.router.Handle(context.Background(), ev)

	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, f.gateway.texts)
}

func TestHandleBotDisabled(t *testing.T) {
	f := newRouterFixture()
	f.router.Flags = &fakeFlags{enabled: false}

	outcome := f.router.Handle(context.Background(), textEvent("oi"))

	assert.Equal(t, OutcomeDisabled, outcome)
	assert.Empty(t, f.gateway.texts)
}

func TestHandleFlagErrorFailsOpen(t *testing.T) {
	f := newRouterFixture()
	f.router.Flags = &fakeFlags{err: errors.New("db down")}

	outcome := f.router.Handle(context.Background(), textEvent("oi"))

	assert.Equal(t, OutcomeHome, outcome)
	assert.NotEmpty(t, f.gateway.texts)
}

func TestHandleNoText(t *testing.T) {
	f := newRouterFixture()
	ev := textEvent("")

	assert.Equal(t, OutcomeNoText, f.router.Handle(context.Background(), ev))
	assert.Empty(t, f.gateway.texts)
}

func TestResetSendsRootMenu(t *testing.T) {
	f := newRouterFixture()
	f.sessions.Set("shop1", "5511999999999@s.whatsapp.net", 2)

	outcome := f.router.Handle(context.Background(), textEvent("Oi"))

	assert.Equal(t, OutcomeHome, outcome)
	reply := f.gateway.lastText(t)
	assert.Contains(t, reply, "Olá! Bem-vindo à Loja.")
	assert.Contains(t, reply, "👇 *Opções:*")
	assert.Contains(t, reply, "*1* - Planos")
	assert.Contains(t, reply, "*2* - Suporte")
	assert.NotContains(t, reply, "default")

	_, ok := f.sessions.Get("shop1", "5511999999999@s.whatsapp.net")
	assert.False(t, ok, "reset must send the session back to root")
}

func TestSubmenuNavigation(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	// Option 1 has children: the session moves into the submenu.
	outcome := f.router.Handle(ctx, textEvent("1"))
	require.Equal(t, OutcomeProcessed, outcome)
	reply := f.gateway.lastText(t)
	assert.Contains(t, reply, "Conheça nossos planos:")
	assert.Contains(t, reply, "*1* - Mensal")

	id, ok := f.sessions.Get("shop1", "5511999999999@s.whatsapp.net")
	require.True(t, ok)
	assert.Equal(t, int64(2), id)

	// Same keyword now resolves inside the submenu, to a leaf.
	outcome = f.router.Handle(ctx, textEvent("1"))
	require.Equal(t, OutcomeProcessed, outcome)
	assert.Contains(t, f.gateway.lastText(t), "Plano mensal: R$49.")

	_, ok = f.sessions.Get("shop1", "5511999999999@s.whatsapp.net")
	assert.False(t, ok, "a leaf answer is terminal")
}

func TestInvalidOptionInsideSubmenuKeepsSession(t *testing.T) {
	f := newRouterFixture()
	f.sessions.Set("shop1", "5511999999999@s.whatsapp.net", 2)

	outcome := f.router.Handle(context.Background(), textEvent("xyz"))

	assert.Equal(t, OutcomeInvalidOption, outcome)
	reply := f.gateway.lastText(t)
	assert.Contains(t, reply, "❌ Opção inválida.")
	assert.Contains(t, reply, "*1* - Mensal")

	id, ok := f.sessions.Get("shop1", "5511999999999@s.whatsapp.net")
	require.True(t, ok, "invalid choice must not punt the user to root")
	assert.Equal(t, int64(2), id)
}

func TestUnknownAtRootFallsBackToWelcome(t *testing.T) {
	f := newRouterFixture()

	outcome := f.router.Handle(context.Background(), textEvent("xyz"))

	assert.Equal(t, OutcomeHome, outcome)
	assert.Contains(t, f.gateway.lastText(t), "Olá! Bem-vindo à Loja.")
}

func TestBackFromSubmenuReturnsToRoot(t *testing.T) {
	f := newRouterFixture()
	f.sessions.Set("shop1", "5511999999999@s.whatsapp.net", 2)

	outcome := f.router.Handle(context.Background(), textEvent("voltar"))

	assert.Equal(t, OutcomeBack, outcome)
	assert.Contains(t, f.gateway.lastText(t), "Olá! Bem-vindo à Loja.")
	_, ok := f.sessions.Get("shop1", "5511999999999@s.whatsapp.net")
	assert.False(t, ok)
}

func TestBackWithoutSessionShowsRoot(t *testing.T) {
	f := newRouterFixture()

	outcome := f.router.Handle(context.Background(), textEvent("voltar"))

	assert.Equal(t, OutcomeBack, outcome)
	assert.Contains(t, f.gateway.lastText(t), "Olá! Bem-vindo à Loja.")
}

func TestExitSendsFarewell(t *testing.T) {
	f := newRouterFixture()
	f.sessions.Set("shop1", "5511999999999@s.whatsapp.net", 2)

	outcome := f.router.Handle(context.Background(), textEvent("sair"))

	assert.Equal(t, OutcomeEnd, outcome)
	assert.Contains(t, f.gateway.lastText(t), "👋 Até logo!")
	_, ok := f.sessions.Get("shop1", "5511999999999@s.whatsapp.net")
	assert.False(t, ok)
}

func TestHandoffKeywordOpensHandoff(t *testing.T) {
	f := newRouterFixture()
	f.sessions.Set("shop1", "5511999999999@s.whatsapp.net", 2)

	outcome := f.router.Handle(context.Background(), textEvent("Quero falar com um atendente"))

	assert.Equal(t, OutcomeHandedOff, outcome)
	assert.Contains(t, f.gateway.lastText(t), "🔕 *Robô Pausado.*")

	record, _ := f.handoffs.Get(context.Background(), "shop1", "5511999999999@s.whatsapp.net")
	require.NotNil(t, record)
	assert.Equal(t, "Maria", record.ContactName)

	_, ok := f.sessions.Get("shop1", "5511999999999@s.whatsapp.net")
	assert.False(t, ok)
	assert.Len(t, f.notifier.alerts, 1)
}

func TestHumanModeStaysSilent(t *testing.T) {
	f := newRouterFixture()
	require.NoError(t, f.handoffs.Open(context.Background(), "shop1", "5511999999999@s.whatsapp.net", "Maria"))

	outcome := f.router.Handle(context.Background(), textEvent("1"))

	assert.Equal(t, OutcomeHumanMode, outcome)
	assert.Empty(t, f.gateway.texts)
}

func TestHumanModeWinsOverReset(t *testing.T) {
	f := newRouterFixture()
	require.NoError(t, f.handoffs.Open(context.Background(), "shop1", "5511999999999@s.whatsapp.net", "Maria"))

	outcome := f.router.Handle(context.Background(), textEvent("oi"))

	assert.Equal(t, OutcomeHumanMode, outcome)
	assert.Empty(t, f.gateway.texts)
}

func TestReactivationCommandClosesHandoff(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	require.NoError(t, f.handoffs.Open(ctx, "shop1", "5511999999999@s.whatsapp.net", "Maria"))

	outcome := f.router.Handle(ctx, textEvent("/voltar"))

	assert.Equal(t, OutcomeReactivated, outcome)
	assert.Contains(t, f.gateway.lastText(t), "🤖 Robô reativado!")

	record, _ := f.handoffs.Get(ctx, "shop1", "5511999999999@s.whatsapp.net")
	assert.Nil(t, record, "handoff must be closed")
}

func TestCustomHandoffKeywords(t *testing.T) {
	f := newRouterFixture()
	f.router.HandoffKeywords = []string{"gerente"}
	ctx := context.Background()

	// The default keyword no longer triggers a handoff.
	outcome := f.router.Handle(ctx, textEvent("atendente"))
	assert.Equal(t, OutcomeHome, outcome)

	outcome = f.router.Handle(ctx, textEvent("chama o gerente"))
	assert.Equal(t, OutcomeHandedOff, outcome)
}

func TestMissingDefaultIsMisconfigured(t *testing.T) {
	f := newRouterFixture()
	ev := textEvent("oi")
	ev.Instance = "ghost"
	ev.ConversationID = "5511888888888@s.whatsapp.net"

	outcome := f.router.Handle(context.Background(), ev)

	assert.Equal(t, OutcomeMisconfigured, outcome)
	assert.Contains(t, f.gateway.lastText(t), "Olá! No momento não consigo te responder")
}

func TestLeafWithAttachmentSendsMedia(t *testing.T) {
	f := newRouterFixture()
	media := &fakeMedia{payload: interfaces.MediaPayload{
		Base64:   "JVBERi0=",
		Kind:     entities.MediaDocument,
		MimeType: "application/pdf",
		FileName: "tabela.pdf",
	}}
	f.router.Media = media

	outcome := f.router.Handle(context.Background(), textEvent("3"))

	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Contains(t, f.gateway.lastText(t), "Segue a tabela.")
	require.Len(t, f.gateway.media, 1)
	assert.Equal(t, "tabela.pdf", f.gateway.media[0].FileName)
	assert.Equal(t, []string{"tabela.pdf"}, media.loaded)
}

func TestAttachmentFailureStillDeliversText(t *testing.T) {
	f := newRouterFixture()
	f.router.Media = &fakeMedia{loadErr: errors.New("file missing")}

	outcome := f.router.Handle(context.Background(), textEvent("3"))

	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Contains(t, f.gateway.lastText(t), "Segue a tabela.")
	assert.Empty(t, f.gateway.media)
}
