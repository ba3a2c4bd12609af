package usecases

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"zapdesk/internal/entities"
	"zapdesk/internal/interfaces"
)

// RouterOutcome is what one webhook delivery resolved to. It goes straight
// into the HTTP ack body so the gateway log shows what happened.
type RouterOutcome string

const (
	OutcomeIgnored       RouterOutcome = "ignored"
	OutcomeDisabled      RouterOutcome = "bot_disabled"
	OutcomeNoText        RouterOutcome = "no_text"
	OutcomeHumanMode     RouterOutcome = "human_mode"
	OutcomeReactivated   RouterOutcome = "bot_reactivated"
	OutcomeHandedOff     RouterOutcome = "handed_off"
	OutcomeHome          RouterOutcome = "home"
	OutcomeEnd           RouterOutcome = "end"
	OutcomeBack          RouterOutcome = "back"
	OutcomeProcessed     RouterOutcome = "processed"
	OutcomeInvalidOption RouterOutcome = "invalid_option"
	OutcomeMisconfigured RouterOutcome = "misconfigured"
	OutcomeError         RouterOutcome = "error"
)

// Keyword sets of the state machine. Reactivation requires exact commands;
// the handoff check is substring-based on purpose: a false positive only
// costs an unnecessary handoff, never a silent drop.
var (
	reactivationKeywords = []string{"/encerrar", "/voltar", "/bot"}
	resetKeywords        = []string{"inicio", "início", "menu", "home", "oi", "ola", "olá"}
	exitKeywords         = []string{"sair", "encerrar", "tchau"}
	backKeyword          = "voltar"

	DefaultHandoffKeywords = []string{"atendente", "falar com", "human", "suporte", "pesso"}
)

// RouterTexts are the canned engine notices, overridable per deployment.
type RouterTexts struct {
	Reactivated   string
	Paused        string
	Farewell      string
	InvalidOption string
	Fallback      string
}

func DefaultRouterTexts() RouterTexts {
	return RouterTexts{
		Reactivated:   "🤖 Robô reativado! Estou de volta.",
		Paused:        "🔕 *Robô Pausado.* Um atendente humano foi notificado.\n_(Aguarde ou digite /voltar)_",
		Farewell:      "👋 Até logo!",
		InvalidOption: "❌ Opção inválida.",
		Fallback:      "Olá! No momento não consigo te responder por aqui. Tente novamente mais tarde.",
	}
}

// HistorySink receives every inbound and outbound message for the operator
// chat view. Best-effort: a failed insert never fails the delivery.
type HistorySink interface {
	Insert(ctx context.Context, log *entities.ChatLog) error
}

// ContactSink auto-captures leads on first contact.
type ContactSink interface {
	Ensure(ctx context.Context, instance, conversationID, name string) error
}

// InstanceFlags exposes the per-tenant bot-enabled switch.
type InstanceFlags interface {
	BotEnabled(ctx context.Context, instance string) (bool, error)
}

// MediaResolver materializes inbound attachments and loads stored ones.
type MediaResolver interface {
	StoreInbound(ctx context.Context, ev *entities.InboundEvent) (string, error)
	LoadAttachment(mediaRef, caption, mediaKind string) (interfaces.MediaPayload, error)
}

// Router is the inbound state machine. Per conversation it is in exactly
// one of three states: at root (no session entry), inside a submenu
// (session holds the node id), or human mode (open handoff record, checked
// first). Every branch fails soft: storage or gateway errors produce a
// neutral outcome, never a panic.
type Router struct {
	Triggers interfaces.TriggerStore
	Handoffs interfaces.HandoffStore
	Sessions interfaces.SessionStore
	Gateway  interfaces.Gateway
	Notifier interfaces.OperatorNotifier
	Composer *Composer

	// Optional collaborators; nil disables the concern.
	Media    MediaResolver
	History  HistorySink
	Contacts ContactSink
	Flags    InstanceFlags

	HandoffKeywords []string
	Texts           RouterTexts
}

func NewRouter(triggers interfaces.TriggerStore, handoffs interfaces.HandoffStore, sessions interfaces.SessionStore, gateway interfaces.Gateway) *Router {
	return &Router{
		Triggers:        triggers,
		Handoffs:        handoffs,
		Sessions:        sessions,
		Gateway:         gateway,
		Composer:        &Composer{Triggers: triggers},
		HandoffKeywords: DefaultHandoffKeywords,
		Texts:           DefaultRouterTexts(),
	}
}

// Handle consumes one normalized inbound event and decides reply and state
// transition. Transitions are evaluated in order; the first match wins.
func (r *Router) Handle(ctx context.Context, ev *entities.InboundEvent) RouterOutcome {
	if ev.FromSelf {
		return OutcomeIgnored
	}

	// Tenant kill switch, before any state machine evaluation. A flag
	// read failure fails open: better an unwanted reply than a dead bot.
	if r.Flags != nil {
		enabled, err := r.Flags.BotEnabled(ctx, ev.Instance)
		if err != nil {
			r.logWarn(ev, "bot-enabled check failed: %v", err)
		} else if !enabled {
			return OutcomeDisabled
		}
	}

	if ev.Text == "" {
		return OutcomeNoText
	}

	r.persistInbound(ctx, ev)

	// Serialize deliveries for the same conversation so interleaved
	// messages cannot race on the session transition.
	unlock := r.Sessions.Lock(ev.Instance, ev.ConversationID)
	defer unlock()

	normalized := strings.ToLower(strings.TrimSpace(ev.Text))

	// Human mode wins over everything except the reactivation commands.
	record, err := r.Handoffs.Get(ctx, ev.Instance, ev.ConversationID)
	if err != nil {
		r.logWarn(ev, "handoff lookup failed: %v", err)
		return OutcomeError
	}
	if record != nil {
		if containsWord(reactivationKeywords, normalized) {
			if err := r.Handoffs.Close(ctx, ev.Instance, ev.ConversationID); err != nil {
				r.logWarn(ev, "handoff close failed: %v", err)
				return OutcomeError
			}
			r.Sessions.Clear(ev.Instance, ev.ConversationID)
			r.sendText(ctx, ev, r.Texts.Reactivated)
			return OutcomeReactivated
		}
		// Delivered to the human operator; the bot stays quiet.
		return OutcomeHumanMode
	}

	// Handoff trigger.
	for _, kw := range r.handoffKeywords() {
		if strings.Contains(normalized, kw) {
			if err := r.Handoffs.Open(ctx, ev.Instance, ev.ConversationID, ev.SenderName); err != nil {
				r.logWarn(ev, "handoff open failed: %v", err)
			}
			r.Sessions.Clear(ev.Instance, ev.ConversationID)
			r.sendText(ctx, ev, r.Texts.Paused)
			if r.Notifier != nil {
				r.Notifier.NotifyHandoff(ev.Instance, ev.ConversationID, ev.SenderName, ev.Text)
			}
			return OutcomeHandedOff
		}
	}

	// Reset to root.
	if containsWord(resetKeywords, normalized) {
		r.Sessions.Clear(ev.Instance, ev.ConversationID)
		return r.sendRoot(ctx, ev, OutcomeHome)
	}

	// Exit.
	if containsWord(exitKeywords, normalized) {
		r.Sessions.Clear(ev.Instance, ev.ConversationID)
		r.sendText(ctx, ev, r.Texts.Farewell)
		return OutcomeEnd
	}

	// One level up.
	if normalized == backKeyword {
		return r.handleBack(ctx, ev)
	}

	return r.handleLookup(ctx, ev, normalized)
}

// handleBack moves the session to the parent node, or back to root when
// already one level below it (or when no session exists at all).
func (r *Router) handleBack(ctx context.Context, ev *entities.InboundEvent) RouterOutcome {
	currentID, ok := r.Sessions.Get(ev.Instance, ev.ConversationID)
	if !ok {
		return r.sendRoot(ctx, ev, OutcomeBack)
	}

	node, err := r.Triggers.FindByID(ctx, currentID)
	if err != nil {
		r.logWarn(ev, "back lookup failed: %v", err)
		return OutcomeError
	}
	if node == nil || node.ParentID == nil {
		r.Sessions.Clear(ev.Instance, ev.ConversationID)
		return r.sendRoot(ctx, ev, OutcomeBack)
	}

	parent, err := r.Triggers.FindByID(ctx, *node.ParentID)
	if err != nil {
		r.logWarn(ev, "parent lookup failed: %v", err)
		return OutcomeError
	}
	if parent == nil {
		r.Sessions.Clear(ev.Instance, ev.ConversationID)
		return r.sendRoot(ctx, ev, OutcomeBack)
	}

	r.Sessions.Set(ev.Instance, ev.ConversationID, parent.ID)
	r.sendComposed(ctx, ev, parent.ResponseText, &parent.ID)
	return OutcomeBack
}

// handleLookup resolves the message against the catalog at the current
// tree level.
func (r *Router) handleLookup(ctx context.Context, ev *entities.InboundEvent, normalized string) RouterOutcome {
	var parentID *int64
	if id, ok := r.Sessions.Get(ev.Instance, ev.ConversationID); ok {
		parentID = &id
	}

	node, err := r.Triggers.FindByKeyword(ctx, ev.Instance, strings.TrimSpace(ev.Text), parentID)
	if err != nil {
		r.logWarn(ev, "catalog lookup failed: %v", err)
		return OutcomeError
	}

	if node == nil {
		if parentID != nil {
			// Unrecognized choice inside a submenu: repeat the options,
			// keep the user where they are instead of punting to root.
			r.sendComposed(ctx, ev, r.Texts.InvalidOption, parentID)
			return OutcomeInvalidOption
		}
		return r.sendRoot(ctx, ev, OutcomeHome)
	}

	children, err := r.Triggers.ListChildren(ctx, ev.Instance, &node.ID)
	if err != nil {
		r.logWarn(ev, "children lookup failed: %v", err)
		return OutcomeError
	}

	if len(children) > 0 {
		// Entering a submenu.
		r.Sessions.Set(ev.Instance, ev.ConversationID, node.ID)
		r.sendComposed(ctx, ev, node.ResponseText, &node.ID)
		return OutcomeProcessed
	}

	// Leaf answer: terminal, session resets.
	r.Sessions.Clear(ev.Instance, ev.ConversationID)
	r.sendText(ctx, ev, node.ResponseText)
	if node.HasMedia() {
		r.sendAttachment(ctx, ev, node)
	}
	return OutcomeProcessed
}

// sendRoot resolves the instance's default node and sends it with the root
// menu listed. A missing default is a tenant misconfiguration, logged
// loudly; the user gets a generic fallback.
func (r *Router) sendRoot(ctx context.Context, ev *entities.InboundEvent, outcome RouterOutcome) RouterOutcome {
	root, err := r.Triggers.FindDefault(ctx, ev.Instance)
	if err != nil {
		r.logWarn(ev, "default lookup failed: %v", err)
		return OutcomeError
	}
	if root == nil {
		logrus.WithFields(logrus.Fields{
			"instance": ev.Instance,
		}).Error("instance has no root 'default' trigger configured")
		r.sendText(ctx, ev, r.Texts.Fallback)
		return OutcomeMisconfigured
	}

	r.sendComposed(ctx, ev, root.ResponseText, nil)
	return outcome
}

func (r *Router) sendComposed(ctx context.Context, ev *entities.InboundEvent, text string, nodeID *int64) {
	composed, err := r.Composer.Compose(ctx, ev.Instance, text, nodeID)
	if err != nil {
		r.logWarn(ev, "compose failed: %v", err)
		composed = text
	}
	r.sendText(ctx, ev, composed)
}

func (r *Router) sendText(ctx context.Context, ev *entities.InboundEvent, text string) {
	if err := r.Gateway.SendText(ctx, ev.Instance, ev.ConversationID, text); err != nil {
		r.logWarn(ev, "send failed: %v", err)
		return
	}
	r.logOutbound(ctx, ev, entities.MediaText, text, "")
}

func (r *Router) sendAttachment(ctx context.Context, ev *entities.InboundEvent, node *entities.TriggerNode) {
	if r.Media == nil {
		return
	}
	payload, err := r.Media.LoadAttachment(node.MediaRef, node.ResponseText, node.MediaKind)
	if err != nil {
		r.logWarn(ev, "attachment load failed: %v", err)
		return
	}
	if err := r.Gateway.SendMedia(ctx, ev.Instance, ev.ConversationID, payload); err != nil {
		r.logWarn(ev, "attachment send failed: %v", err)
		return
	}
	r.logOutbound(ctx, ev, node.MediaKind, node.ResponseText, node.MediaRef)
}

// persistInbound writes history and auto-captures the lead. For media
// events it first tries to materialize the attachment; failure degrades to
// "media received, preview unavailable".
func (r *Router) persistInbound(ctx context.Context, ev *entities.InboundEvent) {
	mediaURL := ""
	if ev.IsMedia() && r.Media != nil {
		url, err := r.Media.StoreInbound(ctx, ev)
		if err != nil {
			r.logWarn(ev, "inbound media unavailable: %v", err)
		} else {
			mediaURL = url
		}
	}

	if r.History != nil {
		err := r.History.Insert(ctx, &entities.ChatLog{
			Instance:       ev.Instance,
			ConversationID: ev.ConversationID,
			FromMe:         false,
			Kind:           ev.Kind,
			Content:        ev.Text,
			MediaURL:       mediaURL,
		})
		if err != nil {
			r.logWarn(ev, "history insert failed: %v", err)
		}
	}

	if r.Contacts != nil {
		if err := r.Contacts.Ensure(ctx, ev.Instance, ev.ConversationID, ev.SenderName); err != nil {
			r.logWarn(ev, "contact capture failed: %v", err)
		}
	}
}

func (r *Router) logOutbound(ctx context.Context, ev *entities.InboundEvent, kind, content, mediaURL string) {
	if r.History == nil {
		return
	}
	err := r.History.Insert(ctx, &entities.ChatLog{
		Instance:       ev.Instance,
		ConversationID: ev.ConversationID,
		FromMe:         true,
		Kind:           kind,
		Content:        content,
		MediaURL:       mediaURL,
	})
	if err != nil {
		r.logWarn(ev, "history insert failed: %v", err)
	}
}

func (r *Router) handoffKeywords() []string {
	if len(r.HandoffKeywords) > 0 {
		return r.HandoffKeywords
	}
	return DefaultHandoffKeywords
}

func (r *Router) logWarn(ev *entities.InboundEvent, format string, args ...interface{}) {
	logrus.WithFields(logrus.Fields{
		"instance":     ev.Instance,
		"conversation": ev.ConversationID,
	}).Warnf(format, args...)
}

func containsWord(set []string, word string) bool {
	for _, s := range set {
		if s == word {
			return true
		}
	}
	return false
}
