package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/muni-info/backend/internal/geocode"
	"github.com/muni-info/backend/internal/models"
	"github.com/muni-info/backend/internal/notify"
	"github.com/muni-info/backend/internal/routing"
	"github.com/muni-info/backend/internal/session"
	"github.com/muni-info/backend/internal/store"
	"github.com/muni-info/backend/internal/triage"
)

type Channel string

const (
	ChannelChat     Channel = "chat"
	ChannelUSSD     Channel = "ussd"
	ChannelTelegram Channel = "telegram"
)

// Intake is the channel-neutral inbound event. Address is the stable
// per-user key; SessionID is the transport's own id, kept for logging.
type Intake struct {
	Address   string
	Text      string
	Latitude  float64
	Longitude float64
	HasCoords bool
	SessionID string
	Channel   Channel
}

// Reply carries the outbound text plus the USSD continuation flag.
// Continue is false only on an explicit exit.
type Reply struct {
	Text     string
	Continue bool
}

const minDescriptionLength = 10

var referencePattern = regexp.MustCompile(`\bMI-\d{4}-\d{6}\b`)

// Greeting words open a session from START; the non-English ones also
// pick the reply language.
var greetings = map[string]string{
	"hi":       "",
	"hello":    "",
	"menu":     "",
	"start":    "",
	"sawubona": "zu",
	"molo":     "xh",
	"hallo":    "af",
}

var priorityByDigit = map[string]models.Priority{
	"1": models.PriorityUrgent,
	"2": models.PriorityHigh,
	"3": models.PriorityMedium,
	"4": models.PriorityLow,
}

var languageByDigit = map[string]string{
	"1": "en",
	"2": "af",
	"3": "zu",
	"4": "xh",
}

type handlerFunc func(ctx context.Context, sess *session.Session, before session.Session, in Intake, text string) Reply

// Engine is the conversation state machine. Each inbound event is
// processed while holding the session, so two events for the same
// address never interleave.
type Engine struct {
	sessions   *session.Store
	classifier triage.Classifier
	router     *routing.Engine
	complaints store.ComplaintStore
	resolver   geocode.Resolver
	notifier   notify.Notifier
	logger     zerolog.Logger
	language   string

	handlers map[session.State]handlerFunc
}

func NewEngine(
	sessions *session.Store,
	classifier triage.Classifier,
	router *routing.Engine,
	complaints store.ComplaintStore,
	resolver geocode.Resolver,
	notifier notify.Notifier,
	logger zerolog.Logger,
	defaultLanguage string,
) *Engine {
	if _, ok := catalogs[defaultLanguage]; !ok {
		defaultLanguage = "en"
	}
	e := &Engine{
		sessions:   sessions,
		classifier: classifier,
		router:     router,
		complaints: complaints,
		resolver:   resolver,
		notifier:   notifier,
		logger:     logger,
		language:   defaultLanguage,
	}
	e.handlers = map[session.State]handlerFunc{
		session.StateStart:                e.handleStart,
		session.StateStarted:              e.handleMainMenu,
		session.StateInLocation:           e.handleMainMenu,
		session.StateComplaintCategory:    e.handleCategory,
		session.StateComplaintDescription: e.handleDescription,
		session.StateComplaintPriority:    e.handlePriority,
		session.StateComplaintConfirm:     e.handleConfirm,
		session.StateLanguageSelection:    e.handleLanguage,
		session.StateStatusCheck:          e.handleStatusCheck,
		session.StateEmergencyMenu:        e.handleEmergencyMenu,
		session.StateInfoMenu:             e.handleInfoMenu,
	}
	return e
}

// Handle processes one inbound event and returns the reply for the
// channel adapter. It never returns an error: every failure path maps
// to a user-facing message and a session the user can continue from.
func (e *Engine) Handle(ctx context.Context, in Intake) Reply {
	var reply Reply
	updated := e.sessions.Update(in.Address, func(sess *session.Session) {
		reply = e.dispatch(ctx, sess, in)
	})
	e.logger.Debug().
		Str("address", in.Address).
		Str("channel", string(in.Channel)).
		Str("session_id", in.SessionID).
		Str("state", string(updated.State)).
		Bool("continue", reply.Continue).
		Msg("intake handled")
	return reply
}

func (e *Engine) dispatch(ctx context.Context, sess *session.Session, in Intake) Reply {
	if sess.Language == "" {
		sess.Language = e.language
	}
	before := *sess
	text := strings.TrimSpace(in.Text)

	// A reference id works from any state and leaves it untouched.
	if ref := referencePattern.FindString(text); ref != "" {
		return e.statusLookup(ctx, sess, before, ref)
	}

	// A location pin from a menu state places the user; mid-draft
	// coordinates fall through so a complaint in progress survives.
	if in.HasCoords && validCoords(in.Latitude, in.Longitude) && isMenuState(sess.State) {
		return e.handleCoordinates(ctx, sess, before, in)
	}

	handler, ok := e.handlers[sess.State]
	if !ok {
		sess.State = session.StateStart
		handler = e.handleStart
	}
	return handler(ctx, sess, before, in, text)
}

func (e *Engine) handleStart(_ context.Context, sess *session.Session, _ session.Session, _ Intake, text string) Reply {
	normalized := strings.ToLower(text)
	lang, greeted := greetings[normalized]
	if normalized == "" {
		// A USSD dial-in arrives with empty text.
		greeted = true
	}
	if !greeted {
		return reply(message(sess.Language, msgStartPrompt))
	}
	if lang != "" {
		sess.Language = lang
	}
	sess.State = session.StateStarted
	return reply(message(sess.Language, msgWelcome) + "\n\n" + message(sess.Language, msgMainMenu))
}

func (e *Engine) handleMainMenu(ctx context.Context, sess *session.Session, _ session.Session, _ Intake, text string) Reply {
	lang := sess.Language
	switch text {
	case "1":
		if sess.Location == nil {
			return reply(message(lang, msgNoLocation) + "\n\n" + message(lang, msgMainMenu))
		}
		return reply(message(lang, msgDistrictInfo, orUnknown(lang, sess.Location.District), orUnknown(lang, sess.Location.Province)))
	case "2":
		if sess.Location == nil {
			return reply(message(lang, msgNoLocation) + "\n\n" + message(lang, msgMainMenu))
		}
		return reply(message(lang, msgMunicipalityInfo, orUnknown(lang, sess.Location.Municipality)))
	case "3":
		sess.State = session.StateStatusCheck
		return reply(message(lang, msgStatusPrompt))
	case "4":
		sess.Draft = session.Draft{}
		sess.State = session.StateComplaintCategory
		return reply(categoryMenu(lang))
	case "5":
		sess.State = session.StateEmergencyMenu
		return reply(message(lang, msgEmergencyMenu))
	case "6":
		return e.listComplaints(ctx, sess)
	case "7":
		sess.State = session.StateLanguageSelection
		return reply(message(lang, msgLanguagePrompt))
	case "8":
		sess.State = session.StateInfoMenu
		return reply(message(lang, msgInfoMenu))
	case "0":
		sess.State = session.StateStart
		sess.Draft = session.Draft{}
		return Reply{Text: message(lang, msgGoodbye), Continue: false}
	}
	return reply(message(lang, msgFallback) + "\n\n" + message(lang, msgMainMenu))
}

func (e *Engine) handleCategory(_ context.Context, sess *session.Session, _ session.Session, _ Intake, text string) Reply {
	lang := sess.Language
	if text == "0" {
		sess.Draft = session.Draft{}
		sess.State = session.StateInLocation
		return reply(message(lang, msgMainMenu))
	}
	idx, err := strconv.Atoi(text)
	if err != nil || idx < 1 || idx > len(triage.MenuCategories) {
		return reply(message(lang, msgInvalidChoice) + "\n\n" + categoryMenu(lang))
	}
	sess.Draft.Category = triage.MenuCategories[idx-1]
	sess.State = session.StateComplaintDescription
	return reply(message(lang, msgDescriptionPrompt, sess.Draft.Category))
}

func (e *Engine) handleDescription(ctx context.Context, sess *session.Session, before session.Session, in Intake, text string) Reply {
	lang := sess.Language
	if text == "0" {
		sess.Draft = session.Draft{}
		sess.State = session.StateInLocation
		return reply(message(lang, msgCancelled) + "\n\n" + message(lang, msgMainMenu))
	}
	if text == "" || (in.Channel == ChannelUSSD && len(text) < minDescriptionLength) {
		return reply(message(lang, msgDescriptionShort))
	}
	sess.Draft.Description = text

	// USSD users pick a priority explicitly; everyone else gets the
	// classifier's. Emergencies are already pinned to urgent.
	if in.Channel == ChannelUSSD && !sess.Draft.Emergency {
		sess.State = session.StateComplaintPriority
		return reply(message(lang, msgPriorityPrompt))
	}
	return e.submitComplaint(ctx, sess, before)
}

func (e *Engine) handlePriority(_ context.Context, sess *session.Session, _ session.Session, _ Intake, text string) Reply {
	lang := sess.Language
	chosen, ok := priorityByDigit[text]
	if !ok {
		return reply(message(lang, msgInvalidChoice) + "\n\n" + message(lang, msgPriorityPrompt))
	}
	cls := e.classify(sess)
	if cls.PriorityConfidence > 0.8 && cls.Priority.Rank() > chosen.Rank() {
		chosen = cls.Priority
	}
	sess.Draft.Priority = chosen
	sess.State = session.StateComplaintConfirm
	return reply(e.confirmPrompt(sess))
}

func (e *Engine) handleConfirm(ctx context.Context, sess *session.Session, before session.Session, _ Intake, text string) Reply {
	lang := sess.Language
	switch text {
	case "1":
		return e.submitComplaint(ctx, sess, before)
	case "2":
		sess.Draft.Category = ""
		sess.State = session.StateComplaintCategory
		return reply(categoryMenu(lang))
	case "0":
		sess.Draft = session.Draft{}
		sess.State = session.StateInLocation
		return reply(message(lang, msgCancelled) + "\n\n" + message(lang, msgMainMenu))
	}
	return reply(message(lang, msgInvalidChoice) + "\n\n" + e.confirmPrompt(sess))
}

func (e *Engine) handleLanguage(_ context.Context, sess *session.Session, _ session.Session, _ Intake, text string) Reply {
	if text == "0" {
		sess.State = session.StateInLocation
		return reply(message(sess.Language, msgMainMenu))
	}
	lang, ok := languageByDigit[text]
	if !ok {
		return reply(message(sess.Language, msgInvalidChoice) + "\n\n" + message(sess.Language, msgLanguagePrompt))
	}
	sess.Language = lang
	sess.State = session.StateInLocation
	return reply(message(lang, msgLanguageSet) + "\n\n" + message(lang, msgMainMenu))
}

func (e *Engine) handleStatusCheck(_ context.Context, sess *session.Session, _ session.Session, _ Intake, text string) Reply {
	// Valid references are consumed before dispatch, so anything that
	// reaches here is either "back" or a malformed reference.
	if text == "0" {
		sess.State = session.StateInLocation
		return reply(message(sess.Language, msgMainMenu))
	}
	return reply(message(sess.Language, msgStatusInvalid))
}

func (e *Engine) handleEmergencyMenu(_ context.Context, sess *session.Session, _ session.Session, _ Intake, text string) Reply {
	lang := sess.Language
	switch text {
	case "1":
		sess.Draft = session.Draft{
			Category:  triage.CategoryEmergency,
			Priority:  models.PriorityUrgent,
			Emergency: true,
		}
		sess.State = session.StateComplaintDescription
		return reply(message(lang, msgEmergencyPrompt))
	case "0":
		sess.State = session.StateInLocation
		return reply(message(lang, msgMainMenu))
	}
	return reply(message(lang, msgInvalidChoice) + "\n\n" + message(lang, msgEmergencyMenu))
}

func (e *Engine) handleInfoMenu(_ context.Context, sess *session.Session, _ session.Session, _ Intake, text string) Reply {
	if text == "0" {
		sess.State = session.StateInLocation
		return reply(message(sess.Language, msgMainMenu))
	}
	return reply(message(sess.Language, msgInfoMenu))
}

func (e *Engine) statusLookup(ctx context.Context, sess *session.Session, before session.Session, ref string) Reply {
	lang := sess.Language
	c, err := e.complaints.GetByReference(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return reply(message(lang, msgStatusNotFound, ref))
	}
	if err != nil {
		e.logger.Error().Err(err).Str("reference", ref).Msg("status lookup failed")
		*sess = before
		return reply(message(lang, msgGenericError))
	}
	return reply(message(lang, msgStatusResult, c.ReferenceID, string(c.Status), c.Category, c.CreatedAt.Format("2006-01-02")))
}

func (e *Engine) handleCoordinates(ctx context.Context, sess *session.Session, before session.Session, in Intake) Reply {
	lang := sess.Language
	info, err := e.resolver.Resolve(ctx, in.Latitude, in.Longitude)
	if err != nil {
		e.logger.Error().Err(err).
			Float64("lat", in.Latitude).
			Float64("lon", in.Longitude).
			Msg("location resolution failed")
		*sess = before
		return reply(message(lang, msgGenericError))
	}
	sess.Location = &info
	sess.State = session.StateInLocation

	area := info.Municipality
	if area == "" {
		area = info.District
	}
	if area == "" {
		area = info.Province
	}
	if area == "" {
		area = message(lang, msgYourArea)
	}
	return reply(message(lang, msgLocationConfirmed, area) + "\n\n" + message(lang, msgMainMenu))
}

func (e *Engine) listComplaints(ctx context.Context, sess *session.Session) Reply {
	lang := sess.Language
	list, err := e.complaints.ListBySender(ctx, sess.Address, 3)
	if err != nil {
		e.logger.Error().Err(err).Str("address", sess.Address).Msg("listing complaints failed")
		return reply(message(lang, msgGenericError))
	}
	if len(list) == 0 {
		return reply(message(lang, msgMyComplaintsNone) + "\n\n" + message(lang, msgMainMenu))
	}
	var b strings.Builder
	b.WriteString(message(lang, msgMyComplaintsHeader))
	for _, c := range list {
		fmt.Fprintf(&b, "\n%s - %s (%s)", c.ReferenceID, c.Category, c.Status)
	}
	return reply(b.String())
}

// submitComplaint classifies the draft, routes it, persists it and
// acknowledges. If persistence fails the routed capacity is released
// and the session is restored so the user can resend.
func (e *Engine) submitComplaint(ctx context.Context, sess *session.Session, before session.Session) Reply {
	lang := sess.Language
	draft := sess.Draft

	cls := e.classify(sess)
	priority := draft.Priority
	if priority == "" {
		priority = cls.Priority
	}

	seed := models.Complaint{
		Sender:      sess.Address,
		Category:    draft.Category,
		Description: draft.Description,
		Priority:    priority,
		CreatedAt:   time.Now().UTC(),
		Location:    sess.Location,
	}
	decision := e.router.Route(seed, cls)

	created, err := e.complaints.Create(ctx, store.NewComplaint{
		Sender:         sess.Address,
		Category:       draft.Category,
		Description:    draft.Description,
		Priority:       priority,
		Location:       sess.Location,
		Classification: &cls,
		Routing:        &decision,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("address", sess.Address).Msg("complaint creation failed")
		e.router.Release(models.Complaint{
			AssignedDepartment: decision.Department,
			AssignedStaff:      decision.StaffID,
		})
		*sess = before
		return reply(message(lang, msgGenericError))
	}

	receipt := message(lang, msgReceipt, created.ReferenceID, created.ResponseEstimate)
	if err := e.notifier.Send(ctx, created.Sender, receipt); err != nil {
		e.logger.Warn().Err(err).Str("reference", created.ReferenceID).Msg("receipt notification failed")
	}

	e.logger.Info().
		Str("reference", created.ReferenceID).
		Str("category", created.Category).
		Str("department", created.AssignedDepartment).
		Str("priority", string(created.Priority)).
		Msg("complaint submitted")

	sess.Draft = session.Draft{}
	sess.State = session.StateInLocation
	return reply(message(lang, msgSubmitted, created.ReferenceID, created.ResponseEstimate) + "\n\n" + message(lang, msgMainMenu))
}

func (e *Engine) classify(sess *session.Session) models.Classification {
	return e.classifier.Classify(sess.Draft.Description, locationText(sess.Location))
}

func (e *Engine) confirmPrompt(sess *session.Session) string {
	d := sess.Draft
	return message(sess.Language, msgConfirmPrompt, d.Category, string(d.Priority), truncate(d.Description, 80))
}

func reply(text string) Reply {
	return Reply{Text: text, Continue: true}
}

func isMenuState(s session.State) bool {
	return s == session.StateStart || s == session.StateStarted || s == session.StateInLocation
}

func validCoords(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func locationText(loc *models.LocationInfo) string {
	if loc == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.Municipality, loc.District, loc.Province} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}
