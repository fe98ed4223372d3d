package conversation

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/muni-info/backend/internal/models"
	"github.com/muni-info/backend/internal/routing"
	"github.com/muni-info/backend/internal/session"
	"github.com/muni-info/backend/internal/store"
	"github.com/muni-info/backend/internal/triage"
)

var refPattern = regexp.MustCompile(`MI-\d{4}-\d{6}`)

type recordingNotifier struct {
	sent []string
}

func (r *recordingNotifier) Send(_ context.Context, _ string, text string) error {
	r.sent = append(r.sent, text)
	return nil
}

type stubResolver struct {
	info models.LocationInfo
	err  error
}

func (s stubResolver) Resolve(context.Context, float64, float64) (models.LocationInfo, error) {
	return s.info, s.err
}

type fixture struct {
	engine   *Engine
	sessions *session.Store
	registry *routing.Registry
	memory   *store.MemoryStore
	notes    *recordingNotifier
}

func newFixture() *fixture {
	sessions := session.NewStore(session.DefaultTTL)
	registry := routing.NewRegistry(routing.DefaultDepartments(), routing.DefaultStaff(), zerolog.Nop())
	memory := store.NewMemory()
	notes := &recordingNotifier{}
	resolver := stubResolver{info: models.LocationInfo{
		Latitude:     -26.2041,
		Longitude:    28.0473,
		Province:     "Gauteng",
		District:     "City of Johannesburg",
		Municipality: "Johannesburg",
	}}
	engine := NewEngine(
		sessions,
		triage.New(),
		routing.NewEngine(registry, zerolog.Nop()),
		memory,
		resolver,
		notes,
		zerolog.Nop(),
		"en",
	)
	return &fixture{engine: engine, sessions: sessions, registry: registry, memory: memory, notes: notes}
}

func (f *fixture) send(channel Channel, address, text string) Reply {
	return f.engine.Handle(context.Background(), Intake{Address: address, Text: text, Channel: channel})
}

func (f *fixture) sendPin(address string, lat, lon float64) Reply {
	return f.engine.Handle(context.Background(), Intake{
		Address:   address,
		Latitude:  lat,
		Longitude: lon,
		HasCoords: true,
		Channel:   ChannelChat,
	})
}

func (f *fixture) state(address string) session.State {
	return f.sessions.Get(address).State
}

func TestGreetingOpensMainMenu(t *testing.T) {
	f := newFixture()
	addr := "+27820000001"

	r := f.send(ChannelChat, addr, "hi")
	if !strings.Contains(r.Text, "4. Lodge a complaint") {
		t.Fatalf("main menu missing from reply:\n%s", r.Text)
	}
	if !r.Continue {
		t.Fatalf("greeting must keep the session open")
	}
	if got := f.state(addr); got != session.StateStarted {
		t.Fatalf("state = %s, want %s", got, session.StateStarted)
	}
}

func TestGreetingDetectsLanguage(t *testing.T) {
	f := newFixture()
	addr := "+27820000002"

	r := f.send(ChannelChat, addr, "Sawubona")
	if !strings.Contains(r.Text, "Siyakwamukela") {
		t.Fatalf("expected an isiZulu welcome, got:\n%s", r.Text)
	}
	if lang := f.sessions.Get(addr).Language; lang != "zu" {
		t.Fatalf("language = %q, want zu", lang)
	}
}

func TestUnrecognisedInputBeforeGreeting(t *testing.T) {
	f := newFixture()
	addr := "+27820000003"

	r := f.send(ChannelChat, addr, "what is this")
	if !strings.Contains(r.Text, "Reply 'hi'") {
		t.Fatalf("expected start prompt, got:\n%s", r.Text)
	}
	if got := f.state(addr); got != session.StateStart {
		t.Fatalf("state = %s, want %s", got, session.StateStart)
	}
}

func TestEndToEndWaterComplaint(t *testing.T) {
	f := newFixture()
	addr := "+27821234567"

	f.send(ChannelChat, addr, "hi")
	f.send(ChannelChat, addr, "4")
	if got := f.state(addr); got != session.StateComplaintCategory {
		t.Fatalf("after menu option 4: state = %s, want %s", got, session.StateComplaintCategory)
	}

	r := f.send(ChannelChat, addr, "1")
	if got := f.state(addr); got != session.StateComplaintDescription {
		t.Fatalf("after category choice: state = %s, want %s", got, session.StateComplaintDescription)
	}
	if !strings.Contains(r.Text, "Water") {
		t.Fatalf("description prompt should name the category:\n%s", r.Text)
	}

	r = f.send(ChannelChat, addr, "No water for 3 days in my area")
	if got := f.state(addr); got != session.StateInLocation {
		t.Fatalf("after submission: state = %s, want %s", got, session.StateInLocation)
	}
	ref := refPattern.FindString(r.Text)
	if ref == "" {
		t.Fatalf("no reference id in reply:\n%s", r.Text)
	}

	c, err := f.memory.GetByReference(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetByReference(%s): %v", ref, err)
	}
	if c.Category != "Water" {
		t.Fatalf("category = %q, want Water", c.Category)
	}
	if c.Priority != models.PriorityMedium {
		t.Fatalf("auto priority = %q, want medium", c.Priority)
	}
	if c.AssignedDepartment != "water_sanitation" {
		t.Fatalf("department = %q, want water_sanitation", c.AssignedDepartment)
	}
	if c.AssignedStaff != "staff-001" {
		t.Fatalf("staff = %q, want staff-001", c.AssignedStaff)
	}
	if c.Classification == nil || c.Classification.Category != "Water" {
		t.Fatalf("classification not attached: %+v", c.Classification)
	}
	if c.ResponseEstimate == "" {
		t.Fatalf("expected a response estimate")
	}

	if len(f.notes.sent) != 1 || !strings.Contains(f.notes.sent[0], ref) {
		t.Fatalf("receipt notification missing: %v", f.notes.sent)
	}

	dept, _ := f.registry.Department("water_sanitation")
	if dept.CurrentLoad != 1 {
		t.Fatalf("department load = %d, want 1", dept.CurrentLoad)
	}
}

func TestInvalidMenuDigitIsIdempotent(t *testing.T) {
	f := newFixture()
	addr := "+27820000004"

	f.sendPin(addr, -26.2041, 28.0473)
	if got := f.state(addr); got != session.StateInLocation {
		t.Fatalf("state = %s, want %s", got, session.StateInLocation)
	}

	first := f.send(ChannelChat, addr, "42")
	second := f.send(ChannelChat, addr, "42")
	if first.Text != second.Text {
		t.Fatalf("replies differ:\n%s\n---\n%s", first.Text, second.Text)
	}
	if !strings.Contains(first.Text, "didn't understand") {
		t.Fatalf("expected fallback reply, got:\n%s", first.Text)
	}
	if got := f.state(addr); got != session.StateInLocation {
		t.Fatalf("state after invalid digits = %s, want %s", got, session.StateInLocation)
	}
}

func TestLocationPinResolvesArea(t *testing.T) {
	f := newFixture()
	addr := "+27820000005"

	r := f.sendPin(addr, -26.2041, 28.0473)
	if !strings.Contains(r.Text, "Johannesburg") {
		t.Fatalf("expected the resolved area in the reply:\n%s", r.Text)
	}
	if got := f.state(addr); got != session.StateInLocation {
		t.Fatalf("state = %s, want %s", got, session.StateInLocation)
	}

	r = f.send(ChannelChat, addr, "1")
	if !strings.Contains(r.Text, "City of Johannesburg") || !strings.Contains(r.Text, "Gauteng") {
		t.Fatalf("district info incomplete:\n%s", r.Text)
	}

	r = f.send(ChannelChat, addr, "2")
	if !strings.Contains(r.Text, "Johannesburg") {
		t.Fatalf("municipality info incomplete:\n%s", r.Text)
	}
}

func TestDistrictInfoWithoutLocation(t *testing.T) {
	f := newFixture()
	addr := "+27820000006"

	f.send(ChannelChat, addr, "hi")
	r := f.send(ChannelChat, addr, "1")
	if !strings.Contains(r.Text, "don't have a location") {
		t.Fatalf("expected the no-location prompt:\n%s", r.Text)
	}
	if got := f.state(addr); got != session.StateStarted {
		t.Fatalf("state = %s, want %s", got, session.StateStarted)
	}
}

func TestReferenceLookupShortCircuitsDraft(t *testing.T) {
	f := newFixture()

	created, err := f.memory.Create(context.Background(), store.NewComplaint{
		Sender:      "+27829999999",
		Category:    "Water",
		Description: "burst pipe on the corner",
		Priority:    models.PriorityUrgent,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	addr := "+27821111111"
	f.send(ChannelChat, addr, "hi")
	f.send(ChannelChat, addr, "4")
	f.send(ChannelChat, addr, "2") // Electricity
	if got := f.state(addr); got != session.StateComplaintDescription {
		t.Fatalf("state = %s, want %s", got, session.StateComplaintDescription)
	}

	r := f.send(ChannelChat, addr, created.ReferenceID)
	if !strings.Contains(r.Text, created.ReferenceID) || !strings.Contains(r.Text, "submitted") {
		t.Fatalf("status lookup reply wrong:\n%s", r.Text)
	}
	if got := f.state(addr); got != session.StateComplaintDescription {
		t.Fatalf("lookup changed state to %s", got)
	}
	if cat := f.sessions.Get(addr).Draft.Category; cat != "Electricity" {
		t.Fatalf("draft category changed to %q", cat)
	}

	r = f.send(ChannelChat, addr, "MI-2024-123456")
	if !strings.Contains(r.Text, "No complaint found") {
		t.Fatalf("expected not-found reply:\n%s", r.Text)
	}
}

func TestUSSDFlowWithPriorityAndConfirm(t *testing.T) {
	f := newFixture()
	addr := "+27825550001"

	r := f.send(ChannelUSSD, addr, "")
	if !strings.Contains(r.Text, "4. Lodge a complaint") {
		t.Fatalf("dial-in should show the menu:\n%s", r.Text)
	}

	f.send(ChannelUSSD, addr, "4")
	f.send(ChannelUSSD, addr, "1") // Water

	r = f.send(ChannelUSSD, addr, "short")
	if got := f.state(addr); got != session.StateComplaintDescription {
		t.Fatalf("short description moved state to %s", got)
	}
	if !strings.Contains(r.Text, "more detail") {
		t.Fatalf("expected re-prompt for detail:\n%s", r.Text)
	}

	r = f.send(ChannelUSSD, addr, "No water for 3 days in my area")
	if got := f.state(addr); got != session.StateComplaintPriority {
		t.Fatalf("state = %s, want %s", got, session.StateComplaintPriority)
	}
	if !strings.Contains(r.Text, "1. Urgent") {
		t.Fatalf("priority prompt missing:\n%s", r.Text)
	}

	r = f.send(ChannelUSSD, addr, "2")
	if got := f.state(addr); got != session.StateComplaintConfirm {
		t.Fatalf("state = %s, want %s", got, session.StateComplaintConfirm)
	}
	if !strings.Contains(r.Text, "Priority: high") {
		t.Fatalf("confirm summary missing priority:\n%s", r.Text)
	}

	r = f.send(ChannelUSSD, addr, "1")
	if got := f.state(addr); got != session.StateInLocation {
		t.Fatalf("state = %s, want %s", got, session.StateInLocation)
	}
	if !r.Continue {
		t.Fatalf("submission must not end the USSD session")
	}

	ref := refPattern.FindString(r.Text)
	if ref == "" {
		t.Fatalf("no reference in reply:\n%s", r.Text)
	}
	c, err := f.memory.GetByReference(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if c.Priority != models.PriorityHigh {
		t.Fatalf("priority = %q, want high", c.Priority)
	}
}

func TestClassifierOverridesChosenPriority(t *testing.T) {
	f := newFixture()
	addr := "+27825550002"

	f.send(ChannelUSSD, addr, "hi")
	f.send(ChannelUSSD, addr, "4")
	f.send(ChannelUSSD, addr, "7") // Other
	f.send(ChannelUSSD, addr, "the gate is broken")

	// The breakage boost makes the classifier confident about high, so
	// a user-picked low is raised.
	r := f.send(ChannelUSSD, addr, "4")
	if !strings.Contains(r.Text, "Priority: high") {
		t.Fatalf("expected classifier override to high:\n%s", r.Text)
	}
}

func TestClassifierDoesNotLowerChosenPriority(t *testing.T) {
	f := newFixture()
	addr := "+27825550003"

	f.send(ChannelUSSD, addr, "hi")
	f.send(ChannelUSSD, addr, "4")
	f.send(ChannelUSSD, addr, "1")
	f.send(ChannelUSSD, addr, "No water for 3 days in my area")

	r := f.send(ChannelUSSD, addr, "1") // urgent
	if !strings.Contains(r.Text, "Priority: urgent") {
		t.Fatalf("user choice was lowered:\n%s", r.Text)
	}
}

func TestConfirmEditAndCancel(t *testing.T) {
	f := newFixture()
	addr := "+27825550004"

	f.send(ChannelUSSD, addr, "hi")
	f.send(ChannelUSSD, addr, "4")
	f.send(ChannelUSSD, addr, "1")
	f.send(ChannelUSSD, addr, "No water for 3 days in my area")
	f.send(ChannelUSSD, addr, "3")
	if got := f.state(addr); got != session.StateComplaintConfirm {
		t.Fatalf("state = %s, want %s", got, session.StateComplaintConfirm)
	}

	r := f.send(ChannelUSSD, addr, "2")
	if got := f.state(addr); got != session.StateComplaintCategory {
		t.Fatalf("edit should return to category, got %s", got)
	}
	if !strings.Contains(r.Text, "1. Water") {
		t.Fatalf("category menu missing:\n%s", r.Text)
	}

	f.send(ChannelUSSD, addr, "4") // Roads this time
	f.send(ChannelUSSD, addr, "Deep pothole outside the clinic entrance")
	f.send(ChannelUSSD, addr, "3")

	r = f.send(ChannelUSSD, addr, "0") // cancel at confirm
	if got := f.state(addr); got != session.StateInLocation {
		t.Fatalf("cancel should return to the menu, got %s", got)
	}
	if !strings.Contains(r.Text, "cancelled") {
		t.Fatalf("expected cancellation notice:\n%s", r.Text)
	}
	if !f.sessions.Get(addr).Draft.Empty() {
		t.Fatalf("draft not discarded: %+v", f.sessions.Get(addr).Draft)
	}

	list, err := f.memory.ListBySender(context.Background(), addr, 10)
	if err != nil {
		t.Fatalf("ListBySender: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("cancelled draft was persisted: %+v", list)
	}
}

type failingStore struct {
	store.ComplaintStore
}

func (failingStore) Create(context.Context, store.NewComplaint) (models.Complaint, error) {
	return models.Complaint{}, errors.New("store down")
}

func TestStoreFailureRollsBackSessionAndCapacity(t *testing.T) {
	sessions := session.NewStore(session.DefaultTTL)
	registry := routing.NewRegistry(routing.DefaultDepartments(), routing.DefaultStaff(), zerolog.Nop())
	engine := NewEngine(
		sessions,
		triage.New(),
		routing.NewEngine(registry, zerolog.Nop()),
		failingStore{ComplaintStore: store.NewMemory()},
		stubResolver{},
		&recordingNotifier{},
		zerolog.Nop(),
		"en",
	)
	addr := "+27825550005"
	ctx := context.Background()

	engine.Handle(ctx, Intake{Address: addr, Text: "hi", Channel: ChannelChat})
	engine.Handle(ctx, Intake{Address: addr, Text: "4", Channel: ChannelChat})
	engine.Handle(ctx, Intake{Address: addr, Text: "1", Channel: ChannelChat})

	r := engine.Handle(ctx, Intake{Address: addr, Text: "No water for 3 days in my area", Channel: ChannelChat})
	if !strings.Contains(r.Text, "went wrong") {
		t.Fatalf("expected generic error reply:\n%s", r.Text)
	}

	sess := sessions.Get(addr)
	if sess.State != session.StateComplaintDescription {
		t.Fatalf("state = %s, want %s", sess.State, session.StateComplaintDescription)
	}
	if sess.Draft.Description != "" {
		t.Fatalf("description not rolled back: %q", sess.Draft.Description)
	}
	if sess.Draft.Category != "Water" {
		t.Fatalf("category from the previous event lost: %q", sess.Draft.Category)
	}

	dept, _ := registry.Department("water_sanitation")
	if dept.CurrentLoad != 0 {
		t.Fatalf("department load leaked: %d", dept.CurrentLoad)
	}
	staff := registry.StaffInDepartment("water_sanitation")
	if len(staff) != 1 || staff[0].CurrentLoad != 2 {
		t.Fatalf("staff load leaked: %+v", staff)
	}
}

func TestEmergencyReportRoutesToEmergencyServices(t *testing.T) {
	f := newFixture()
	addr := "+27825550006"

	f.send(ChannelChat, addr, "hi")
	r := f.send(ChannelChat, addr, "5")
	if got := f.state(addr); got != session.StateEmergencyMenu {
		t.Fatalf("state = %s, want %s", got, session.StateEmergencyMenu)
	}
	if !strings.Contains(r.Text, "10111") {
		t.Fatalf("emergency numbers missing:\n%s", r.Text)
	}

	f.send(ChannelChat, addr, "1")
	if got := f.state(addr); got != session.StateComplaintDescription {
		t.Fatalf("state = %s, want %s", got, session.StateComplaintDescription)
	}

	r = f.send(ChannelChat, addr, "There is a fire near the community hall")
	ref := refPattern.FindString(r.Text)
	if ref == "" {
		t.Fatalf("no reference in reply:\n%s", r.Text)
	}
	c, err := f.memory.GetByReference(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if c.Category != triage.CategoryEmergency {
		t.Fatalf("category = %q, want %q", c.Category, triage.CategoryEmergency)
	}
	if c.Priority != models.PriorityUrgent {
		t.Fatalf("priority = %q, want urgent", c.Priority)
	}
	if c.AssignedDepartment != "emergency_services" {
		t.Fatalf("department = %q, want emergency_services", c.AssignedDepartment)
	}
	if c.AssignedStaff != "staff-007" {
		t.Fatalf("staff = %q, want staff-007", c.AssignedStaff)
	}
}

func TestGasLeakForcesEmergencyDepartment(t *testing.T) {
	f := newFixture()
	addr := "+27825550007"

	f.send(ChannelChat, addr, "hi")
	f.send(ChannelChat, addr, "4")
	f.send(ChannelChat, addr, "1") // declared Water

	r := f.send(ChannelChat, addr, "There is a gas leak near the school yard")
	ref := refPattern.FindString(r.Text)
	c, err := f.memory.GetByReference(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if c.Category != "Water" {
		t.Fatalf("declared category changed: %q", c.Category)
	}
	if c.AssignedDepartment != "emergency_services" {
		t.Fatalf("department = %q, want emergency_services", c.AssignedDepartment)
	}
}

func TestStatusCheckMenu(t *testing.T) {
	f := newFixture()
	addr := "+27825550008"

	f.send(ChannelChat, addr, "hi")
	r := f.send(ChannelChat, addr, "3")
	if got := f.state(addr); got != session.StateStatusCheck {
		t.Fatalf("state = %s, want %s", got, session.StateStatusCheck)
	}
	if !strings.Contains(r.Text, "MI-2024-123456") {
		t.Fatalf("prompt should show the reference format:\n%s", r.Text)
	}

	r = f.send(ChannelChat, addr, "gibberish")
	if got := f.state(addr); got != session.StateStatusCheck {
		t.Fatalf("invalid input moved state to %s", got)
	}
	if !strings.Contains(r.Text, "MI-YYYY-NNNNNN") {
		t.Fatalf("expected format hint:\n%s", r.Text)
	}

	f.send(ChannelChat, addr, "0")
	if got := f.state(addr); got != session.StateInLocation {
		t.Fatalf("back option failed, state = %s", got)
	}
}

func TestLanguageMenuSwitchesCatalog(t *testing.T) {
	f := newFixture()
	addr := "+27825550009"

	f.send(ChannelChat, addr, "hi")
	f.send(ChannelChat, addr, "7")
	r := f.send(ChannelChat, addr, "2")
	if !strings.Contains(r.Text, "Taal opgedateer") {
		t.Fatalf("expected Afrikaans confirmation:\n%s", r.Text)
	}
	if lang := f.sessions.Get(addr).Language; lang != "af" {
		t.Fatalf("language = %q, want af", lang)
	}

	r = f.send(ChannelChat, addr, "0")
	if r.Continue {
		t.Fatalf("exit must end the session")
	}
	if !strings.Contains(r.Text, "Totsiens") {
		t.Fatalf("goodbye not localized:\n%s", r.Text)
	}
}

func TestExitEndsSession(t *testing.T) {
	f := newFixture()
	addr := "+27825550010"

	f.send(ChannelUSSD, addr, "")
	r := f.send(ChannelUSSD, addr, "0")
	if r.Continue {
		t.Fatalf("exit must set Continue=false")
	}
	if got := f.state(addr); got != session.StateStart {
		t.Fatalf("state = %s, want %s", got, session.StateStart)
	}

	// The next dial-in starts over cleanly.
	r = f.send(ChannelUSSD, addr, "")
	if !r.Continue || !strings.Contains(r.Text, "4. Lodge a complaint") {
		t.Fatalf("session did not restart:\n%s", r.Text)
	}
}

func TestMyComplaintsList(t *testing.T) {
	f := newFixture()
	addr := "+27825550011"
	ctx := context.Background()

	first, err := f.memory.Create(ctx, store.NewComplaint{Sender: addr, Category: "Water", Description: "leak", Priority: models.PriorityMedium})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := f.memory.Create(ctx, store.NewComplaint{Sender: addr, Category: "Roads", Description: "pothole", Priority: models.PriorityLow})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.send(ChannelChat, addr, "hi")
	r := f.send(ChannelChat, addr, "6")
	if !strings.Contains(r.Text, first.ReferenceID) || !strings.Contains(r.Text, second.ReferenceID) {
		t.Fatalf("complaint list incomplete:\n%s", r.Text)
	}

	other := "+27825550012"
	f.send(ChannelChat, other, "hi")
	r = f.send(ChannelChat, other, "6")
	if !strings.Contains(r.Text, "no complaints") {
		t.Fatalf("expected empty list notice:\n%s", r.Text)
	}
}
