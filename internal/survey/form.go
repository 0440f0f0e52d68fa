package survey

import (
	"context"
	"fmt"
	"time"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
)

// Phase is the position of a session in the submit lifecycle.
type Phase string

const (
	PhaseEditing    Phase = "editing"
	PhaseSubmitting Phase = "submitting"
	PhaseConfirmed  Phase = "confirmed"
)

// Session is everything one respondent has in flight. It is owned by that
// respondent alone; callers serialize access to it.
type Session struct {
	ID            string    `json:"id"`
	Response      Response  `json:"response"`
	Phase         Phase     `json:"phase"`
	JustSubmitted bool      `json:"justSubmitted"`
	LastError     string    `json:"lastError,omitempty"`
	Submissions   int       `json:"submissions"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ConsumeConfirmation reads and clears the one-shot "just submitted" flag.
// It returns true exactly once per successful submit.
func (s *Session) ConsumeConfirmation() bool {
	if !s.JustSubmitted {
		return false
	}
	s.JustSubmitted = false
	if s.Phase == PhaseConfirmed {
		s.Phase = PhaseEditing
	}
	return true
}

// Ack is the row store's receipt for an appended record.
type Ack struct {
	Gateway string `json:"gateway"`
	Ref     string `json:"ref,omitempty"`
}

// Gateway appends finished records to the shared row store. Append is called
// at most once per submit and never retried.
type Gateway interface {
	Append(ctx context.Context, rec Record) (Ack, error)
}

// Outcome of a successful submit.
type Outcome struct {
	Record Record
	Ack    Ack
}

// Form drives sessions against one catalog and one gateway.
type Form struct {
	cat *catalog.Catalog
	gw  Gateway
	loc *time.Location
	now func() time.Time
}

type FormOption func(*Form)

// WithLocation sets the survey-local timezone used for record timestamps.
func WithLocation(loc *time.Location) FormOption {
	return func(f *Form) {
		if loc != nil {
			f.loc = loc
		}
	}
}

func WithClock(now func() time.Time) FormOption {
	return func(f *Form) { f.now = now }
}

func NewForm(cat *catalog.Catalog, gw Gateway, opts ...FormOption) *Form {
	f := &Form{cat: cat, gw: gw, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Form) Catalog() *catalog.Catalog { return f.cat }

// NewSession starts a session in the editing phase with an empty response.
func (f *Form) NewSession(id string) *Session {
	now := f.now()
	return &Session{
		ID:        id,
		Response:  NewResponse(f.cat),
		Phase:     PhaseEditing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply runs the events against the session and returns the fresh report.
// Either every event applies or none does. An accepted change drops a
// pending confirmation.
func (f *Form) Apply(s *Session, events ...Event) (Report, error) {
	if s.Phase == PhaseSubmitting {
		return Validate(f.cat, &s.Response), ErrSubmitInFlight
	}
	next := s.Response.Clone()
	for _, ev := range events {
		if err := ev.apply(f.cat, &next); err != nil {
			return Validate(f.cat, &s.Response), err
		}
	}
	s.Response = next
	s.LastError = ""
	// Editing again ends the post-submit display; the banner is not owed anymore.
	s.JustSubmitted = false
	if s.Phase == PhaseConfirmed {
		s.Phase = PhaseEditing
	}
	s.UpdatedAt = f.now()
	return Validate(f.cat, &s.Response), nil
}

// Submit validates the session, appends its record through the gateway and,
// only on success, resets the response and raises the confirmation flag.
// A gateway failure leaves the response exactly as it was.
func (f *Form) Submit(ctx context.Context, s *Session) (*Outcome, error) {
	if s.Phase == PhaseSubmitting {
		return nil, ErrSubmitInFlight
	}
	rep := Validate(f.cat, &s.Response)
	if err := rep.Err(); err != nil {
		return nil, err
	}

	s.Phase = PhaseSubmitting
	rec := BuildRecord(f.cat, &s.Response, f.now().In(f.loc))
	ack, err := f.gw.Append(ctx, rec)
	if err != nil {
		gwErr := &GatewayError{Gateway: ack.Gateway, Err: err}
		s.Phase = PhaseEditing
		s.LastError = err.Error()
		s.UpdatedAt = f.now()
		return nil, gwErr
	}

	f.Reset(s)
	s.JustSubmitted = true
	s.Phase = PhaseConfirmed
	s.LastError = ""
	s.Submissions++
	return &Outcome{Record: rec, Ack: ack}, nil
}

// Reset replaces the response with the initial one in a single assignment.
func (f *Form) Reset(s *Session) {
	s.Response = NewResponse(f.cat)
	s.UpdatedAt = f.now()
}

// View is what the presentation layer renders for a session.
type View struct {
	SessionID      string   `json:"sessionId"`
	Phase          Phase    `json:"phase"`
	Response       Response `json:"response"`
	Report         Report   `json:"report"`
	Messages       []string `json:"messages"`
	Hint           string   `json:"hint,omitempty"`
	SubmitEnabled  bool     `json:"submitEnabled"`
	Confirmed      bool     `json:"confirmed"`
	Confirmation   string   `json:"confirmation,omitempty"`
	ScrollToBottom bool     `json:"scrollToBottom"`
	Error          string   `json:"error,omitempty"`
}

// View renders the session and consumes its confirmation flag. Section
// messages are held back on the render right after a reset.
func (f *Form) View(s *Session) View {
	rep := Validate(f.cat, &s.Response)
	v := View{
		SessionID:     s.ID,
		Phase:         s.Phase,
		Response:      s.Response.Clone(),
		Report:        rep,
		Messages:      []string{},
		SubmitEnabled: rep.Valid() && s.Phase != PhaseSubmitting,
	}
	if !s.JustSubmitted {
		if msgs := rep.SectionMessages(f.cat); msgs != nil {
			v.Messages = msgs
		}
		v.Hint = rep.Hint(f.cat)
	}
	if s.LastError != "" {
		format := orDefault(f.cat.Messages.SubmitFailed, "Submission failed: %s")
		v.Error = fmt.Sprintf(format, s.LastError)
	}
	if s.ConsumeConfirmation() {
		v.Confirmed = true
		v.ScrollToBottom = true
		v.Confirmation = orDefault(f.cat.Messages.Submitted, "Your response has been recorded.")
		v.Phase = s.Phase
	}
	return v
}
