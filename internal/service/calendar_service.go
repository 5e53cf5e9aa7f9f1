package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
	"github.com/noah-isme/birthday-greetings-api/internal/locale"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
)

const (
	calendarProductID = "-//Birthday Greetings//Birthdays//EN"
	calendarUIDDomain = "birthday-greetings"
	calendarRefresh   = time.Hour
)

// emptyCalendar is served when nobody is visible; the encoder rejects calendars without components.
const emptyCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + calendarProductID + "\r\nEND:VCALENDAR\r\n"

type rosterProvider interface {
	Roster(ctx context.Context) ([]RosterEntry, error)
	Today() birthday.Date
}

// CalendarService exports colleagues' birthdays as an iCalendar feed and vCards.
type CalendarService struct {
	roster     rosterProvider
	translator *locale.Translator
	clock      birthday.Clock
	logger     *zap.Logger
}

// NewCalendarService constructs a CalendarService.
func NewCalendarService(roster rosterProvider, translator *locale.Translator, clock birthday.Clock, logger *zap.Logger) *CalendarService {
	if translator == nil {
		translator = locale.MustNew("")
	}
	if clock == nil {
		clock = birthday.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{roster: roster, translator: translator, clock: clock, logger: logger}
}

// Feed builds a yearly-recurring all-day event for each visible colleague, starting at
// their next observed birthday.
func (s *CalendarService) Feed(ctx context.Context, lang string, includeHidden bool) ([]byte, error) {
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, err
	}
	roster = visible(roster, includeHidden)
	today := s.roster.Today()
	lang = s.translator.Resolve(lang, "")

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, calendarProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "PUBLISH")
	cal.Props.SetText("X-WR-CALNAME", s.translator.Message(lang, "UpcomingTitle", nil))
	refresh := ical.NewProp("REFRESH-INTERVAL")
	refresh.SetDuration(calendarRefresh)
	cal.Props.Set(refresh)

	stamp := ical.NewProp(ical.PropDateTimeStamp)
	stamp.SetDateTime(s.clock.Now().UTC())

	for _, entry := range roster {
		if !entry.BirthDate.Valid() {
			return nil, appErrors.Clone(appErrors.ErrInvalidDate, fmt.Sprintf("employee %s has an invalid birth date", entry.ID))
		}
		next := birthday.NextOccurrence(entry.BirthDate, today)
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, entry.ID+"@"+calendarUIDDomain)
		event.Props.SetText(ical.PropSummary, s.translator.Message(lang, "CalendarEventSummary", map[string]interface{}{"Name": entry.FullName}))
		start := ical.NewProp(ical.PropDateTimeStart)
		start.SetDate(next.Time())
		event.Props.Set(start)
		end := ical.NewProp(ical.PropDateTimeEnd)
		end.SetDate(next.Time().AddDate(0, 0, 1))
		event.Props.Set(end)
		rule := ical.NewProp(ical.PropRecurrenceRule)
		rule.Value = recurrenceRule(entry.BirthDate)
		event.Props.Set(rule)
		event.Props.Set(stamp)
		cal.Children = append(cal.Children, event.Component)
	}

	if len(cal.Children) == 0 {
		return []byte(emptyCalendar), nil
	}
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, appErrors.Internal(err, "failed to encode calendar")
	}
	return buf.Bytes(), nil
}

// recurrenceRule repeats a birthday every year. Day 60 is Feb 29 in leap years and Mar 1
// otherwise, which matches birthday.ObservedDate for leap-day birthdays.
func recurrenceRule(birth birthday.Date) string {
	if birth.Month == time.February && birth.Day == 29 {
		return "FREQ=YEARLY;BYYEARDAY=60"
	}
	return "FREQ=YEARLY"
}

// VCard exports one colleague as a vCard 4.0 contact with BDAY. Hidden birthdays are
// only exported when includeHidden is set.
func (s *CalendarService) VCard(ctx context.Context, employeeID string, includeHidden bool) ([]byte, error) {
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range roster {
		if entry.ID != employeeID {
			continue
		}
		if !entry.Public && !includeHidden {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return encodeVCards([]RosterEntry{entry})
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
}

// VCards exports every visible colleague in one .vcf stream.
func (s *CalendarService) VCards(ctx context.Context, includeHidden bool) ([]byte, error) {
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, err
	}
	return encodeVCards(visible(roster, includeHidden))
}

func encodeVCards(entries []RosterEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := vcard.NewEncoder(&buf)
	for _, entry := range entries {
		card := make(vcard.Card)
		card.SetValue(vcard.FieldUID, "urn:uuid:"+entry.ID)
		card.SetValue(vcard.FieldFormattedName, entry.FullName)
		card.SetName(&vcard.Name{
			FamilyName:     entry.LastName,
			GivenName:      entry.FirstName,
			AdditionalName: entry.MiddleName,
		})
		if entry.BirthDate.Valid() {
			card.SetValue(vcard.FieldBirthday, entry.BirthDate.Time().Format("20060102"))
		}
		if entry.Email != "" {
			card.SetValue(vcard.FieldEmail, entry.Email)
		}
		if entry.Department != "" {
			card.SetValue(vcard.FieldOrganization, entry.Department)
		}
		if entry.Position != "" {
			card.SetValue(vcard.FieldTitle, entry.Position)
		}
		vcard.ToV4(card)
		if err := enc.Encode(card); err != nil {
			return nil, appErrors.Internal(err, "failed to encode vcard")
		}
	}
	return buf.Bytes(), nil
}
