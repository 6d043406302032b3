package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const productID = "-//calendar-push//EN"

// Encode serializes the record as a single-event iCalendar document.
// now becomes the DTSTAMP; all date-times are written in UTC. Text
// escaping and CRLF line termination are handled by the encoder.
func Encode(rec *EventRecord, now time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "PUBLISH")

	event := ical.NewComponent(ical.CompEvent)
	event.Props.SetText(ical.PropUID, rec.UID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, rec.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, rec.End.UTC())
	event.Props.SetText(ical.PropSummary, rec.Summary)
	event.Props.SetText(ical.PropLocation, rec.Location)
	event.Props.SetText(ical.PropDescription, rec.Description)
	cal.Children = append(cal.Children, event)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode iCalendar document: %w", err)
	}
	return buf.String(), nil
}

// Decode parses a single-event iCalendar document back into a record,
// recovering the unescaped field values.
func Decode(document string) (*EventRecord, error) {
	cal, err := ical.NewDecoder(strings.NewReader(document)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to parse iCalendar document: %w", err)
	}

	var event *ical.Component
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent {
			event = child
			break
		}
	}
	if event == nil {
		return nil, fmt.Errorf("no VEVENT found in calendar")
	}

	rec := &EventRecord{}
	for name, dst := range map[string]*string{
		ical.PropUID:         &rec.UID,
		ical.PropSummary:     &rec.Summary,
		ical.PropLocation:    &rec.Location,
		ical.PropDescription: &rec.Description,
	} {
		prop := event.Props.Get(name)
		if prop == nil {
			continue
		}
		text, err := prop.Text()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		*dst = text
	}

	if prop := event.Props.Get(ical.PropDateTimeStart); prop != nil {
		start, err := prop.DateTime(time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DTSTART: %w", err)
		}
		rec.Start = start
	}
	if prop := event.Props.Get(ical.PropDateTimeEnd); prop != nil {
		end, err := prop.DateTime(time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DTEND: %w", err)
		}
		rec.End = end
	}

	return rec, nil
}
