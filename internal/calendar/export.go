package calendar

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/rrule"
)

const productID = "-//MedLine//Reminders//EN"

// Build turns the active reminders into a calendar with one recurring VEVENT
// each, starting at the reminder's next dispatch.
func Build(reminders []*models.Reminder, now time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, reminder := range reminders {
		if !reminder.IsActive() || reminder.NextDispatch == nil {
			continue
		}

		vevent, err := reminderEvent(reminder, now)
		if err != nil {
			return nil, fmt.Errorf("reminder %d: %w", reminder.ReminderID, err)
		}
		cal.Children = append(cal.Children, vevent.Component)
	}
	return cal, nil
}

func reminderEvent(reminder *models.Reminder, now time.Time) (*ical.Event, error) {
	rule, err := rrule.Parse(reminder.RecurrenceRule)
	if err != nil {
		return nil, err
	}
	start := *reminder.NextDispatch

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, fmt.Sprintf("reminder-%d@medline", reminder.ReminderID))
	vevent.Props.SetText(ical.PropSummary, summary(reminder))
	if description := description(reminder); description != "" {
		vevent.Props.SetText(ical.PropDescription, description)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(15*time.Minute).UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

	// SetText would escape the separators of the rule
	opt := rule.Option(start)
	recurrence := ical.NewProp(ical.PropRecurrenceRule)
	recurrence.Value = opt.RRuleString()
	vevent.Props.Set(recurrence)

	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, summary(reminder))
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = "PT0M"
	alarm.Props.Set(trigger)
	vevent.Children = append(vevent.Children, alarm)

	return vevent, nil
}

func summary(reminder *models.Reminder) string {
	if reminder.Medication.Dosage == "" {
		return "💊 " + reminder.Medication.Name
	}
	return fmt.Sprintf("💊 %s (%s)", reminder.Medication.Name, reminder.Medication.Dosage)
}

func description(reminder *models.Reminder) string {
	var parts []string
	if reminder.PatientName != "" {
		parts = append(parts, "For: "+reminder.PatientName)
	}
	if rule, err := rrule.Parse(reminder.RecurrenceRule); err == nil {
		parts = append(parts, rrule.Describe(rule))
	}
	return strings.Join(parts, "\n")
}

// Encode serializes the calendar to .ics bytes.
func Encode(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}
