package mailer

import (
	"fmt"
	"strings"
)

// Template identifies one outbound email kind. These keys are also what
// the notification outbox records, so renames are a migration.
type Template string

const (
	TplOperatorRequest     Template = "operator_request"
	TplCustomerReceived    Template = "customer_received"
	TplCustomerAck         Template = "customer_ack"
	TplHowToBook           Template = "how_to_book"
	TplSpamDeflection      Template = "spam_deflection"
	TplRejection           Template = "rejection"
	TplOperatorWillContact Template = "operator_will_contact"
	TplChooseTime          Template = "choose_time"
	TplAlternativeDates    Template = "alternative_dates"
	TplConfirmationRainbow Template = "confirmation_rainbow"
	TplConfirmationGeneric Template = "confirmation_generic"
	TplFollowUpTimes       Template = "followup_times"
	TplFollowUpChecking    Template = "followup_checking"
	TplFollowUpArranging   Template = "followup_arranging"
	TplInternalArrange     Template = "internal_arrange"
)

// Slot is one bookable departure with its computed total for the party.
type Slot struct {
	Label      string
	TotalPrice float64
}

// Payload carries everything any template can render. Unused fields are
// ignored by templates that do not need them.
type Payload struct {
	RefCode            string
	CustomerName       string
	PartySize          int
	PreferredDate      string
	TimeWindow         string
	DoorsOff           bool
	Hotel              string
	SpecialRequests    string
	TotalWeightLbs     float64
	OperatorName       string
	ConfirmationNumber string
	TotalAmount        float64
	Island             string
	Reason             string
	Dates              []string
	Slots              []Slot
	Notes              string
}

// DefaultIsland is assumed when a booking's metadata carries no island.
const DefaultIsland = "oahu"

// islandLogistics is the meeting-point and parking text keyed by island.
var islandLogistics = map[string]string{
	"oahu":   "Check in at the heliport off Lagoon Drive, 30 minutes before departure. Free parking is available in the marked stalls by the terminal.",
	"maui":   "Check in at the Kahului Heliport, Hangar 105, 30 minutes before departure. Parking is free in front of the hangar.",
	"kauai":  "Check in at the Lihue Airport commuter terminal, 30 minutes before departure. Use the general airport parking lot.",
	"hawaii": "Check in at the Kona heliport pad, 30 minutes before departure. Follow the signs from the main airport road.",
}

func logisticsFor(island string) string {
	key := strings.ToLower(strings.TrimSpace(island))
	if key == "" {
		key = DefaultIsland
	}
	if key == "big island" {
		key = "hawaii"
	}
	if text, ok := islandLogistics[key]; ok {
		return text
	}
	return islandLogistics[DefaultIsland]
}

func greet(name string) string {
	if name == "" {
		return "Aloha,"
	}
	return "Aloha " + name + ","
}

// Compose renders a template to subject and plain-text body.
func Compose(tpl Template, d Payload) (subject, body string, err error) {
	switch tpl {
	case TplOperatorRequest:
		return composeOperatorRequest(d)
	case TplCustomerReceived:
		return composeCustomerReceived(d)
	case TplCustomerAck:
		return fmt.Sprintf("Re: your helicopter tour (%s)", d.RefCode),
			greet(d.CustomerName) + "\n\nThanks for your message — we've added it to your booking " + d.RefCode + " and will get back to you shortly.\n\nMahalo,\nMakai Tours",
			nil
	case TplHowToBook:
		return "Booking a helicopter tour with Makai Tours",
			greet(d.CustomerName) + "\n\nThanks for reaching out! To get a tour booked we just need a few details: your preferred date, a morning or afternoon preference, how many passengers, and the combined weight of your party. Reply with those and we'll take it from there.\n\nMahalo,\nMakai Tours",
			nil
	case TplSpamDeflection:
		return "Makai Tours",
			"Aloha,\n\nThis inbox only handles helicopter-tour bookings. If you'd like to book a tour, just reply with your preferred date and party size.\n\nMahalo,\nMakai Tours",
			nil
	case TplRejection:
		return composeRejection(d)
	case TplOperatorWillContact:
		return fmt.Sprintf("Your helicopter tour %s — the operator will contact you", d.RefCode),
			greet(d.CustomerName) + "\n\nGood news: " + orOperator(d.OperatorName) + " has your request and will reach out to you directly to finalize the details. Keep an eye on your phone and inbox.\n\nYour reference code is " + d.RefCode + ".\n\nMahalo,\nMakai Tours",
			nil
	case TplChooseTime:
		return composeChooseTime(d)
	case TplAlternativeDates:
		return composeAlternativeDates(d)
	case TplConfirmationRainbow, TplConfirmationGeneric:
		return composeConfirmation(tpl, d)
	case TplFollowUpTimes:
		return composeFollowUpTimes(d)
	case TplFollowUpChecking:
		return fmt.Sprintf("Your helicopter tour %s — checking availability", d.RefCode),
			greet(d.CustomerName) + "\n\nWe're checking live availability with " + orOperator(d.OperatorName) + " for " + d.PreferredDate + " and will send you the available tour times as soon as we have them.\n\nMahalo,\nMakai Tours",
			nil
	case TplFollowUpArranging:
		return fmt.Sprintf("Your helicopter tour %s — arranging your time", d.RefCode),
			greet(d.CustomerName) + "\n\nWe're arranging your tour time directly with " + orOperator(d.OperatorName) + " for " + d.PreferredDate + ". We'll confirm your exact departure time with you shortly — no action needed.\n\nMahalo,\nMakai Tours",
			nil
	case TplInternalArrange:
		return fmt.Sprintf("[action] Arrange time with %s for %s", orOperator(d.OperatorName), d.RefCode),
			fmt.Sprintf("Booking %s needs a tour time arranged manually with %s.\n\nCustomer: %s\nDate: %s\nWindow: %s\nParty: %d\nWeight: %.0f lbs\nNotes: %s\n",
				d.RefCode, orOperator(d.OperatorName), d.CustomerName, d.PreferredDate, d.TimeWindow, d.PartySize, d.TotalWeightLbs, d.Notes),
			nil
	default:
		return "", "", fmt.Errorf("unknown template %q", string(tpl))
	}
}

func orOperator(name string) string {
	if name == "" {
		return "the tour operator"
	}
	return name
}

func composeOperatorRequest(d Payload) (string, string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Aloha,\n\nWe'd like to book a tour for one of our customers. Details below.\n\n")
	fmt.Fprintf(&sb, "Reference: %s\n", d.RefCode)
	fmt.Fprintf(&sb, "Name: %s\n", d.CustomerName)
	fmt.Fprintf(&sb, "Party size: %d\n", d.PartySize)
	fmt.Fprintf(&sb, "Preferred date: %s\n", d.PreferredDate)
	fmt.Fprintf(&sb, "Time window: %s\n", d.TimeWindow)
	fmt.Fprintf(&sb, "Combined weight: %.0f lbs\n", d.TotalWeightLbs)
	if d.DoorsOff {
		sb.WriteString("Doors-off requested: yes\n")
	}
	if d.Hotel != "" {
		fmt.Fprintf(&sb, "Hotel: %s\n", d.Hotel)
	}
	if d.SpecialRequests != "" {
		fmt.Fprintf(&sb, "Special requests: %s\n", d.SpecialRequests)
	}
	sb.WriteString("\nPlease reply with a confirmation or your available times, quoting the reference above.\n\nMahalo,\nMakai Tours")
	return fmt.Sprintf("Booking request %s — %s, party of %d", d.RefCode, d.PreferredDate, d.PartySize), sb.String(), nil
}

func composeCustomerReceived(d Payload) (string, string, error) {
	body := greet(d.CustomerName) + "\n\nYour helicopter tour request is in! We've sent it to " + orOperator(d.OperatorName) +
		" and will follow up with available times.\n\nYour reference code is " + d.RefCode +
		" — keep it handy for any questions.\n\nDate: " + d.PreferredDate + "\nTime window: " + d.TimeWindow +
		fmt.Sprintf("\nParty size: %d\n\nMahalo,\nMakai Tours", d.PartySize)
	return fmt.Sprintf("We received your helicopter tour request (%s)", d.RefCode), body, nil
}

func composeRejection(d Payload) (string, string, error) {
	body := greet(d.CustomerName) + "\n\nUnfortunately " + orOperator(d.OperatorName) + " can't accommodate your tour on " + d.PreferredDate + "."
	if d.Reason != "" {
		body += " They told us: " + d.Reason
	}
	body += "\n\nIf you'd like, reply with another date and we'll try again right away.\n\nMahalo,\nMakai Tours"
	return fmt.Sprintf("Your helicopter tour %s — update", d.RefCode), body, nil
}

func composeChooseTime(d Payload) (string, string, error) {
	var sb strings.Builder
	sb.WriteString(greet(d.CustomerName) + "\n\n" + orOperator(d.OperatorName) + " has offered the following options for your tour:\n\n")
	for _, date := range d.Dates {
		fmt.Fprintf(&sb, "  - %s\n", date)
	}
	sb.WriteString("\nReply with the option that works best and we'll lock it in.\n\nMahalo,\nMakai Tours")
	return fmt.Sprintf("Choose a time for your helicopter tour %s", d.RefCode), sb.String(), nil
}

func composeAlternativeDates(d Payload) (string, string, error) {
	var sb strings.Builder
	sb.WriteString(greet(d.CustomerName) + "\n\nYour preferred slot wasn't available, but " + orOperator(d.OperatorName) + " offered these alternatives:\n\n")
	for _, date := range d.Dates {
		fmt.Fprintf(&sb, "  - %s\n", date)
	}
	sb.WriteString("\nReply with the one you'd like and we'll confirm it.\n\nMahalo,\nMakai Tours")
	return fmt.Sprintf("Alternative dates for your helicopter tour %s", d.RefCode), sb.String(), nil
}

func composeConfirmation(tpl Template, d Payload) (string, string, error) {
	var sb strings.Builder
	sb.WriteString(greet(d.CustomerName) + "\n\nYour helicopter tour is confirmed!\n\n")
	fmt.Fprintf(&sb, "Operator: %s\n", orOperator(d.OperatorName))
	fmt.Fprintf(&sb, "Date: %s\n", d.PreferredDate)
	if d.ConfirmationNumber != "" {
		fmt.Fprintf(&sb, "Operator confirmation number: %s\n", d.ConfirmationNumber)
	}
	if d.TotalAmount > 0 {
		fmt.Fprintf(&sb, "Total: $%.2f\n", d.TotalAmount)
	}
	sb.WriteString("\n" + logisticsFor(d.Island) + "\n")
	if tpl == TplConfirmationRainbow {
		sb.WriteString("\nRainbow flies doors-off by default — dress for wind, and secure hats and loose items before boarding.\n")
	}
	sb.WriteString("\nYour reference code is " + d.RefCode + ".\n\nMahalo, and enjoy the flight!\nMakai Tours")
	return fmt.Sprintf("Confirmed: your helicopter tour %s on %s", d.RefCode, d.PreferredDate), sb.String(), nil
}

func composeFollowUpTimes(d Payload) (string, string, error) {
	var sb strings.Builder
	sb.WriteString(greet(d.CustomerName) + "\n\nGreat news — here are the available tour times for " + d.PreferredDate + ":\n\n")
	for _, slot := range d.Slots {
		fmt.Fprintf(&sb, "  - %s — $%.2f total for %d passengers\n", slot.Label, slot.TotalPrice, d.PartySize)
	}
	sb.WriteString("\nReply with the time you'd like and we'll secure it.\n\nMahalo,\nMakai Tours")
	return fmt.Sprintf("Available tour times for %s (%s)", d.PreferredDate, d.RefCode), sb.String(), nil
}
