package conversation

import (
	"fmt"
	"strings"

	"github.com/muni-info/backend/internal/triage"
)

type msgKey string

const (
	msgStartPrompt        msgKey = "start_prompt"
	msgWelcome            msgKey = "welcome"
	msgMainMenu           msgKey = "main_menu"
	msgFallback           msgKey = "fallback"
	msgInvalidChoice      msgKey = "invalid_choice"
	msgBack               msgKey = "back"
	msgLocationConfirmed  msgKey = "location_confirmed"
	msgYourArea           msgKey = "your_area"
	msgNoLocation         msgKey = "no_location"
	msgDistrictInfo       msgKey = "district_info"
	msgMunicipalityInfo   msgKey = "municipality_info"
	msgUnknown            msgKey = "unknown"
	msgStatusPrompt       msgKey = "status_prompt"
	msgStatusInvalid      msgKey = "status_invalid"
	msgStatusNotFound     msgKey = "status_not_found"
	msgStatusResult       msgKey = "status_result"
	msgCategoryPrompt     msgKey = "category_prompt"
	msgDescriptionPrompt  msgKey = "description_prompt"
	msgDescriptionShort   msgKey = "description_short"
	msgPriorityPrompt     msgKey = "priority_prompt"
	msgConfirmPrompt      msgKey = "confirm_prompt"
	msgSubmitted          msgKey = "submitted"
	msgReceipt            msgKey = "receipt"
	msgCancelled          msgKey = "cancelled"
	msgLanguagePrompt     msgKey = "language_prompt"
	msgLanguageSet        msgKey = "language_set"
	msgEmergencyMenu      msgKey = "emergency_menu"
	msgEmergencyPrompt    msgKey = "emergency_prompt"
	msgInfoMenu           msgKey = "info_menu"
	msgMyComplaintsHeader msgKey = "my_complaints_header"
	msgMyComplaintsNone   msgKey = "my_complaints_none"
	msgGoodbye            msgKey = "goodbye"
	msgGenericError       msgKey = "generic_error"
)

// English is the complete catalog; the other languages translate the
// high-traffic strings and fall back to English for the rest.
var catalogs = map[string]map[msgKey]string{
	"en": {
		msgStartPrompt:        "Welcome to Muni-Info. Reply 'hi' to begin, or share a location pin.",
		msgWelcome:            "Welcome to Muni-Info, your municipal services assistant.",
		msgMainMenu:           "1. My district\n2. My municipality\n3. Check complaint status\n4. Lodge a complaint\n5. Emergency services\n6. My complaints\n7. Change language\n8. About this service\n0. Exit",
		msgFallback:           "Sorry, I didn't understand that.",
		msgInvalidChoice:      "Please reply with one of the numbers shown.",
		msgBack:               "Back",
		msgLocationConfirmed:  "Thanks, I've placed you in %s.",
		msgYourArea:           "your area",
		msgNoLocation:         "I don't have a location for you yet. Share a location pin and I'll look up your area.",
		msgDistrictInfo:       "District: %s\nProvince: %s",
		msgMunicipalityInfo:   "Municipality: %s",
		msgUnknown:            "Unknown",
		msgStatusPrompt:       "Reply with your complaint reference (for example MI-2024-123456).\n0. Back",
		msgStatusInvalid:      "That doesn't look like a reference. It has the form MI-YYYY-NNNNNN.\n0. Back",
		msgStatusNotFound:     "No complaint found for %s.",
		msgStatusResult:       "Complaint %s\nStatus: %s\nCategory: %s\nSubmitted: %s",
		msgCategoryPrompt:     "What is your complaint about?",
		msgDescriptionPrompt:  "Describe your %s issue in a few sentences. Include the street or landmark if you can.",
		msgDescriptionShort:   "Please give a little more detail (at least 10 characters).",
		msgPriorityPrompt:     "How urgent is this?\n1. Urgent\n2. High\n3. Medium\n4. Low",
		msgConfirmPrompt:      "Please confirm your complaint.\nCategory: %s\nPriority: %s\nDescription: %s\n1. Submit\n2. Edit\n0. Cancel",
		msgSubmitted:          "Thank you. Your complaint has been submitted.\nReference: %s\nEstimated response: %s\nKeep the reference to check progress.",
		msgReceipt:            "Complaint %s received. Estimated response: %s.",
		msgCancelled:          "Complaint cancelled.",
		msgLanguagePrompt:     "Choose a language:\n1. English\n2. Afrikaans\n3. isiZulu\n4. isiXhosa\n0. Back",
		msgLanguageSet:        "Language updated.",
		msgEmergencyMenu:      "Emergency numbers:\nPolice: 10111\nAmbulance/Fire: 10177\nAll emergencies (mobile): 112\n\n1. Report an emergency to the municipality\n0. Back",
		msgEmergencyPrompt:    "Describe the emergency and where it is.",
		msgInfoMenu:           "Muni-Info lets you report municipal service problems over chat or USSD. Each complaint gets a reference number, is routed to the right department, and can be tracked at any time by sending the reference.\n0. Back",
		msgMyComplaintsHeader: "Your recent complaints:",
		msgMyComplaintsNone:   "You have no complaints on record.",
		msgGoodbye:            "Goodbye. Message again any time.",
		msgGenericError:       "Something went wrong on our side. Please try again.",
	},
	"af": {
		msgWelcome:       "Welkom by Muni-Info, jou munisipale diensteassistent.",
		msgMainMenu:      "1. My distrik\n2. My munisipaliteit\n3. Klagtestatus\n4. Dien 'n klagte in\n5. Nooddienste\n6. My klagtes\n7. Verander taal\n8. Oor hierdie diens\n0. Sluit af",
		msgFallback:      "Jammer, ek het dit nie verstaan nie.",
		msgInvalidChoice: "Antwoord asseblief met een van die nommers.",
		msgLanguageSet:   "Taal opgedateer.",
		msgGoodbye:       "Totsiens.",
		msgGenericError:  "Iets het skeefgeloop. Probeer asseblief weer.",
	},
	"zu": {
		msgWelcome:       "Siyakwamukela ku-Muni-Info, umsizi wakho wezinsizakalo zikamasipala.",
		msgMainMenu:      "1. Isifunda sami\n2. Umasipala wami\n3. Isimo sesikhalazo\n4. Faka isikhalazo\n5. Izinsiza eziphuthumayo\n6. Izikhalazo zami\n7. Shintsha ulimi\n8. Mayelana nale nsizakalo\n0. Phuma",
		msgFallback:      "Uxolo, angiqondanga.",
		msgInvalidChoice: "Sicela uphendule ngenombolo ekhonjisiwe.",
		msgLanguageSet:   "Ulimi selushintshiwe.",
		msgGoodbye:       "Sala kahle.",
		msgGenericError:  "Kukhona okungahambanga kahle. Sicela uzame futhi.",
	},
	"xh": {
		msgWelcome:       "Wamkelekile ku-Muni-Info, umncedisi wakho weenkonzo zikamasipala.",
		msgMainMenu:      "1. Isithili sam\n2. Umasipala wam\n3. Imeko yesikhalazo\n4. Faka isikhalazo\n5. Iinkonzo zongxamiseko\n6. Izikhalazo zam\n7. Tshintsha ulwimi\n8. Malunga nale nkonzo\n0. Phuma",
		msgFallback:      "Uxolo, andiqondanga.",
		msgInvalidChoice: "Nceda uphendule ngenani elibonisiweyo.",
		msgLanguageSet:   "Ulwimi lutshintshiwe.",
		msgGoodbye:       "Sala kakuhle.",
		msgGenericError:  "Kukho into engahambanga kakuhle. Nceda uzame kwakhona.",
	},
}

func message(lang string, key msgKey, args ...any) string {
	text, ok := catalogs[lang][key]
	if !ok {
		text = catalogs["en"][key]
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

func categoryMenu(lang string) string {
	var b strings.Builder
	b.WriteString(message(lang, msgCategoryPrompt))
	for i, category := range triage.MenuCategories {
		fmt.Fprintf(&b, "\n%d. %s", i+1, category)
	}
	b.WriteString("\n0. " + message(lang, msgBack))
	return b.String()
}

func orUnknown(lang, value string) string {
	if value == "" {
		return message(lang, msgUnknown)
	}
	return value
}
