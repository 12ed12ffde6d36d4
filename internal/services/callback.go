package services

import (
	"strconv"
	"strings"
)

// CallbackKind identifies what a button press asks for.
type CallbackKind int

const (
	// CallbackUnknown is anything we cannot parse; it is acknowledged and ignored.
	CallbackUnknown CallbackKind = iota
	// CallbackNoop is an informational button ("0").
	CallbackNoop
	// CallbackSubmitting is the disabled placeholder shown while a session is open ("-1").
	CallbackSubmitting
	// CallbackEnterSubmission starts a session for an assignment ("s<id>").
	CallbackEnterSubmission
	// CallbackFinalize submits the open session ("es").
	CallbackFinalize
	// CallbackCancel discards the open session ("ec").
	CallbackCancel
	// CallbackViewItem shows a quiz or survey card ("us.<type>.<id>").
	CallbackViewItem
	// CallbackClearAttachments removes every attachment ("rmfile").
	CallbackClearAttachments
	// CallbackRemoveAttachment removes one attachment by position ("rmfile.<index>").
	CallbackRemoveAttachment
	// CallbackViewAssignment shows an assignment card ("<id>").
	CallbackViewAssignment
)

const (
	dataNoop       = "0"
	dataSubmitting = "-1"
	dataFinalize   = "es"
	dataCancel     = "ec"
	dataClearFiles = "rmfile"

	prefixEnter      = "s"
	prefixViewItem   = "us."
	prefixRemoveFile = "rmfile."
)

// Callback is button data parsed once at the edge.
type Callback struct {
	Kind         CallbackKind
	AssignmentID string
	ItemType     int
	Index        int
}

// ParseCallback decodes button data. Malformed data yields CallbackUnknown.
func ParseCallback(data string) Callback {
	switch data {
	case "":
		return Callback{Kind: CallbackUnknown}
	case dataNoop:
		return Callback{Kind: CallbackNoop}
	case dataSubmitting:
		return Callback{Kind: CallbackSubmitting}
	case dataFinalize:
		return Callback{Kind: CallbackFinalize}
	case dataCancel:
		return Callback{Kind: CallbackCancel}
	case dataClearFiles:
		return Callback{Kind: CallbackClearAttachments}
	}

	switch {
	case strings.HasPrefix(data, prefixRemoveFile):
		index, err := strconv.Atoi(strings.TrimPrefix(data, prefixRemoveFile))
		if err != nil || index < 0 {
			return Callback{Kind: CallbackUnknown}
		}
		return Callback{Kind: CallbackRemoveAttachment, Index: index}

	case strings.HasPrefix(data, prefixViewItem):
		parts := strings.SplitN(strings.TrimPrefix(data, prefixViewItem), ".", 2)
		if len(parts) != 2 || !isIdentifier(parts[1]) {
			return Callback{Kind: CallbackUnknown}
		}
		itemType, err := strconv.Atoi(parts[0])
		if err != nil {
			return Callback{Kind: CallbackUnknown}
		}
		return Callback{Kind: CallbackViewItem, ItemType: itemType, AssignmentID: parts[1]}

	case strings.HasPrefix(data, prefixEnter):
		id := strings.TrimPrefix(data, prefixEnter)
		if !isIdentifier(id) {
			return Callback{Kind: CallbackUnknown}
		}
		return Callback{Kind: CallbackEnterSubmission, AssignmentID: id}

	case isIdentifier(data):
		return Callback{Kind: CallbackViewAssignment, AssignmentID: data}
	}

	return Callback{Kind: CallbackUnknown}
}

// isIdentifier accepts backend ids: non-empty, letters, digits, '-' and '_'.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func enterData(assignmentID string) string {
	return prefixEnter + assignmentID
}

func viewItemData(itemType int, id string) string {
	return prefixViewItem + strconv.Itoa(itemType) + "." + id
}

func removeFileData(index int) string {
	return prefixRemoveFile + strconv.Itoa(index)
}
