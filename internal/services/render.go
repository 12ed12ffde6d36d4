package services

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/YouXam/ucloud-bot/internal/constants"
	"github.com/YouXam/ucloud-bot/internal/dto"
	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/YouXam/ucloud-bot/internal/utils"
)

// Card is a rendered message: images go out first as a media group.
type Card struct {
	Text     string
	Images   []string
	Keyboard models.Keyboard
}

type workflowState int

const (
	stateCollecting workflowState = iota
	stateSubmitting
	stateSubmitted
	stateCancelled
)

var workflowHeaders = map[workflowState]string{
	stateCollecting: "📝 Submission in progress",
	stateSubmitting: "⏳ Submitting…",
	stateSubmitted:  "✅ Submitted",
	stateCancelled:  "❌ Submission cancelled",
}

var tierHeaders = map[models.Tier]string{
	models.TierNew:  "🆕 New",
	models.TierDay:  "⏰ Due within 24 hours",
	models.TierHour: "🔥 Due within 1 hour",
}

const (
	labelSubmit      = "📤 Submit"
	labelSubmitAgain = "📤 Submit again"
	labelSubmitting  = "⏳ Submitting…"
)

// renderWorkflow draws the workflow message. Only collecting and submitting
// sessions get buttons.
func renderWorkflow(sub *models.Submission, state workflowState) (string, models.Keyboard) {
	var b strings.Builder

	title := sub.Detail.Title
	if title == "" {
		title = sub.AssignmentID
	}
	fmt.Fprintf(&b, "<b>%s</b>\n", workflowHeaders[state])
	fmt.Fprintf(&b, "<b>Assignment</b>: %s\n", html.EscapeString(title))
	if sub.Detail.Course != "" {
		fmt.Fprintf(&b, "<b>Course</b>: %s\n", html.EscapeString(sub.Detail.Course))
	}
	if sub.Detail.EndTime != "" {
		fmt.Fprintf(&b, "<b>Deadline</b>: %s\n", html.EscapeString(sub.Detail.EndTime))
	}

	if !sub.HasPayload() && state == stateCollecting {
		b.WriteString("\nSend text or files to add them to this submission.")
	}
	if sub.Content != "" {
		fmt.Fprintf(&b, "\n<b>Content</b>\n%s\n", html.EscapeString(sub.Content))
	}
	if len(sub.Attachments) > 0 {
		b.WriteString("\n<b>Attachments</b>\n")
		for i, att := range sub.Attachments {
			name := html.EscapeString(att.Filename)
			switch {
			case att.Uploading:
				fmt.Fprintf(&b, "%d. %s (uploading…)\n", i+1, name)
			case att.URL != "":
				fmt.Fprintf(&b, "%d. <a href=\"%s\">%s</a>\n", i+1, html.EscapeString(att.URL), name)
			default:
				fmt.Fprintf(&b, "%d. %s\n", i+1, name)
			}
		}
	}

	text := strings.TrimSpace(b.String())

	switch state {
	case stateCollecting:
		return text, workflowKeyboard(sub.Attachments)
	case stateSubmitting:
		return text, workflowKeyboard(sub.Attachments).ReplaceWhere(
			func(btn models.Button) bool { return btn.CallbackData == dataFinalize },
			func(models.Button) models.Button { return models.DataButton(labelSubmitting, dataSubmitting) },
		)
	default:
		return text, models.Keyboard{}
	}
}

func workflowKeyboard(atts models.Attachments) models.Keyboard {
	kb := models.Keyboard{}

	var row []models.Button
	for i := range atts {
		row = append(row, models.DataButton(fmt.Sprintf("🗑 %d", i+1), removeFileData(i)))
		if len(row) == constants.AttachmentButtonsPerRow {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	if len(atts) > 1 {
		kb = append(kb, []models.Button{models.DataButton("🗑 Remove all", dataClearFiles)})
	}

	return append(kb, []models.Button{
		models.DataButton("❌ Cancel", dataCancel),
		models.DataButton("✅ Submit", dataFinalize),
	})
}

// cardWhileSubmitting disables the card's submit button while a session is open.
func cardWhileSubmitting(card models.Keyboard, assignmentID string) models.Keyboard {
	return card.ReplaceWhere(
		func(btn models.Button) bool { return btn.CallbackData == enterData(assignmentID) },
		func(models.Button) models.Button { return models.DataButton(labelSubmitting, dataSubmitting) },
	)
}

// cardAfterSubmit offers the card's submit button again after a successful submit.
func cardAfterSubmit(card models.Keyboard, assignmentID string) models.Keyboard {
	return card.ReplaceWhere(
		func(btn models.Button) bool { return btn.CallbackData == enterData(assignmentID) },
		func(models.Button) models.Button { return models.DataButton(labelSubmitAgain, enterData(assignmentID)) },
	)
}

// renderAssignmentCard draws an assignment detail card. header is optional.
func renderAssignmentCard(assignmentID string, detail *dto.Detail, fileBaseURL, header string) Card {
	content, images := utils.FilterHTML(detail.AssignmentContent)

	chapter := detail.ChapterName
	if chapter == "" {
		chapter = "-"
	}

	var b strings.Builder
	if header != "" {
		fmt.Fprintf(&b, "<b>%s</b>\n", header)
	}
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(detail.AssignmentTitle))
	fmt.Fprintf(&b, "<b>Course</b>: %s\n", html.EscapeString(detail.CourseLabel()))
	fmt.Fprintf(&b, "<b>Chapter</b>: %s\n", html.EscapeString(chapter))
	fmt.Fprintf(&b, "<b>Start</b>: %s\n", html.EscapeString(detail.AssignmentBeginTime))
	fmt.Fprintf(&b, "<b>Deadline</b>: %s\n", html.EscapeString(detail.AssignmentEndTime))
	if content != "" {
		b.WriteString("\n" + content)
	}

	kb := models.Keyboard{}
	for _, res := range detail.Resource {
		kb = append(kb, []models.Button{
			models.URLButton(res.Name, fmt.Sprintf("%s/%s.%s", fileBaseURL, res.StorageID, res.Ext)),
		})
	}
	kb = append(kb, []models.Button{models.DataButton(labelSubmit, enterData(assignmentID))})

	return Card{
		Text:     strings.TrimSpace(b.String()),
		Images:   images,
		Keyboard: kb,
	}
}

// renderItemNotice draws the short card for quizzes, surveys and other items
// the detail endpoint does not serve.
func renderItemNotice(item *dto.UndoneItem, header string) Card {
	var b strings.Builder
	if header != "" {
		fmt.Fprintf(&b, "<b>%s</b>\n", header)
	}
	fmt.Fprintf(&b, "<b>[%s] %s</b>\n", item.TypeName(), html.EscapeString(item.ActivityName))
	if course := item.CourseInfo.Label(); course != "" {
		fmt.Fprintf(&b, "<b>Course</b>: %s\n", html.EscapeString(course))
	} else if item.SiteName != "" {
		fmt.Fprintf(&b, "<b>Course</b>: %s\n", html.EscapeString(item.SiteName))
	}
	fmt.Fprintf(&b, "<b>Deadline</b>: %s\n", html.EscapeString(item.EndTime))
	b.WriteString("\nOpen the portal to complete it.")

	return Card{Text: strings.TrimSpace(b.String()), Keyboard: models.Keyboard{}}
}

// renderUndoneList groups outstanding items by course in first-seen order.
func renderUndoneList(list *dto.UndoneList) (string, models.Keyboard) {
	if len(list.UndoneList) == 0 {
		return "Nothing outstanding.", models.Keyboard{}
	}

	var order []int
	groups := map[int][]dto.UndoneItem{}
	for _, item := range list.UndoneList {
		id := item.CourseInfo.ID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], item)
	}

	kb := models.Keyboard{}
	for _, id := range order {
		items := groups[id]
		course := items[0].CourseInfo
		name := course.Name
		if name == "" {
			name = items[0].SiteName
		}
		header := []models.Button{models.DataButton(name, dataNoop)}
		if course.Teachers != "" {
			header = append(header, models.DataButton(course.Teachers, dataNoop))
		}
		kb = append(kb, header)

		for _, item := range items {
			if item.IsAssignment() {
				kb = append(kb, []models.Button{models.DataButton("📚 "+item.ActivityName, item.ActivityID)})
				continue
			}
			kb = append(kb, []models.Button{models.DataButton(
				fmt.Sprintf("📋 [%s] %s", item.TypeName(), item.ActivityName),
				viewItemData(item.Type, item.ActivityID),
			)})
		}
	}

	return fmt.Sprintf("You have %d outstanding items:", len(list.UndoneList)), kb
}
