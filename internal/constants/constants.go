package constants

import "time"

// Webhook
const (
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
	WebhookPath       = "/webhook"
)

// Backend item types as reported by the undone list
const (
	ItemTypeSurvey     = 2
	ItemTypeAssignment = 3
	ItemTypeQuiz       = 4
)

// DeadlineLayout is the format of endTime / assignmentEndTime on the backend.
const DeadlineLayout = "2006-01-02 15:04:05"

// DeadlineZone is the fixed offset deadlines are expressed in.
var DeadlineZone = time.FixedZone("UTC+8", 8*60*60)

// Submission workflow
const (
	AttachmentButtonsPerRow = 5
	MaxSessionWriteAttempts = 5
)

// Escalation thresholds
const (
	HourTierThreshold = time.Hour
	DayTierThreshold  = 24 * time.Hour
)
