package dto

import "github.com/YouXam/ucloud-bot/internal/constants"

// CourseInfo identifies the course an item belongs to
type CourseInfo struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Teachers string `json:"teachers"`
}

// Label renders "#name(teachers)" or "" when either part is missing
func (c CourseInfo) Label() string {
	if c.Name == "" || c.Teachers == "" {
		return ""
	}
	return "#" + c.Name + "(" + c.Teachers + ")"
}

// UndoneItem is one outstanding activity in the undone list
type UndoneItem struct {
	SiteID           int        `json:"siteId"`
	SiteName         string     `json:"siteName"`
	ActivityName     string     `json:"activityName"`
	ActivityID       string     `json:"activityId"`
	Type             int        `json:"type"`
	EndTime          string     `json:"endTime"`
	AssignmentType   int        `json:"assignmentType"`
	EvaluationStatus int        `json:"evaluationStatus"`
	IsOpenEvaluation int        `json:"isOpenEvaluation"`
	CourseInfo       CourseInfo `json:"courseInfo"`
}

// IsAssignment reports whether the detail endpoint can serve this item
func (i UndoneItem) IsAssignment() bool {
	return i.Type == constants.ItemTypeAssignment
}

// TypeName is a human label for the item type
func (i UndoneItem) TypeName() string {
	return ItemTypeName(i.Type)
}

func ItemTypeName(itemType int) string {
	switch itemType {
	case constants.ItemTypeSurvey:
		return "Survey"
	case constants.ItemTypeAssignment:
		return "Assignment"
	case constants.ItemTypeQuiz:
		return "Quiz"
	default:
		return "Activity"
	}
}

// UndoneList is the GET /undoneList response
type UndoneList struct {
	SiteNum    int          `json:"siteNum"`
	UndoneNum  int          `json:"undoneNum"`
	UndoneList []UndoneItem `json:"undoneList"`
}

// ResourceDetail is a file attached to an assignment by the teacher
type ResourceDetail struct {
	StorageID string `json:"storageId"`
	Name      string `json:"name"`
	Ext       string `json:"ext"`
	URL       string `json:"url"`
	ID        string `json:"id"`
}

// Detail is the GET /homework response
type Detail struct {
	ID                  string           `json:"id"`
	AssignmentTitle     string           `json:"assignmentTitle"`
	AssignmentContent   string           `json:"assignmentContent"`
	AssignmentComment   string           `json:"assignmentComment"`
	ClassName           string           `json:"className"`
	ChapterName         string           `json:"chapterName"`
	AssignmentType      int              `json:"assignmentType"`
	AssignmentBeginTime string           `json:"assignmentBeginTime"`
	AssignmentEndTime   string           `json:"assignmentEndTime"`
	IsOvertimeCommit    int              `json:"isOvertimeCommit"`
	AssignmentStatus    int              `json:"assignmentStatus"`
	Status              int              `json:"status"`
	AssignmentScore     float64          `json:"assignmentScore"`
	CourseInfo          *CourseInfo      `json:"courseInfo,omitempty"`
	Resource            []ResourceDetail `json:"resource,omitempty"`
}

// CourseLabel renders "#name(teachers)" or "" when unknown
func (d Detail) CourseLabel() string {
	if d.CourseInfo == nil {
		return ""
	}
	return d.CourseInfo.Label()
}

// UploadRequest is the POST /upload body. URL is a temporary chat platform file URL.
type UploadRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

// UploadResult is the POST /upload response
type UploadResult struct {
	ResourceID string `json:"resourceId"`
	PreviewURL string `json:"previewUrl"`
}

// SubmitRequest is the POST /submit body
type SubmitRequest struct {
	AssignmentID      string   `json:"assignmentId"`
	AssignmentContent string   `json:"assignmentContent"`
	AttachmentIDs     []string `json:"attachmentIds"`
}
