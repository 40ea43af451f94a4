package questionnaire

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/sharath018/health-management-backend/internal/access"
)

type Category string

const (
	CategoryInitial Category = "initial"
	CategoryDiet    Category = "diet"
	CategoryGeneral Category = "general"
)

func (c Category) Valid() bool {
	return c == CategoryInitial || c == CategoryDiet || c == CategoryGeneral
}

type QuestionType string

const (
	TypeRadio       QuestionType = "radio"
	TypeCheckbox    QuestionType = "checkbox"
	TypeDescription QuestionType = "description"
)

func (t QuestionType) Valid() bool {
	return t == TypeRadio || t == TypeCheckbox || t == TypeDescription
}

type Question struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Text        string       `gorm:"type:text;not null" json:"text"`
	Category    Category     `gorm:"size:20;not null;index" json:"category"`
	Type        QuestionType `gorm:"size:20;not null" json:"type"`
	Placeholder *string      `gorm:"size:255" json:"placeholder,omitempty"`
	MaxLength   *int         `json:"max_length,omitempty"`
	SortOrder   int          `gorm:"not null;default:0" json:"order"`
	Options     []Option     `gorm:"constraint:OnDelete:CASCADE" json:"options"`

	access.AuditFields
}

// MarshalJSON hides description-only metadata on other question types,
// whatever is stored.
func (q Question) MarshalJSON() ([]byte, error) {
	type plain Question
	out := plain(q)
	if q.Type != TypeDescription {
		out.Placeholder = nil
		out.MaxLength = nil
	}
	if out.Options == nil {
		out.Options = []Option{}
	}
	return json.Marshal(out)
}

type Option struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	Value      string `gorm:"size:255;not null" json:"value"`
}

// PatientResponse stores either a matched option or free text.
type PatientResponse struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	UserID     uint    `gorm:"not null;index:idx_response_user_question" json:"user_id"`
	QuestionID uint    `gorm:"not null;index:idx_response_user_question" json:"question_id"`
	OptionID   *uint   `gorm:"index" json:"option_id,omitempty"`
	Option     *Option `gorm:"constraint:OnDelete:SET NULL" json:"option,omitempty"`
	Response   string  `gorm:"type:text" json:"response,omitempty"`

	access.AuditFields
}

// PatientDietQuestion is the single diet record per patient.
type PatientDietQuestion struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;uniqueIndex" json:"user_id"`
	MealData       datatypes.JSON `gorm:"type:jsonb" json:"meal_data"`
	LastDietUpdate time.Time      `gorm:"not null" json:"last_diet_update"`

	access.AuditFields
}

// ===============================
// Inputs and views
// ===============================

type QuestionInput struct {
	Text        string   `json:"text"`
	Category    Category `json:"category"`
	Type        string   `json:"type"`
	Placeholder *string  `json:"placeholder"`
	MaxLength   *int     `json:"max_length"`
	Order       *int     `json:"order"`
	Options     []string `json:"options"`
}

// QuestionPatch is the PATCH body; only set fields change.
type QuestionPatch struct {
	Text        *string   `json:"text"`
	Category    *Category `json:"category"`
	Type        *string   `json:"type"`
	Placeholder *string   `json:"placeholder"`
	MaxLength   *int      `json:"max_length"`
	Order       *int      `json:"order"`
	Options     *[]string `json:"options"`
}

// AnswerValues accepts a scalar or a list in JSON.
type AnswerValues []string

func (a *AnswerValues) UnmarshalJSON(b []byte) error {
	var list []interface{}
	if err := json.Unmarshal(b, &list); err == nil {
		out := make(AnswerValues, 0, len(list))
		for _, v := range list {
			out = append(out, scalarString(v))
		}
		*a = out
		return nil
	}
	var single interface{}
	if err := json.Unmarshal(b, &single); err != nil {
		return err
	}
	if single == nil {
		*a = AnswerValues{}
		return nil
	}
	*a = AnswerValues{scalarString(single)}
	return nil
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		b, _ := json.Marshal(t)
		return string(b)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

type AnswerItem struct {
	QuestionID uint         `json:"question" binding:"required"`
	Answer     AnswerValues `json:"answer"`
}

type BulkResult struct {
	Message                  string `json:"message"`
	Saved                    int    `json:"saved"`
	InitialQuestionCompleted bool   `json:"initial_question_completed"`
}

type QuestionList struct {
	Questions []Question `json:"questions"`
	Message   string     `json:"message,omitempty"`
}

type DietSubmission struct {
	Answers  []AnswerItem           `json:"answers"`
	MealData map[string]interface{} `json:"meal_data"`
}

type DietQuestionnaireView struct {
	Stage          Stage          `json:"stage"`
	Questions      []Question     `json:"questions"`
	Message        string         `json:"message,omitempty"`
	LastAnswers    datatypes.JSON `json:"last_answers,omitempty"`
	LastDietUpdate *time.Time     `json:"last_diet_update,omitempty"`
	NextDueDate    *string        `json:"next_due_date,omitempty"`
}
