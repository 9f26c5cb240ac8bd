package quizzes

import "github.com/aura-learn/quiz-backend/internal/models"

// QuizSummary is a quiz with its question totals.
type QuizSummary struct {
	models.Quiz
	QuestionCount int     `json:"question_count"`
	TotalPoints   float64 `json:"total_points"`
}

// QuizDetail is the author's full definition of a quiz, answer keys included.
type QuizDetail struct {
	QuizSummary
	Questions []QuestionView `json:"questions"`
}

// QuestionView is the author's view of a question.
type QuestionView struct {
	ID            int64               `json:"id"`
	QuizID        int64               `json:"quiz_id"`
	Type          models.QuestionType `json:"question_type"`
	Text          string              `json:"question_text"`
	Points        float64             `json:"points"`
	OrderIndex    int                 `json:"order_index"`
	CorrectAnswer string              `json:"correct_answer"`
	Options       []models.Option     `json:"options,omitempty"`
}

// AuthorQuestion projects a question with its answer key.
func AuthorQuestion(q models.Question) QuestionView {
	return QuestionView{
		ID:            q.ID,
		QuizID:        q.QuizID,
		Type:          q.Type(),
		Text:          q.Text,
		Points:        q.Points,
		OrderIndex:    q.OrderIndex,
		CorrectAnswer: q.CorrectAnswer(),
		Options:       q.Options(),
	}
}

// LearnerOption is an option without its correctness flag.
type LearnerOption struct {
	ID         int64  `json:"id"`
	Text       string `json:"option_text"`
	OrderIndex int    `json:"order_index"`
}

// LearnerQuestion is a question as shown to a student taking the quiz.
type LearnerQuestion struct {
	ID         int64               `json:"id"`
	Type       models.QuestionType `json:"question_type"`
	Text       string              `json:"question_text"`
	Points     float64             `json:"points"`
	OrderIndex int                 `json:"order_index"`
	Options    []LearnerOption     `json:"options,omitempty"`
}

// QuestionsForAttempt strips answer keys from questions.
func QuestionsForAttempt(questions []models.Question) []LearnerQuestion {
	out := make([]LearnerQuestion, 0, len(questions))
	for _, q := range questions {
		lq := LearnerQuestion{
			ID:         q.ID,
			Type:       q.Type(),
			Text:       q.Text,
			Points:     q.Points,
			OrderIndex: q.OrderIndex,
		}
		for _, o := range q.Options() {
			lq.Options = append(lq.Options, LearnerOption{ID: o.ID, Text: o.Text, OrderIndex: o.OrderIndex})
		}
		out = append(out, lq)
	}
	return out
}

func summarize(q models.Quiz, questions []models.Question) QuizSummary {
	count, points := models.QuizTotals(questions)
	return QuizSummary{Quiz: q, QuestionCount: count, TotalPoints: points}
}
