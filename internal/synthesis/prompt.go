package synthesis

import (
	"fmt"
	"strings"

	"github.com/connectu/connectu/internal/llm"
)

// missingAnswer is substituted for questions the respondent skipped, so the
// model sees every question in form order rather than a gappy list.
const missingAnswer = "No answer provided"

// QA is one question together with the respondent's answer. Answer may be
// empty when the respondent skipped the question.
type QA struct {
	Question string
	Answer   string
}

// Input carries everything the prompt needs about one respondent.
type Input struct {
	FormTitle       string
	FormDescription string
	RespondentName  string
	Items           []QA
}

// BuildPrompt assembles the chat messages for one profile summary. The word
// band keeps summaries comparable across respondents so embeddings of
// different people occupy similar amounts of text.
func BuildPrompt(in Input, minWords, maxWords int) []llm.Message {
	system := fmt.Sprintf(
		"You are an assistant that creates concise, objective summaries of people "+
			"based on their answers to questionnaires. Focus on their personality, "+
			"interests, values, and communication style. Be factual, avoiding "+
			"subjective judgments. Write in the third person and keep the summary "+
			"between %d and %d words. Do not list the answers verbatim.",
		minWords, maxWords,
	)

	name := strings.TrimSpace(in.RespondentName)
	if name == "" {
		name = "a person"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a summary of %s based on their questionnaire answers.\n\n", name)
	fmt.Fprintf(&sb, "Questionnaire: %s\n", in.FormTitle)
	if in.FormDescription != "" {
		fmt.Fprintf(&sb, "Description: %s\n", in.FormDescription)
	}
	sb.WriteString("\n")

	for _, item := range in.Items {
		answer := item.Answer
		if strings.TrimSpace(answer) == "" {
			answer = missingAnswer
		}
		fmt.Fprintf(&sb, "Question: %s\nAnswer: %s\n\n", item.Question, answer)
	}

	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: strings.TrimRight(sb.String(), "\n")},
	}
}
