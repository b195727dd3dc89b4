package eval

import (
	"strings"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/types"
)

// checkSystemPrompt instructs the judge model to produce one of the fixed
// verdict phrasings the binary scorer matches on.
const checkSystemPrompt = `You are a helpful AI assistant. You will use your coding and language skills to verify the answer.
You are given:
    1. A problem.
    2. A reply with the answer to the problem.
    3. A ground truth answer.
Please do the following:
1. Extract the answer in the reply: "The answer is <answer extracted>".
2. Check whether the answer in the reply matches the ground truth answer. When comparison is not obvious (for example, 3*\sqrt(6) and 7.348), you may write code to check the answer and wait for the user to execute the code.
3. After everything is done, please choose a reply from the following options:
    - "The answer is correct."
    - "The answer is approximated but should be correct. Correct Answer: <ground truth answer> | Answer extracted: <answer extracted>."
    - "The answer is incorrect. Correct Answer: <ground truth answer> | Answer extracted: <answer extracted>."
    - "The reply doesn't contain an answer."`

// ratingSystemPrompt instructs the judge model to emit "Rating: X" on a
// 1-5 rubric, which the rating extractor parses.
const ratingSystemPrompt = `You are a helpful AI assistant. Your task is to evaluate the quality of a given answer by comparing it with the ground truth with it explanation.
You are provided with:
    1. A problem statement.
    2. A reply containing the answer to the problem.
    3. The ground truth answer.
    4. The ground truth explanation.
Please perform the following steps:
1. Extract the answer from the reply.
2. Compare the extracted answer with the ground truth answer.
3. Evaluate the quality of the reply based on its correctness and completeness and consider the ground truth explanation.
4. Assign a rating from 1 to 5 based on the following criteria:
    - **Rating 5:** The reply is almost identical to the ground truth. The answer is complete, accurate, and uses nearly the same formulation.
    - **Rating 4:** The reply is mostly correct, with only minor errors or omissions that do not impact the overall correctness.
    - **Rating 3:** The reply is partially correct. It demonstrates some understanding but includes noticeable errors or missing key details.
    - **Rating 2:** The reply is largely incorrect or incomplete, showing significant misunderstandings of the problem.
    - **Rating 1:** The reply is completely off; it does not address the problem or is entirely incorrect.
5. Output your evaluation in the exact format: "Rating: X. Explanation: <your explanation>."
Ensure that your explanation clearly justifies the assigned rating.`

// buildUserPrompt assembles the grading prompt for a record. Choice lists
// are appended to the problem for choice questions, and the ground-truth
// explanation is included for rating-protocol records.
func buildUserPrompt(rec types.BatchRecord, proto Protocol) string {
	question := rec.Question
	tag := rec.TypeTag()
	if (tag == types.TypeSingleChoice || tag == types.TypeMultiChoice) && len(rec.Choices) > 0 {
		question += "\nOptions:\n" + strings.Join(rec.Choices, "\n")
	}

	var b strings.Builder
	b.WriteString("Problem: ")
	b.WriteString(question)
	b.WriteString("\n\nReply: ")
	b.WriteString(rec.LLMAnswer)
	b.WriteString("\n\nGround truth answer: ")
	b.WriteString(rec.Answer)
	if proto == ProtocolRating {
		b.WriteString("\n\nGround truth explanation: ")
		b.WriteString(rec.Explanation)
	}
	return b.String()
}
