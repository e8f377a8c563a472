package thesis

import (
	"fmt"
)

// DefaultSystemPrompt is sent as the system message when config does not override it.
const DefaultSystemPrompt = "You are a financial analyst assistant."

const responseSchema = `{
  "ticker": [...],
  "sentiment": "bullish/bearish/neutral",
  "reason": ["...", "..."]
}`

// BuildPrompt asks the model for a single JSON object describing the post.
// The post is embedded verbatim inside a triple-quoted block.
func BuildPrompt(postText string) string {
	return fmt.Sprintf(`You are a financial analyst AI. Read the Reddit post below and extract a JSON object with:
- A list of stock tickers mentioned (e.g., ["TSLA", "NVDA"])
- A sentiment (bullish, bearish, neutral)
- A few short reasons explaining the sentiment

Reddit Post:
"""%s"""

Respond ONLY with valid JSON in this format:
%s`, postText, responseSchema)
}
