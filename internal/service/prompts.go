package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

const retrievedContextSeparator = "\n\n--- Retrieved Context ---\n"

const optionsSchema = `{
  "type": "object",
  "properties": {
    "options": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "label": {"type": "string"},
          "severity": {"type": "string", "enum": ["light", "medium", "bold"]},
          "before": {"type": "string"},
          "after": {"type": "string"}
        },
        "required": ["label", "severity", "before", "after"]
      }
    }
  },
  "required": ["options"]
}`

func buildSystemPrompt(numOptions int) string {
	return fmt.Sprintf(`You are a developmental editor. You will produce multiple edited variations of the selected passage while preserving author voice and global style constraints.

Rules:
- Output JSON only, matching the provided schema.
- Generate exactly %d options with severities: light, medium, bold.
- Maintain coherence with the provided CONTEXT.
- Do not change named entities, facts, or chronology.
- Improve clarity, flow, and concision as instructed.
- Keep the same POV and tense unless explicitly asked to change.
- Keep edits self-contained to the target range.
- Light edits: minor word choice, sentence structure improvements
- Medium edits: paragraph restructuring, moderate content changes
- Bold edits: significant rewriting while preserving core meaning`, numOptions)
}

type userPromptInput struct {
	Instruction string
	TargetText  string
	Context     string
	StylePrefs  map[string]string
	Start       int
	End         int
}

func buildUserPrompt(in userPromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSTRUCTION: %s\n", in.Instruction)
	fmt.Fprintf(&b, "TARGET_RANGE: %d-%d\n", in.Start, in.End)
	b.WriteString("TARGET_TEXT:\n\"\"\"\n")
	b.WriteString(in.TargetText)
	b.WriteString("\n\"\"\"\n")
	b.WriteString("CONTEXT (neighboring paragraphs & retrieved chunks):\n\"\"\"\n")
	b.WriteString(in.Context)
	b.WriteString("\n\"\"\"\n")
	b.WriteString("STYLE_PREFS:\n")
	b.WriteString(formatStylePrefs(in.StylePrefs))
	b.WriteString("\nSCHEMA:\n")
	b.WriteString(optionsSchema)
	return b.String()
}

// formatStylePrefs renders prefs as indented JSON; keys come out sorted.
func formatStylePrefs(prefs map[string]string) string {
	if len(prefs) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// buildContext joins the local window with retrieved chunk texts.
func buildContext(local string, retrieved []string) string {
	if len(retrieved) == 0 {
		return local
	}
	return local + retrievedContextSeparator + strings.Join(retrieved, "\n\n")
}

// localWindow returns content[start-radius : end+radius] clamped to bounds.
func localWindow(content []rune, start, end, radius int) string {
	from := max(0, start-radius)
	to := min(len(content), end+radius)
	return string(content[from:to])
}
