package narration

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forPelevin/adscribe/internal/domain/timecode"
	"github.com/forPelevin/adscribe/internal/types"
)

// Metadata is the caller-supplied context about the video.
type Metadata struct {
	Title   string
	Context string
	Style   string
}

// Request is everything one rewrite call needs.
type Request struct {
	Index               int
	Description         string
	WordBudget          int
	PreviousDescription string
	Meta                Metadata
	// Scenes is the full scene list, used as context by SceneListPrompt.
	Scenes []types.RawSegment
}

type PromptBuilder interface {
	Build(req Request) (system, user string, err error)
}

// SceneListPrompt lists every scene with its time range and asks for a rewrite of
// the interval's descriptions within the word budget.
type SceneListPrompt struct{}

func (SceneListPrompt) Build(req Request) (string, string, error) {
	const system = "You are an expert at generating AudioDescription."

	var b strings.Builder
	b.WriteString("**Title:** " + req.Meta.Title)
	if req.Meta.Context != "" {
		b.WriteString("\n**Metadata:** " + req.Meta.Context)
	}
	if req.Meta.Style != "" {
		b.WriteString("\n**Writing style:** " + req.Meta.Style)
	}
	b.WriteString("\n**All scene descriptions:**")
	for _, sc := range req.Scenes {
		fmt.Fprintf(&b, "\n - %s -> %s: %s", timecode.FromDuration(sc.Span.Start), timecode.FromDuration(sc.Span.End), sc.Text)
	}
	b.WriteString("\n**Instructions:** You are given several descriptions with timestamps, title and metadata about a video. " +
		"You should use that as context. Remember that information in metadata is more reliable. " +
		"So, in case of any conflict, use the metadata information. " +
		"Now, you are given a collection of descriptions. Your task is to describe it in a way that it fits in the silent part of the video. " +
		"To do this you are also given the number of words you can use. You must not use more than that. " +
		"The goal is to convey the story. You must not mention unnecessary details. You must not mention that faces are blurred. " +
		"You will find character names and more information in the title and metadata.")
	b.WriteString("\n**Note:** You must not go over the specified word limit. " +
		"You must use the title and metadata to provide missing information and to bring clarity.")
	if req.PreviousDescription != "" {
		b.WriteString("\nYou must not repeat this information - " + req.PreviousDescription)
	}
	fmt.Fprintf(&b, "\n**Task**: Describe the following in %d words: %s", req.WordBudget, req.Description)
	return system, b.String(), nil
}

// JSONPrompt sends the request as a JSON document with a fixed rewrite instruction.
type JSONPrompt struct{}

type jsonPromptBody struct {
	Metadata struct {
		Title        string `json:"title"`
		Context      string `json:"context"`
		WritingStyle string `json:"writingStyle"`
	} `json:"metadata"`
	Description         string `json:"description"`
	PreviousDescription string `json:"previousDescription"`
	MaxWords            int    `json:"maxWords"`
}

func (JSONPrompt) Build(req Request) (string, string, error) {
	const system = "Rewrite each *description* in no more than *maxWords*. Prefer clarity over length. " +
		"Do not explain what things mean. Use *metadata* to improve the *description*. " +
		"Do not repeat information in *previousDescription*. Output only the rewritten *description*."

	var body jsonPromptBody
	body.Metadata.Title = req.Meta.Title
	body.Metadata.Context = req.Meta.Context
	body.Metadata.WritingStyle = req.Meta.Style
	body.Description = req.Description
	body.PreviousDescription = req.PreviousDescription
	body.MaxWords = req.WordBudget

	b, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("marshal prompt: %w", err)
	}
	return system, string(b), nil
}
