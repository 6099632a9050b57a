package genai

import (
	"strings"

	"github.com/okian/callgen/internal/domain/model"
)

const (
	wireUser  = "user"
	wireModel = "model"

	seedText = "Begin the conversation."
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

// wireRole collapses local roles onto the two roles the service accepts.
func wireRole(r model.ChatRole) string {
	if r == model.RoleAssistant {
		return wireModel
	}
	return wireUser
}

// buildRequest translates a prompt. System text (including system entries in
// the history) goes to the instruction; empty messages are dropped; adjacent
// messages with the same wire role are merged.
func buildRequest(p model.Prompt, gen model.Generation) generateRequest {
	var system []part
	if s := strings.TrimSpace(p.System); s != "" {
		system = append(system, part{Text: s})
	}

	var contents []content
	add := func(role, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, part{Text: text})
			return
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: text}}})
	}

	for _, m := range p.History {
		if m.Role == model.RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				system = append(system, part{Text: s})
			}
			continue
		}
		add(wireRole(m.Role), m.Content)
	}
	add(wireUser, p.Next)

	if len(contents) == 0 {
		contents = []content{{Role: wireUser, Parts: []part{{Text: seedText}}}}
	}

	req := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     gen.Temperature,
			MaxOutputTokens: gen.MaxTokens,
			TopP:            gen.TopP,
			TopK:            gen.TopK,
		},
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: system}
	}
	return req
}

// mergeGeneration overlays the non-zero fields of override on base.
func mergeGeneration(base model.Generation, override *model.Generation) model.Generation {
	if override == nil {
		return base
	}
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.TopP > 0 {
		base.TopP = override.TopP
	}
	if override.TopK > 0 {
		base.TopK = override.TopK
	}
	return base
}

var newlines = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// text joins the first candidate's parts into a single line.
func (r generateResponse) text() (string, bool) {
	if len(r.Candidates) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	out := strings.TrimSpace(newlines.Replace(b.String()))
	return out, out != ""
}
