// Package persona renders the role prompts for the two callers and the arbiter.
package persona

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/okian/callgen/internal/domain/model"
)

// Builder renders parsed templates.
type Builder struct {
	fraud, normal, responder *template.Template
	initClosing, respClosing *template.Template
	arbiter                  *template.Template
	t                        Templates
}

// NewBuilder parses every template.
func NewBuilder(t Templates) (*Builder, error) {
	b := &Builder{t: t}
	for _, p := range []struct {
		dst  **template.Template
		name string
		src  string
	}{
		{&b.fraud, "fraud_initiator", t.FraudInitiator},
		{&b.normal, "normal_initiator", t.NormalInitiator},
		{&b.responder, "responder", t.Responder},
		{&b.initClosing, "initiator_closing", t.InitiatorClosing},
		{&b.respClosing, "responder_closing", t.ResponderClosing},
		{&b.arbiter, "arbiter", t.Arbiter},
	} {
		tpl, err := template.New(p.name).Option("missingkey=error").Parse(p.src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTemplate, p.name, err)
		}
		*p.dst = tpl
	}
	return b, nil
}

type taskData struct {
	model.Profile
	Description string
	EndCall     string
	Terminate   string
}

// Policy parameterizes the arbiter prompt.
type Policy struct {
	MinTurns         int
	StagnationWindow int
	Strictness       string
}

// Initiator returns the caller persona for task.
func (b *Builder) Initiator(task model.Task) (model.Persona, error) {
	tpl := b.fraud
	if task.Kind == model.KindNormal {
		tpl = b.normal
	}
	return b.persona(model.Initiator, task, tpl, b.initClosing, b.t.InitiatorFallback)
}

// Responder returns the receiver persona for task.
func (b *Builder) Responder(task model.Task) (model.Persona, error) {
	return b.persona(model.Responder, task, b.responder, b.respClosing, b.t.ResponderFallback)
}

// Arbiter returns the arbiter system prompt.
func (b *Builder) Arbiter(p Policy) (string, error) {
	return render(b.arbiter, struct {
		Policy
		EndCall string
	}{p, model.EndCallToken})
}

func (b *Builder) persona(s model.Speaker, task model.Task, system, closing *template.Template, fallback string) (model.Persona, error) {
	data := taskData{
		Profile:     task.Profile,
		Description: b.t.Scenarios[task.Scenario],
		EndCall:     model.EndCallToken,
		Terminate:   model.TerminateToken,
	}
	sys, err := render(system, data)
	if err != nil {
		return model.Persona{}, err
	}
	cl, err := render(closing, data)
	if err != nil {
		return model.Persona{}, err
	}
	return model.Persona{Speaker: s, System: sys, Closing: cl, Fallback: fallback}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrTemplate, t.Name(), err)
	}
	return buf.String(), nil
}
