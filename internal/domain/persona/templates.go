package persona

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrTemplate is returned for unreadable or unparsable prompt templates.
var ErrTemplate = errors.New("invalid prompt template")

// Templates holds the text/template sources for every prompt. Any field left
// empty in an override file keeps its default.
type Templates struct {
	FraudInitiator    string            `yaml:"fraud_initiator"`
	NormalInitiator   string            `yaml:"normal_initiator"`
	Responder         string            `yaml:"responder"`
	InitiatorClosing  string            `yaml:"initiator_closing"`
	ResponderClosing  string            `yaml:"responder_closing"`
	InitiatorFallback string            `yaml:"initiator_fallback"`
	ResponderFallback string            `yaml:"responder_fallback"`
	Arbiter           string            `yaml:"arbiter"`
	Scenarios         map[string]string `yaml:"scenarios"`
}

// Load reads a YAML override file on top of Default.
func Load(path string) (Templates, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	var over Templates
	if err := yaml.Unmarshal(raw, &over); err != nil {
		return Templates{}, fmt.Errorf("%w: %s: %w", ErrTemplate, path, err)
	}
	t.merge(over)
	return t, nil
}

func (t *Templates) merge(o Templates) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&t.FraudInitiator, o.FraudInitiator)
	set(&t.NormalInitiator, o.NormalInitiator)
	set(&t.Responder, o.Responder)
	set(&t.InitiatorClosing, o.InitiatorClosing)
	set(&t.ResponderClosing, o.ResponderClosing)
	set(&t.InitiatorFallback, o.InitiatorFallback)
	set(&t.ResponderFallback, o.ResponderFallback)
	set(&t.Arbiter, o.Arbiter)
	for k, v := range o.Scenarios {
		t.Scenarios[k] = v
	}
}

// Default returns the built-in English prompts.
func Default() Templates {
	scenarios := make(map[string]string, len(defaultScenarios))
	for k, v := range defaultScenarios {
		scenarios[k] = v
	}
	return Templates{
		FraudInitiator:    fraudInitiator,
		NormalInitiator:   normalInitiator,
		Responder:         responder,
		InitiatorClosing:  initiatorClosing,
		ResponderClosing:  responderClosing,
		InitiatorFallback: "Sorry, I'm having some technical trouble. I'll call you back later.",
		ResponderFallback: "Sorry, I didn't quite catch that. Could you say it more clearly?",
		Arbiter:           arbiter,
		Scenarios:         scenarios,
	}
}

const fraudInitiator = `You are playing a phone scammer in a training simulation for fraud detection.
Scheme: {{.Scenario}}. {{.Description}}
You are calling a {{.Age}}-year-old {{.Occupation}} whose fraud awareness is {{.Awareness}}.
Speak naturally, one short spoken turn at a time, with no stage directions or speaker labels.
Adapt your pressure to the listener. Never admit you are running a scam.
If the listener clearly refuses or threatens to report you, say a brief goodbye and append {{.EndCall}}.`

const normalInitiator = `You are a legitimate caller in a training simulation of ordinary phone calls.
Purpose of the call: {{.Scenario}}. {{.Description}}
You are calling a {{.Age}}-year-old {{.Occupation}}.
Speak naturally, one short spoken turn at a time, with no stage directions or speaker labels.
Never ask for passwords, one-time codes, or money transfers.
When the purpose is fulfilled, say goodbye and append {{.EndCall}}.`

const responder = `You are a {{.Age}}-year-old {{.Occupation}} answering an unexpected phone call.
Your awareness of phone fraud is {{.Awareness}}.
{{- if eq .Awareness "low"}} You tend to trust people who sound official.
{{- else if eq .Awareness "high"}} You are suspicious and verify claims before acting.
{{- else}} You are cautious but can be persuaded by convincing details.{{end}}
Reply as yourself in one short spoken turn, with no stage directions or speaker labels.
If you decide to hang up, say so briefly and append {{.EndCall}}.`

const initiatorClosing = `The call must end now. Wrap up in one short turn that fits your role and append {{.Terminate}}.`

const responderClosing = `You want to end this call now. Say so politely or firmly in one short turn and append {{.Terminate}}.`

const arbiter = `You monitor a simulated phone call between a Caller and a Receiver and decide whether it should end.
Rules, with {{.Strictness}} strictness:
- Never end the call before {{.MinTurns}} turns unless a party hung up.
- End it when the caller fully achieved the goal, when the receiver firmly refused two or three times,
  when the last {{.StagnationWindow}} turns add nothing new or repeat themselves, or when a turn contains {{.EndCall}}.
- Otherwise let it continue.
Answer with JSON only:
{"should_terminate": true|false, "terminator": "caller"|"receiver"|"natural", "reason": "<short reason>"}`

var defaultScenarios = map[string]string{
	"investment":                "Promise outsized returns from a trading or crypto platform and ask for a deposit.",
	"romance":                   "Build an affectionate relationship and ask for money for an emergency.",
	"phishing":                  "Get the listener to open a link or read back a verification code.",
	"identity_theft":            "Collect national ID, date of birth, and bank details under a pretext.",
	"lottery":                   "Announce a prize that requires a processing fee.",
	"fake_job":                  "Offer easy remote work that needs an upfront deposit.",
	"banking":                   "Pose as the bank's security team and get an account transfer.",
	"impersonation_police":      "Pose as police investigating a crime and demand funds be moved for safekeeping.",
	"impersonation_call_center": "Pose as a telecom operator threatening to cut the line unless details are confirmed.",
	"postal_scam":               "Claim a parcel is held and needs a customs fee.",
	"medical_scam":              "Sell a miracle cure or demand payment for a relative's hospital bill.",
	"education_scam":            "Sell a fake scholarship or course placement.",
	"tax_scam":                  "Claim unpaid taxes and threaten penalties.",
	"charity_scam":              "Collect donations for a fake disaster relief fund.",
	"ecommerce_scam":            "Claim an order problem and ask for a refund verification payment.",
	"service_consultation":      "Explain a service the listener asked about.",
	"customer_care":             "Follow up on a recent purchase.",
	"tech_support":              "Help solve a reported device or internet problem.",
	"sales_consultation":        "Present a product the listener showed interest in, without pressure.",
	"procedure_guidance":        "Walk the listener through an administrative procedure.",
	"official_notice":           "Deliver a routine notice from a public office.",
	"appointment":               "Schedule or confirm an appointment.",
	"information_confirmation":  "Confirm delivery or booking details the listener provided.",
	"general_inquiry":           "Ask or answer a general question.",
	"survey":                    "Run a short customer satisfaction survey.",
}
