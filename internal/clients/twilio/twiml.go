package twilio

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Minimal TwiML builder for the voice webhook. Only the verbs the voice flow
// needs are modeled.

type VoiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Verbs         []any
}

type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

func (r *VoiceResponse) Say(text, language string) *VoiceResponse {
	r.Verbs = append(r.Verbs, Say{Text: text, Language: language})
	return r
}

func (r *VoiceResponse) GatherSpeech(action, language, prompt string) *VoiceResponse {
	g := Gather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		Language:      language,
		SpeechTimeout: "auto",
	}
	if prompt != "" {
		g.Verbs = append(g.Verbs, Say{Text: prompt, Language: language})
	}
	r.Verbs = append(r.Verbs, g)
	return r
}

func (r *VoiceResponse) Redirect(url string) *VoiceResponse {
	r.Verbs = append(r.Verbs, Redirect{Method: "POST", URL: url})
	return r
}

func (r *VoiceResponse) Hangup() *VoiceResponse {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

func (r *VoiceResponse) Render() (string, error) {
	var b strings.Builder
	b.WriteString(xml.Header)
	enc := xml.NewEncoder(&b)
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return b.String(), nil
}

// InboundCall is the form payload of a Twilio voice webhook. SpeechResult is
// present on gather callbacks only.
type InboundCall struct {
	CallSID      string
	From         string
	To           string
	SpeechResult string
}
