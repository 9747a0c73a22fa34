package catalog

import (
	"strconv"
	"strings"
)

// Sampling is the fixed parameter set baked into a derived model.
type Sampling struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

type profile struct {
	sampling    Sampling
	requestHead string
	requestTail string
}

var profiles = map[Task]profile{
	TaskClinical: {
		sampling:    Sampling{Temperature: 0.3, TopP: 0.9, TopK: 40, RepeatPenalty: 1.1},
		requestHead: "Medical Query",
		requestTail: "Respond following current clinical guidelines.",
	},
	TaskVision: {
		sampling:    Sampling{Temperature: 0.2, TopP: 0.8, TopK: 30, RepeatPenalty: 1.1},
		requestHead: "Image Analysis Request",
		requestTail: "Analyse the attached image and return a structured radiology report.",
	},
	TaskCoding: {
		sampling:    Sampling{Temperature: 0.1, TopP: 0.7, TopK: 20, RepeatPenalty: 1.1},
		requestHead: "Clinical Coding Task",
		requestTail: "Return the requested codes or transformed data only.",
	},
}

// SamplingFor returns the sampling profile for a task; unknown tasks get the clinical one.
func SamplingFor(t Task) Sampling {
	if p, ok := profiles[t]; ok {
		return p.sampling
	}
	return profiles[TaskClinical].sampling
}

// Sampling returns the descriptor's sampling profile.
func (d Descriptor) Sampling() Sampling { return SamplingFor(d.Task) }

// RenderModelfile composes the runtime build document for d. Output depends
// only on d, so rendering the same descriptor twice is byte-identical.
func RenderModelfile(d Descriptor) string {
	p, ok := profiles[d.Task]
	if !ok {
		p = profiles[TaskClinical]
	}
	sys := d.SystemPrompt
	if sys == "" {
		sys = defaultSystemPrompt(d.Task)
	}
	var b strings.Builder
	b.WriteString("FROM ")
	b.WriteString(d.BaseModel)
	b.WriteString("\n\nSYSTEM \"\"\"")
	b.WriteString(strings.ReplaceAll(sys, `"""`, `"`))
	b.WriteString("\"\"\"\n\n")
	param(&b, "temperature", formatFloat(p.sampling.Temperature))
	param(&b, "top_p", formatFloat(p.sampling.TopP))
	param(&b, "top_k", strconv.Itoa(p.sampling.TopK))
	param(&b, "repeat_penalty", formatFloat(p.sampling.RepeatPenalty))
	b.WriteString("\nTEMPLATE \"\"\"{{ if .System }}{{ .System }}{{ end }}{{ if .Prompt }}\n\n")
	b.WriteString(p.requestHead)
	b.WriteString(": {{ .Prompt }}\n\n")
	b.WriteString(p.requestTail)
	b.WriteString("\n\n{{ end }}\"\"\"\n")
	return b.String()
}

func param(b *strings.Builder, key, val string) {
	b.WriteString("PARAMETER ")
	b.WriteString(key)
	b.WriteByte(' ')
	b.WriteString(val)
	b.WriteByte('\n')
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
