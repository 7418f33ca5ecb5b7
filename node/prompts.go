package node

import (
	"github.com/hupe1980/agentgraph/internal/util"
)

var workerPrompt = util.MustTemplate("worker", `You are {{.Name}}.
{{- if .Role}} Your role: {{.Role}}{{end}}
{{- if .Backstory}}

{{.Backstory}}{{end}}

Work on the task you are given. Use your tools when they help and answer directly when you are done.`)

var leaderPrompt = util.MustTemplate("leader", `You are {{.Name}}, the leader of a team.
{{- if .Role}} Your role: {{.Role}}{{end}}
{{- if .Backstory}}

{{.Backstory}}{{end}}

Your team members are:
{{- range .Members}}
- {{.Name}}{{if .Role}}: {{.Role}}{{end}}
{{- end}}

Given the conversation so far, decide who acts next and what exactly they should do.
When the task is complete or nobody can make further progress, choose FINISH.`)

var summaryPrompt = util.MustTemplate("summary", `You are {{.Name}}.
{{- if .Role}} Your role: {{.Role}}{{end}}

Your team has worked on the task below. Using the conversation, write the final answer for the user.
Answer the task directly. Do not describe the team or the process.

Task: {{.Task}}`)

type rosterEntry struct {
	Name string
	Role string
}
