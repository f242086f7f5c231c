package orchestrator

import (
	"strings"

	"github.com/aiox-platform/quill/internal/session"
)

// Action is what an inbound message asks for.
type Action string

const (
	ActionStart      Action = "start"
	ActionMenu       Action = "menu"
	ActionChooseTask Action = "choose_task"
	ActionAgain      Action = "again"
	ActionEdit       Action = "edit"
	ActionPublish    Action = "publish"
	ActionConfirm    Action = "confirm"
	ActionCancel     Action = "cancel"
	ActionStats      Action = "stats"
	ActionLang       Action = "lang"
	ActionHelp       Action = "help"
	ActionText       Action = "text"
)

// Route is a parsed inbound message.
type Route struct {
	Action Action
	Task   session.TaskKind
	// Arg is the rest of a command line, or the whole text for ActionText.
	Arg string
}

// Bypass reports whether the route skips the user's queue. These actions
// must not wait behind an in-flight generation.
func (r Route) Bypass() bool {
	switch r.Action {
	case ActionCancel, ActionMenu, ActionStart:
		return true
	}
	return false
}

var commands = map[string]Route{
	"/start":    {Action: ActionStart},
	"/menu":     {Action: ActionMenu},
	"/create":   {Action: ActionChooseTask, Task: session.TaskCreate},
	"/improve":  {Action: ActionChooseTask, Task: session.TaskImprove},
	"/fix":      {Action: ActionChooseTask, Task: session.TaskFixErrors},
	"/engaging": {Action: ActionChooseTask, Task: session.TaskMakeEngaging},
	"/shorten":  {Action: ActionChooseTask, Task: session.TaskShorten},
	"/expand":   {Action: ActionChooseTask, Task: session.TaskExpand},
	"/analyze":  {Action: ActionChooseTask, Task: session.TaskAnalyze},
	"/again":    {Action: ActionAgain},
	"/edit":     {Action: ActionEdit},
	"/publish":  {Action: ActionPublish},
	"/confirm":  {Action: ActionConfirm},
	"/cancel":   {Action: ActionCancel},
	"/stats":    {Action: ActionStats},
	"/lang":     {Action: ActionLang},
	"/help":     {Action: ActionHelp},
}

// ParseRoute maps a message body onto an action. Only the first word is
// matched against the command table; unknown commands are plain text.
func ParseRoute(body string) Route {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "/") {
		return Route{Action: ActionText, Arg: body}
	}

	name, rest, _ := strings.Cut(trimmed, " ")
	route, ok := commands[strings.ToLower(name)]
	if !ok {
		return Route{Action: ActionText, Arg: body}
	}
	route.Arg = strings.TrimSpace(rest)
	return route
}
